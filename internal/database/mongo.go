package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"xclone/internal/config"
)

// Collection names
const (
	CollectionUsers         = "users"
	CollectionPosts         = "posts"
	CollectionNotifications = "notifications"
)

const connectTimeout = 10 * time.Second

// Mongo bundles the client with the application database handle.
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// ConnectMongo connects and pings so startup fails fast if MongoDB is unreachable.
func ConnectMongo(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	log.Info().Str("db", cfg.MongoDB).Msg("Connected to MongoDB")
	return &Mongo{Client: client, DB: client.Database(cfg.MongoDB)}, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *Mongo) Users() *mongo.Collection {
	return m.DB.Collection(CollectionUsers)
}

func (m *Mongo) Posts() *mongo.Collection {
	return m.DB.Collection(CollectionPosts)
}

func (m *Mongo) Notifications() *mongo.Collection {
	return m.DB.Collection(CollectionNotifications)
}
