package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexSet is the list of indexes owned by one collection.
type IndexSet struct {
	Collection string
	Models     []mongo.IndexModel
}

// Indexes returns every index the application relies on. The unique
// username/email indexes are the authoritative guard against duplicate signups.
func Indexes() []IndexSet {
	return []IndexSet{
		{
			Collection: CollectionUsers,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_username_unique")},
				{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_unique")},
				{Keys: bson.D{{Key: "followers", Value: 1}}, Options: options.Index().SetName("users_followers")},
				{Keys: bson.D{{Key: "following", Value: 1}}, Options: options.Index().SetName("users_following")},
				{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("users_created_desc")},
			},
		},
		{
			Collection: CollectionPosts,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("posts_user_timeline")},
				{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, Options: options.Index().SetName("posts_timeline")},
				{Keys: bson.D{{Key: "likes", Value: 1}}, Options: options.Index().SetName("posts_likes")},
				{Keys: bson.D{{Key: "user", Value: 1}}, Options: options.Index().SetName("posts_user")},
				{Keys: bson.D{{Key: "text", Value: "text"}}, Options: options.Index().SetName("posts_text_search")},
			},
		},
		{
			Collection: CollectionNotifications,
			Models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "to", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("notifications_recipient_timeline")},
				{Keys: bson.D{{Key: "from", Value: 1}}, Options: options.Index().SetName("notifications_sender")},
				{Keys: bson.D{{Key: "to", Value: 1}, {Key: "read", Value: 1}}, Options: options.Index().SetName("notifications_read_status")},
				{Keys: bson.D{{Key: "to", Value: 1}, {Key: "type", Value: 1}}, Options: options.Index().SetName("notifications_type")},
			},
		},
	}
}

// EnsureIndexes creates any missing index. Existing indexes with the same
// definition are left alone by the server.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, set := range Indexes() {
		names, err := db.Collection(set.Collection).Indexes().CreateMany(ctx, set.Models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", set.Collection, err)
		}
		log.Info().Str("collection", set.Collection).Strs("indexes", names).Msg("Indexes ensured")
	}
	return nil
}

// ListIndexes returns the index specs currently present, keyed by collection.
func ListIndexes(ctx context.Context, db *mongo.Database) (map[string][]bson.M, error) {
	out := make(map[string][]bson.M)
	for _, set := range Indexes() {
		cur, err := db.Collection(set.Collection).Indexes().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list indexes on %s: %w", set.Collection, err)
		}
		var specs []bson.M
		if err := cur.All(ctx, &specs); err != nil {
			return nil, fmt.Errorf("decode indexes on %s: %w", set.Collection, err)
		}
		out[set.Collection] = specs
	}
	return out, nil
}

// DropIndexes removes the application's named indexes. The _id index is never touched.
func DropIndexes(ctx context.Context, db *mongo.Database) error {
	for _, set := range Indexes() {
		coll := db.Collection(set.Collection)
		for _, m := range set.Models {
			name := *m.Options.Name
			if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
				var cmdErr mongo.CommandError
				// 27 = IndexNotFound, 26 = NamespaceNotFound
				if errors.As(err, &cmdErr) && (cmdErr.Code == 27 || cmdErr.Code == 26) {
					continue
				}
				return fmt.Errorf("drop index %s on %s: %w", name, set.Collection, err)
			}
			log.Info().Str("collection", set.Collection).Str("index", name).Msg("Index dropped")
		}
	}
	return nil
}
