package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog/log"

	"xclone/internal/cache"
	"xclone/internal/config"
	"xclone/internal/database"
	"xclone/internal/handler"
	"xclone/internal/queue"
	"xclone/internal/redis"
	"xclone/internal/repository"
	"xclone/internal/service"
	"xclone/internal/worker"
)

const shutdownTimeout = 15 * time.Second

// Run wires the stores, services and workers, then serves HTTP until ctx is cancelled.
func Run(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ConfigureLogger()

	// 2. Connect to the stores
	mongoDB, err := database.ConnectMongo(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to disconnect MongoDB")
		}
	}()

	if err := database.EnsureIndexes(ctx, mongoDB.DB); err != nil {
		return fmt.Errorf("failed to ensure indexes: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	rdb, err := redis.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// 3. Repositories and infrastructure
	userRepo := repository.NewUserRepository(mongoDB.DB)
	followRepo := repository.NewFollowRepository(mongoDB.DB)
	postRepo := repository.NewPostRepository(mongoDB.DB)
	commentRepo := repository.NewCommentRepository(mongoDB.DB)
	notifRepo := repository.NewNotificationRepository(mongoDB.DB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	deviceTokenRepo := repository.NewDeviceTokenRepository(db)

	feedCache := cache.NewFeedCache(rdb.Client)
	publisher := queue.NewPublisher(rdb.Client)
	consumer := queue.NewConsumer(rdb.Client)

	// Media is optional; without it image fields are rejected.
	var media service.MediaStore
	if cfg.MediaEnabled() {
		mediaService, err := service.NewMediaService(ctx, cfg)
		if err != nil {
			return err
		}
		media = mediaService
	} else {
		log.Warn().Msg("R2 is not configured, image uploads are disabled")
	}

	// 4. Services
	notificationService := service.NewNotificationService(notifRepo, deviceTokenRepo, userRepo, publisher)
	if cfg.PushEnabled() {
		fcm, err := service.NewFCMClient(ctx, cfg.FCMProjectID, cfg.FCMClientEmail, cfg.FCMPrivateKey)
		if err != nil {
			return err
		}
		notificationService.SetPushSender(fcm)
	} else {
		log.Warn().Msg("FCM is not configured, push notifications are disabled")
	}

	authService := service.NewAuthService(refreshTokenRepo, cfg)
	userService := service.NewUserService(userRepo, media)
	followService := service.NewFollowService(followRepo, userRepo, feedCache, notificationService, publisher)
	feedService := service.NewFeedService(feedCache, postRepo, userRepo)
	suggestionService := service.NewSuggestionService(userRepo)
	postService := service.NewPostService(postRepo, userRepo, followRepo, feedCache, media, notificationService)
	commentService := service.NewCommentService(commentRepo, postRepo, userRepo, notificationService)

	// 5. Background workers
	jobHandler := worker.NewHandler(followService, publisher)
	if notificationService.PushEnabled() {
		jobHandler.SetPusher(notificationService)
	}

	managerCfg := worker.DefaultManagerConfig()
	managerCfg.WorkerCount = cfg.WorkerCount
	manager := worker.NewManager(consumer, jobHandler, managerCfg)
	manager.SetJanitor(authService)
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer manager.Stop()

	// 6. Setup Server
	router := NewRouter(RouterConfig{
		AuthHandler:         handler.NewAuthHandler(userService, authService, cfg),
		UserHandler:         handler.NewUserHandler(userService, suggestionService),
		FollowHandler:       handler.NewFollowHandler(followService),
		FeedHandler:         handler.NewFeedHandler(feedService),
		PostHandler:         handler.NewPostHandler(postService),
		CommentHandler:      handler.NewCommentHandler(commentService),
		NotificationHandler: handler.NewNotificationHandler(notificationService),
		JWTSecret:           cfg.JWTSecret,
		Logger:              log.Logger,
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
