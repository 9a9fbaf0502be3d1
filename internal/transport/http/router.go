package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"xclone/internal/handler"
	"xclone/internal/httputil"
	authmw "xclone/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	FollowHandler       *handler.FollowHandler
	FeedHandler         *handler.FeedHandler
	PostHandler         *handler.PostHandler
	CommentHandler      *handler.CommentHandler
	NotificationHandler *handler.NotificationHandler
	JWTSecret           string
	Logger              zerolog.Logger
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(cfg.Logger))
	r.Use(requestIDField)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes - no authentication required
		r.Post("/auth/signup", cfg.AuthHandler.Signup)
		r.Post("/auth/login", cfg.AuthHandler.Login)
		r.Post("/auth/refresh", cfg.AuthHandler.Refresh)

		// Protected routes - require authentication
		r.Group(func(r chi.Router) {
			r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Get("/auth/me", cfg.AuthHandler.Me)

			r.Route("/users", func(r chi.Router) {
				r.Get("/profile/{username}", cfg.UserHandler.GetProfile)
				r.Get("/suggested", cfg.UserHandler.Suggested)
				r.Post("/update", cfg.UserHandler.Update)
				r.Post("/follow/{id}", cfg.FollowHandler.Toggle)
				r.Get("/{id}/followers", cfg.FollowHandler.Followers)
				r.Get("/{id}/following", cfg.FollowHandler.Following)
			})

			r.Route("/posts", func(r chi.Router) {
				r.Get("/all", cfg.FeedHandler.All)
				r.Get("/following", cfg.FeedHandler.Following)
				r.Get("/user/{username}", cfg.FeedHandler.ByUser)
				r.Get("/likes/{id}", cfg.FeedHandler.LikedBy)
				r.Post("/create", cfg.PostHandler.Create)
				r.Post("/like/{id}", cfg.PostHandler.ToggleLike)
				r.Post("/comment/{id}", cfg.CommentHandler.Create)
				r.Get("/{id}", cfg.PostHandler.GetByID)
				r.Delete("/{id}", cfg.PostHandler.Delete)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", cfg.NotificationHandler.List)
				r.Get("/unread-count", cfg.NotificationHandler.UnreadCount)
				r.Post("/read-all", cfg.NotificationHandler.MarkAllRead)
				r.Delete("/", cfg.NotificationHandler.DeleteAll)
				r.Delete("/{id}", cfg.NotificationHandler.Delete)
			})

			r.Post("/devices", cfg.NotificationHandler.RegisterDevice)
			r.Delete("/devices", cfg.NotificationHandler.RemoveDevice)
		})
	})

	return r
}

// requestIDField copies chi's request id into the request logger.
func requestIDField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}
