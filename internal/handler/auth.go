package handler

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/config"
	"xclone/internal/httputil"
	"xclone/internal/model"
	"xclone/internal/transport/http/middleware"
)

// Accounts is the part of UserService the auth endpoints need.
type Accounts interface {
	Signup(ctx context.Context, req model.SignupRequest) (*model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
}

// Sessions issues, rotates and revokes token pairs. Implemented by AuthService.
type Sessions interface {
	GenerateTokenPair(ctx context.Context, userID primitive.ObjectID, deviceInfo, ipAddress string) (*model.TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken, deviceInfo, ipAddress string) (*model.TokenPair, primitive.ObjectID, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
}

// AuthHandler groups auth-related HTTP endpoints and their dependencies.
type AuthHandler struct {
	accounts Accounts
	sessions Sessions
	config   *config.Config
}

// NewAuthHandler wires dependencies for authentication endpoints.
func NewAuthHandler(accounts Accounts, sessions Sessions, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		config:   cfg,
	}
}

// Signup creates an account and starts a session.
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if !decodeBody(w, r, maxJSONBody, &req) {
		return
	}

	user, err := h.accounts.Signup(r.Context(), req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	h.startSession(w, r, user, http.StatusCreated)
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeBody(w, r, maxJSONBody, &req) {
		return
	}

	user, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	h.startSession(w, r, user, http.StatusOK)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User, status int) {
	tokenPair, err := h.sessions.GenerateTokenPair(r.Context(), user.ID, r.Header.Get("User-Agent"), clientIP(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	h.setSessionCookie(w, tokenPair.AccessToken)
	httputil.WriteJSON(w, status, model.LoginResponse{
		User:         user.Sanitize(),
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	})
}

// Me returns the currently authenticated user
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.accounts.GetByID(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, user.Sanitize())
}

// Refresh rotates a refresh token and renews the session cookie.
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if !decodeBody(w, r, maxJSONBody, &req) {
		return
	}
	if req.RefreshToken == "" {
		httputil.WriteBadRequest(w, "Refresh token is required")
		return
	}

	tokenPair, _, err := h.sessions.RefreshTokens(r.Context(), req.RefreshToken, r.Header.Get("User-Agent"), clientIP(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	h.setSessionCookie(w, tokenPair.AccessToken)
	httputil.WriteJSON(w, http.StatusOK, tokenPair)
}

// Logout revokes the refresh token, if one is sent, and clears the cookie.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req model.LogoutRequest
	if r.ContentLength != 0 && !decodeBody(w, r, maxJSONBody, &req) {
		return
	}

	if req.RefreshToken != "" {
		err := h.sessions.RevokeRefreshToken(r.Context(), req.RefreshToken)
		// An unknown token is already as logged out as it gets.
		if err != nil && model.KindOf(err) != model.KindUnauthorized {
			httputil.WriteDomainError(w, r, err)
			return
		}
	}

	h.clearSessionCookie(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   h.config.AccessTokenMaxAge,
		Expires:  time.Now().Add(time.Duration(h.config.AccessTokenMaxAge) * time.Second),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
