package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/httputil"
	"xclone/internal/model"
	"xclone/internal/transport/http/middleware"
)

// Request body caps. Image fields carry base64 data URLs, which inflate by 4/3.
const (
	maxJSONBody  = 64 << 10
	maxImageBody = 8 << 20
	maxUserBody  = 16 << 20 // profile and cover in one request
)

// requireUser returns the authenticated caller or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
	}
	return userID, ok
}

// requireAuth is requireUser for services that take a model.AuthContext.
func requireAuth(w http.ResponseWriter, r *http.Request) (model.AuthContext, bool) {
	auth, ok := middleware.AuthFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
	}
	return auth, ok
}

// pathID parses the named URL parameter as an ObjectID or writes a 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := model.ParseObjectID(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

// decodeBody reads a JSON body of at most limit bytes into dst or writes a 400.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, model.CodeFileTooLarge, "Request body too large")
			return false
		}
		httputil.WriteDomainError(w, r, model.ErrInvalidBody)
		return false
	}
	return true
}

// queryLimit reads the optional "limit" parameter. Zero means "use the default".
func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(l)
	if err != nil || parsed <= 0 {
		httputil.WriteBadRequest(w, "Invalid limit parameter")
		return 0, false
	}
	return parsed, true
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for proxied requests)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// RemoteAddr is "IP:port"
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	httputil.WriteJSON(w, status, map[string]string{"message": message})
}
