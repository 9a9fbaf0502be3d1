package handler

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/httputil"
	"xclone/internal/model"
)

// Inbox manages a user's notifications and push devices. Implemented by NotificationService.
type Inbox interface {
	List(ctx context.Context, userID primitive.ObjectID, limit int) (*model.NotificationListResponse, error)
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) error
	DeleteAll(ctx context.Context, userID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, notificationID, userID primitive.ObjectID) error
	RegisterDevice(ctx context.Context, userID primitive.ObjectID, req model.RegisterTokenRequest) error
	RemoveDevice(ctx context.Context, userID primitive.ObjectID, token string) error
}

type NotificationHandler struct {
	inbox Inbox
}

func NewNotificationHandler(inbox Inbox) *NotificationHandler {
	return &NotificationHandler{
		inbox: inbox,
	}
}

// List handles GET /api/notifications
// Returns the newest notifications with sender details and the unread count.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	notifications, err := h.inbox.List(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, notifications)
}

// UnreadCount handles GET /api/notifications/unread-count
// Returns the count of unread notifications (for badge display).
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	count, err := h.inbox.UnreadCount(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"unread_count": count})
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.inbox.MarkAllRead(r.Context(), userID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "All notifications marked as read")
}

// DeleteAll handles DELETE /api/notifications
func (h *NotificationHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	deleted, err := h.inbox.DeleteAll(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Notifications deleted successfully",
		"deleted": deleted,
	})
}

// Delete handles DELETE /api/notifications/{id}
// A notification owned by someone else reads as not found.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	notificationID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.inbox.Delete(r.Context(), notificationID, userID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Notification deleted successfully")
}

// RegisterDevice handles POST /api/devices
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.RegisterTokenRequest
	if !decodeBody(w, r, maxJSONBody, &req) {
		return
	}

	if err := h.inbox.RegisterDevice(r.Context(), userID, req); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Device registered")
}

// RemoveDevice handles DELETE /api/devices
func (h *NotificationHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.RegisterTokenRequest
	if !decodeBody(w, r, maxJSONBody, &req) {
		return
	}

	if err := h.inbox.RemoveDevice(r.Context(), userID, req.Token); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Device removed")
}
