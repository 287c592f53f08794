package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/famsched/internal/model"
	"github.com/dukerupert/famsched/internal/store"
)

type NotificationHandler struct {
	notifications *store.NotificationStore
	logger        *slog.Logger
}

func NewNotificationHandler(ns *store.NotificationStore, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: ns, logger: logger}
}

type notificationsResponse struct {
	Notifications []model.SystemNotification `json:"notifications"`
	Unread        int                        `json:"unread"`
}

// List handles GET /api/notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notifs, err := h.notifications.List()
	if err != nil {
		h.logger.Error("list notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	unread, err := h.notifications.UnreadCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: notifs, Unread: unread})
}

// ReadAll handles POST /api/notifications/read-all.
func (h *NotificationHandler) ReadAll(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkAllRead(); err != nil {
		h.logger.Error("mark notifications read", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark notifications read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
