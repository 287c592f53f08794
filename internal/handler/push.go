package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/famsched/internal/push"
	"github.com/dukerupert/famsched/internal/store"
)

// PushSender is what the push routes need from push.Service.
type PushSender interface {
	push.Sender
	VAPIDPublicKey() string
}

type PushHandler struct {
	subs   *store.PushStore
	sender PushSender
	logger *slog.Logger
}

func NewPushHandler(ps *store.PushStore, sender PushSender, logger *slog.Logger) *PushHandler {
	return &PushHandler{subs: ps, sender: sender, logger: logger}
}

// subscribeRequest mirrors PushSubscription.toJSON() in the browser, plus a
// label for the device list.
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	DeviceName string `json:"device_name"`
}

// GetVAPIDKey handles GET /api/push/vapid-key.
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.sender.Configured() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.sender.VAPIDPublicKey()})
}

// Subscribe handles POST /api/push/subscribe. Re-subscribing the same
// endpoint moves it to the calling member.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !strings.HasPrefix(req.Endpoint, "https://") {
		writeError(w, http.StatusBadRequest, "endpoint must be an https URL")
		return
	}
	if req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "keys.p256dh and keys.auth are required")
		return
	}
	if req.DeviceName == "" {
		req.DeviceName = deviceName(r.UserAgent())
	}

	sub, err := h.subs.CreateSubscription(actor(r).MemberID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ListSubscriptions handles GET /api/push/subscriptions: the caller's devices.
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subs.ListByMember(actor(r).MemberID)
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}. Members can only
// remove their own devices.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	removed, err := h.subs.DeleteSubscription(id, actor(r).MemberID)
	if err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /api/push/test by sending a sample alert to each of the
// caller's devices. Expired devices are dropped.
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	if !h.sender.Configured() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	ac := actor(r)
	subs, err := h.subs.ListByMember(ac.MemberID)
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if len(subs) == 0 {
		writeError(w, http.StatusNotFound, "no devices subscribed")
		return
	}

	payload := push.Payload{
		Title: "Notifications are on",
		Body:  "Hi " + ac.Name + ", reminders will show up here.",
		URL:   "/",
	}
	var sent, expired int
	for i := range subs {
		err := h.sender.Send(r.Context(), &subs[i], payload)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, push.ErrExpired):
			expired++
			if err := h.subs.DeleteByEndpoint(subs[i].Endpoint); err != nil {
				h.logger.Error("delete expired subscription", "error", err)
			}
		default:
			h.logger.Warn("send test push", "subscription", subs[i].ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent, "expired": expired})
}

// deviceName guesses a label from the user agent.
func deviceName(ua string) string {
	switch {
	case strings.Contains(ua, "iPhone"):
		return "iPhone"
	case strings.Contains(ua, "iPad"):
		return "iPad"
	case strings.Contains(ua, "Android"):
		return "Android"
	case strings.Contains(ua, "Macintosh"):
		return "Mac"
	case strings.Contains(ua, "Windows"):
		return "Windows"
	case strings.Contains(ua, "Linux"):
		return "Linux"
	}
	return "Browser"
}
