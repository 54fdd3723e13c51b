package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/driftchat/internal/middleware"
	"github.com/driftchat/internal/repository"
)

type NotificationHandler struct {
	store repository.NotificationStore
}

func NewNotificationHandler(store repository.NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	notifs, err := h.store.GetForReceiver(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get notifications")
		return
	}
	writeJSON(w, http.StatusOK, notifs)
}

// MarkRead marks a notification read. Receiver only.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	notifID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	n, err := h.store.GetByID(r.Context(), notifID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get notification")
		return
	}
	if n.ReceiverID != userID {
		writeError(w, http.StatusForbidden, "not your notification")
		return
	}

	if err := h.store.MarkRead(r.Context(), notifID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark as read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
