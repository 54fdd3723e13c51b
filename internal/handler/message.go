package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/driftchat/internal/middleware"
	"github.com/driftchat/internal/repository"
	"github.com/driftchat/internal/service"
)

type MessageHandler struct {
	msgStore   repository.MessageStore
	groupStore repository.GroupStore
	send       *service.SendService
}

func NewMessageHandler(msgStore repository.MessageStore, groupStore repository.GroupStore, send *service.SendService) *MessageHandler {
	return &MessageHandler{msgStore: msgStore, groupStore: groupStore, send: send}
}

// GetSidebarUsers returns every chat partner with the latest message
// timestamp, freshest conversation first. Hidden conversations stay out.
func (h *MessageHandler) GetSidebarUsers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	users, err := h.msgStore.SidebarUsers(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetHiddenChats lists the users whose conversation the caller hid.
func (h *MessageHandler) GetHiddenChats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	users, err := h.msgStore.HiddenPartners(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get hidden chats")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetMessages returns the direct history with the user in the URL, oldest
// first, without messages the caller hid.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	otherID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	messages, err := h.msgStore.GetConversation(r.Context(), userID, otherID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// GetGroupMessages returns a group's history. 403 for non-members.
func (h *MessageHandler) GetGroupMessages(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	group, err := h.groupStore.GetByID(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "group not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if !group.HasMember(userID) {
		writeError(w, http.StatusForbidden, "not a member")
		return
	}

	messages, err := h.msgStore.GetGroupMessages(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// SendMessage sends a direct message to the user in the URL.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	receiverID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	msg, err := h.send.SendDirect(r.Context(), userID, receiverID, req.Text, req.Image)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyPayload):
			writeError(w, http.StatusBadRequest, "text or image required")
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "receiver not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to send message")
		}
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// SendGroupMessage sends a message to the group in the URL.
func (h *MessageHandler) SendGroupMessage(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	msg, err := h.send.SendGroup(r.Context(), userID, groupID, req.Text, req.Image)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyPayload):
			writeError(w, http.StatusBadRequest, "text or image required")
		case errors.Is(err, service.ErrNotMember):
			writeError(w, http.StatusForbidden, "not a member")
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "group not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to send message")
		}
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// MarkAsRead marks messages from the user in the URL to the caller as read.
func (h *MessageHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	otherID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if err := h.msgStore.MarkConversationRead(r.Context(), userID, otherID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark as read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteMessage removes one message. Only the sender may delete it.
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	msg, err := h.msgStore.GetByID(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if msg.SenderID != userID {
		writeError(w, http.StatusForbidden, "only the sender can delete a message")
		return
	}

	if err := h.msgStore.Delete(r.Context(), messageID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteChat removes the whole direct history with the user in the URL,
// for both participants.
func (h *MessageHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	otherID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if err := h.msgStore.DeleteConversation(r.Context(), userID, otherID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HideChat hides the direct conversation for the caller only.
func (h *MessageHandler) HideChat(w http.ResponseWriter, r *http.Request) {
	otherID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if err := h.msgStore.HideConversation(r.Context(), userID, otherID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hide chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// UnhideChat restores a hidden conversation for the caller.
func (h *MessageHandler) UnhideChat(w http.ResponseWriter, r *http.Request) {
	otherID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(r.Context())

	if err := h.msgStore.UnhideConversation(r.Context(), userID, otherID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unhide chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
