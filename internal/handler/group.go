package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/driftchat/internal/middleware"
	"github.com/driftchat/internal/model"
	"github.com/driftchat/internal/repository"
)

type GroupHandler struct {
	groupStore repository.GroupStore
	msgStore   repository.MessageStore
	userStore  repository.UserStore
}

func NewGroupHandler(groupStore repository.GroupStore, msgStore repository.MessageStore, userStore repository.UserStore) *GroupHandler {
	return &GroupHandler{groupStore: groupStore, msgStore: msgStore, userStore: userStore}
}

type createGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Create makes a group. The caller is always a member; the request must
// name at least two other users.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "group name required")
		return
	}

	members := map[string]struct{}{userID: {}}
	for _, id := range req.Members {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := h.userStore.GetByID(r.Context(), id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "unknown member: "+id)
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to check members")
			return
		}
		members[id] = struct{}{}
	}
	if len(members) < 3 {
		writeError(w, http.StatusBadRequest, "a group needs at least two other members")
		return
	}

	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	group := &model.Group{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Members:   ids,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.groupStore.Create(r.Context(), group); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// List returns the caller's groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groups, err := h.groupStore.GetForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get groups")
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// Delete removes a group and its history. Members only.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.msgStore.DeleteGroupMessages(r.Context(), groupID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete group messages")
		return
	}
	if err := h.groupStore.Delete(r.Context(), groupID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
