package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/driftchat/internal/model"
)

// API is a thin REST client for the chat server. Every request carries the
// session id in X-Session-Id.
type API struct {
	baseURL   string
	sessionID string
	http      *http.Client
}

func NewAPI(baseURL, sessionID string) *API {
	return &API{
		baseURL:   strings.TrimRight(baseURL, "/"),
		sessionID: sessionID,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError carries the server's status and error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("X-Session-Id", a.sessionID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var er struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Error == "" {
			er.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: er.Error}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("api: decode response: %w", err)
		}
	}
	return nil
}

func (a *API) SidebarUsers(ctx context.Context) ([]model.SidebarUser, error) {
	var users []model.SidebarUser
	err := a.do(ctx, http.MethodGet, "/api/messages/users", nil, &users)
	return users, err
}

func (a *API) HiddenChats(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := a.do(ctx, http.MethodGet, "/api/messages/hidden", nil, &users)
	return users, err
}

func (a *API) Messages(ctx context.Context, otherID string) ([]model.Message, error) {
	var msgs []model.Message
	err := a.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(otherID), nil, &msgs)
	return msgs, err
}

func (a *API) GroupMessages(ctx context.Context, groupID string) ([]model.Message, error) {
	var msgs []model.Message
	err := a.do(ctx, http.MethodGet, "/api/messages/group/"+url.PathEscape(groupID), nil, &msgs)
	return msgs, err
}

type sendPayload struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (a *API) Send(ctx context.Context, receiverID, text, image string) (*model.Message, error) {
	var msg model.Message
	err := a.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(receiverID), sendPayload{Text: text, Image: image}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (a *API) SendToGroup(ctx context.Context, groupID, text, image string) (*model.Message, error) {
	var msg model.Message
	err := a.do(ctx, http.MethodPost, "/api/messages/group/"+url.PathEscape(groupID)+"/send", sendPayload{Text: text, Image: image}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (a *API) MarkRead(ctx context.Context, otherID string) error {
	return a.do(ctx, http.MethodPut, "/api/messages/"+url.PathEscape(otherID)+"/read", nil, nil)
}

func (a *API) DeleteMessage(ctx context.Context, messageID string) error {
	return a.do(ctx, http.MethodDelete, "/api/messages/message/"+url.PathEscape(messageID), nil, nil)
}

func (a *API) DeleteChat(ctx context.Context, otherID string) error {
	return a.do(ctx, http.MethodDelete, "/api/messages/chat/"+url.PathEscape(otherID), nil, nil)
}

func (a *API) HideChat(ctx context.Context, otherID string) error {
	return a.do(ctx, http.MethodPost, "/api/messages/hide/"+url.PathEscape(otherID), nil, nil)
}

func (a *API) UnhideChat(ctx context.Context, otherID string) error {
	return a.do(ctx, http.MethodPost, "/api/messages/unhide/"+url.PathEscape(otherID), nil, nil)
}

func (a *API) Groups(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	err := a.do(ctx, http.MethodGet, "/api/groups", nil, &groups)
	return groups, err
}

type createGroupPayload struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (a *API) CreateGroup(ctx context.Context, name string, members []string) (*model.Group, error) {
	var g model.Group
	err := a.do(ctx, http.MethodPost, "/api/groups", createGroupPayload{Name: name, Members: members}, &g)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (a *API) DeleteGroup(ctx context.Context, groupID string) error {
	return a.do(ctx, http.MethodDelete, "/api/groups/"+url.PathEscape(groupID), nil, nil)
}

func (a *API) Notifications(ctx context.Context) ([]model.Notification, error) {
	var notifs []model.Notification
	err := a.do(ctx, http.MethodGet, "/api/notifications", nil, &notifs)
	return notifs, err
}

func (a *API) MarkNotificationRead(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (a *API) SearchUsers(ctx context.Context, query string, limit int) ([]model.User, error) {
	var users []model.User
	path := "/api/users/search?q=" + url.QueryEscape(query)
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}
	err := a.do(ctx, http.MethodGet, path, nil, &users)
	return users, err
}
