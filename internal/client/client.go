package client

import (
	"context"
	"time"

	"github.com/driftchat/internal/logger"
	"github.com/driftchat/internal/model"
)

// Client composes the REST API, the event socket and the local State into
// one connected session. REST responses and pushed events both land in the
// same State, which arbitrates duplicates and ordering.
type Client struct {
	api    *API
	socket *Socket
	state  *State
	selfID string
}

// New builds a client session for the given server and session credentials.
// selfID must be the user the session belongs to.
func New(baseURL, sessionID, selfID string) *Client {
	state := NewState()
	return &Client{
		api:    NewAPI(baseURL, sessionID),
		socket: NewSocket(baseURL, sessionID, selfID, state),
		state:  state,
		selfID: selfID,
	}
}

// State exposes the live view state for UI reads.
func (c *Client) State() *State { return c.state }

// API exposes the raw REST surface for operations Client does not wrap.
func (c *Client) API() *API { return c.api }

// Run keeps the event socket connected until ctx cancels, refetching the
// sidebar after every reconnect to absorb anything missed while offline.
func (c *Client) Run(ctx context.Context) {
	for {
		if err := c.Refresh(ctx); err != nil {
			logger.Errorf("client: refresh: %v", err)
		}
		err := c.socket.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Errorf("client: socket: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}

// Refresh refetches the sidebar, groups and notifications wholesale.
func (c *Client) Refresh(ctx context.Context) error {
	c.state.SetLoading(true, false)
	defer c.state.SetLoading(false, false)

	users, err := c.api.SidebarUsers(ctx)
	if err != nil {
		return err
	}
	c.state.SetUsers(users)

	groups, err := c.api.Groups(ctx)
	if err != nil {
		return err
	}
	entries := make([]GroupEntry, len(groups))
	for i, g := range groups {
		entries[i] = GroupEntry{Group: g}
	}
	c.state.SetGroups(entries)

	notifs, err := c.api.Notifications(ctx)
	if err != nil {
		return err
	}
	c.state.SetNotifications(notifs)
	return nil
}

// OpenChat selects a direct conversation, loads its history and marks the
// partner's messages read.
func (c *Client) OpenChat(ctx context.Context, partnerID string) error {
	c.state.SelectChat(ChatRef{Type: ChatDirect, ID: partnerID})
	c.state.SetLoading(false, true)
	defer c.state.SetLoading(false, false)

	msgs, err := c.api.Messages(ctx, partnerID)
	if err != nil {
		return err
	}
	c.state.ReplaceMessages(msgs)
	if err := c.api.MarkRead(ctx, partnerID); err != nil {
		logger.Errorf("client: mark read %s: %v", partnerID, err)
	}
	return nil
}

// OpenGroup selects a group conversation and loads its history.
func (c *Client) OpenGroup(ctx context.Context, groupID string) error {
	c.state.SelectChat(ChatRef{Type: ChatGroup, ID: groupID})
	c.state.SetLoading(false, true)
	defer c.state.SetLoading(false, false)

	msgs, err := c.api.GroupMessages(ctx, groupID)
	if err != nil {
		return err
	}
	c.state.ReplaceMessages(msgs)
	return nil
}

// Send posts to the open conversation and folds the persisted message into
// the state so the sender sees it without waiting for an echo.
func (c *Client) Send(ctx context.Context, text, image string) (*model.Message, error) {
	sel := c.state.Selected()
	if sel == nil {
		return nil, &APIError{Status: 400, Message: "no chat selected"}
	}
	var (
		msg *model.Message
		err error
	)
	switch sel.Type {
	case ChatGroup:
		msg, err = c.api.SendToGroup(ctx, sel.ID, text, image)
	default:
		msg, err = c.api.Send(ctx, sel.ID, text, image)
	}
	if err != nil {
		return nil, err
	}
	c.state.ApplySent(c.selfID, msg)
	return msg, nil
}

// HideChat hides the direct conversation with partnerID and drops it from
// the local sidebar.
func (c *Client) HideChat(ctx context.Context, partnerID string) error {
	if err := c.api.HideChat(ctx, partnerID); err != nil {
		return err
	}
	c.state.DropChat(partnerID)
	return nil
}

// DeleteChat deletes the direct conversation with partnerID on the server
// and locally.
func (c *Client) DeleteChat(ctx context.Context, partnerID string) error {
	if err := c.api.DeleteChat(ctx, partnerID); err != nil {
		return err
	}
	c.state.DropChat(partnerID)
	return nil
}

// DeleteGroup removes the group for all members.
func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	if err := c.api.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	c.state.DropGroup(groupID)
	return nil
}
