// Package repository defines the persistence contract the core depends on
// and its Postgres implementation. The memory subpackage provides the same
// contract backed by maps for -mem mode and tests.
package repository

import (
	"context"
	"errors"

	"github.com/driftchat/internal/model"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// MessageStore persists messages and answers conversation-scoped queries.
// All queries that serve a viewer exclude messages hidden for that viewer.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)

	// GetConversation returns the direct history between viewer and other,
	// oldest first, excluding messages hidden for the viewer.
	GetConversation(ctx context.Context, viewerID, otherID string) ([]model.Message, error)
	// GetGroupMessages returns a group's history, oldest first.
	GetGroupMessages(ctx context.Context, groupID string) ([]model.Message, error)

	// MarkConversationRead marks unread messages from otherID to viewerID read.
	MarkConversationRead(ctx context.Context, viewerID, otherID string) error

	Delete(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, userA, userB string) error
	DeleteGroupMessages(ctx context.Context, groupID string) error

	// HideConversation / UnhideConversation toggle the per-viewer hide
	// marker on every message of a direct conversation. Hiding never
	// destroys data and is invisible to the other participant.
	HideConversation(ctx context.Context, viewerID, otherID string) error
	UnhideConversation(ctx context.Context, viewerID, otherID string) error

	// SidebarUsers returns every other user the viewer can see, with the
	// timestamp of the latest non-hidden message, ordered most recent
	// first and users without history last. Users whose conversation the
	// viewer hid are excluded.
	SidebarUsers(ctx context.Context, viewerID string) ([]model.SidebarUser, error)
	// HiddenPartners returns the users whose conversation the viewer hid.
	HiddenPartners(ctx context.Context, viewerID string) ([]model.User, error)
}

type GroupStore interface {
	Create(ctx context.Context, g *model.Group) error
	// GetByID returns the group including its member set.
	GetByID(ctx context.Context, id string) (*model.Group, error)
	GetForUser(ctx context.Context, userID string) ([]model.Group, error)
	Delete(ctx context.Context, id string) error
}

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	// GetForReceiver returns the receiver's notifications, newest first.
	GetForReceiver(ctx context.Context, receiverID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) error
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// Search matches usernames by case-insensitive substring.
	Search(ctx context.Context, query string, limit int) ([]model.User, error)
	SetOnline(ctx context.Context, userID string, online bool) error
}

type SubscriptionStore interface {
	Save(ctx context.Context, s *model.PushSubscription) error
	GetForUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
	Delete(ctx context.Context, userID, endpoint string) error
}
