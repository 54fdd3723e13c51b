// Package memory implements the repository contract with mutex-guarded
// maps. It backs -mem mode and package tests; semantics mirror the
// Postgres implementation.
package memory

import (
	"sync"

	"github.com/driftchat/internal/model"
)

// DB is the shared in-memory state. Per-entity stores are views over one
// DB so that cross-entity queries (sidebar, hidden partners) see the same
// data under one lock.
type DB struct {
	mu            sync.RWMutex
	users         map[string]*model.User
	messages      []*model.Message
	groups        map[string]*model.Group
	notifications []*model.Notification
	subscriptions []*model.PushSubscription
}

func New() *DB {
	return &DB{
		users:  make(map[string]*model.User),
		groups: make(map[string]*model.Group),
	}
}

func (d *DB) Messages() *MessageStore           { return &MessageStore{db: d} }
func (d *DB) Groups() *GroupStore               { return &GroupStore{db: d} }
func (d *DB) Notifications() *NotificationStore { return &NotificationStore{db: d} }
func (d *DB) Users() *UserStore                 { return &UserStore{db: d} }
func (d *DB) Subscriptions() *SubscriptionStore { return &SubscriptionStore{db: d} }

func cloneMessage(m *model.Message) *model.Message {
	c := *m
	c.HiddenFor = append([]string(nil), m.HiddenFor...)
	if m.Sender != nil {
		s := *m.Sender
		c.Sender = &s
	}
	return &c
}

// attachSender fills in the sender brief; callers hold the lock.
func (d *DB) attachSender(m *model.Message) {
	if u, ok := d.users[m.SenderID]; ok {
		b := u.Brief()
		m.Sender = &b
	}
}

func inDirectConversation(m *model.Message, userA, userB string) bool {
	if m.ReceiverID == "" {
		return false
	}
	return (m.SenderID == userA && m.ReceiverID == userB) ||
		(m.SenderID == userB && m.ReceiverID == userA)
}
