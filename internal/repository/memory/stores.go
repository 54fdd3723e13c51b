package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/driftchat/internal/model"
	"github.com/driftchat/internal/repository"
)

type GroupStore struct {
	db *DB
}

var _ repository.GroupStore = (*GroupStore)(nil)

func cloneGroup(g *model.Group) *model.Group {
	c := *g
	c.Members = append([]string(nil), g.Members...)
	return &c
}

func (s *GroupStore) Create(ctx context.Context, g *model.Group) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.groups[g.ID] = cloneGroup(g)
	return nil
}

func (s *GroupStore) GetByID(ctx context.Context, id string) (*model.Group, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	g, ok := s.db.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneGroup(g), nil
}

func (s *GroupStore) GetForUser(ctx context.Context, userID string) ([]model.Group, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]model.Group, 0, 4)
	for _, g := range s.db.groups {
		if g.HasMember(userID) {
			out = append(out, *cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *GroupStore) Delete(ctx context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.groups[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.groups, id)
	return nil
}

type NotificationStore struct {
	db *DB
}

var _ repository.NotificationStore = (*NotificationStore)(nil)

func (s *NotificationStore) Create(ctx context.Context, n *model.Notification) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c := *n
	s.db.notifications = append(s.db.notifications, &c)
	return nil
}

func (s *NotificationStore) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, n := range s.db.notifications {
		if n.ID == id {
			c := *n
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *NotificationStore) GetForReceiver(ctx context.Context, receiverID string) ([]model.Notification, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]model.Notification, 0, 16)
	for _, n := range s.db.notifications {
		if n.ReceiverID == receiverID {
			out = append(out, *n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *NotificationStore) MarkRead(ctx context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, n := range s.db.notifications {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

type UserStore struct {
	db *DB
}

var _ repository.UserStore = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c := *u
	s.db.users[u.ID] = &c
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *UserStore) Search(ctx context.Context, query string, limit int) ([]model.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	q := strings.ToLower(query)
	out := make([]model.User, 0, limit)
	for _, u := range s.db.users {
		if strings.Contains(strings.ToLower(u.Username), q) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *UserStore) SetOnline(ctx context.Context, userID string, online bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if u, ok := s.db.users[userID]; ok {
		u.IsOnline = online
		u.LastSeenAt = time.Now().UTC()
	}
	return nil
}

type SubscriptionStore struct {
	db *DB
}

var _ repository.SubscriptionStore = (*SubscriptionStore)(nil)

func (s *SubscriptionStore) Save(ctx context.Context, sub *model.PushSubscription) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.subscriptions {
		if existing.UserID == sub.UserID && existing.Endpoint == sub.Endpoint {
			existing.P256dh, existing.Auth = sub.P256dh, sub.Auth
			return nil
		}
	}
	c := *sub
	s.db.subscriptions = append(s.db.subscriptions, &c)
	return nil
}

func (s *SubscriptionStore) GetForUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]model.PushSubscription, 0, 2)
	for _, sub := range s.db.subscriptions {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *SubscriptionStore) Delete(ctx context.Context, userID, endpoint string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	kept := make([]*model.PushSubscription, 0, len(s.db.subscriptions))
	for _, sub := range s.db.subscriptions {
		if !(sub.UserID == userID && sub.Endpoint == endpoint) {
			kept = append(kept, sub)
		}
	}
	s.db.subscriptions = kept
	return nil
}
