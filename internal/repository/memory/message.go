package memory

import (
	"context"
	"sort"
	"time"

	"github.com/driftchat/internal/model"
	"github.com/driftchat/internal/repository"
)

type MessageStore struct {
	db *DB
}

var _ repository.MessageStore = (*MessageStore)(nil)

func (s *MessageStore) Create(ctx context.Context, m *model.Message) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.messages = append(s.db.messages, cloneMessage(m))
	return nil
}

func (s *MessageStore) GetByID(ctx context.Context, id string) (*model.Message, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, m := range s.db.messages {
		if m.ID == id {
			c := cloneMessage(m)
			s.db.attachSender(c)
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *MessageStore) GetConversation(ctx context.Context, viewerID, otherID string) ([]model.Message, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]model.Message, 0, 16)
	for _, m := range s.db.messages {
		if inDirectConversation(m, viewerID, otherID) && !m.HiddenForUser(viewerID) {
			c := cloneMessage(m)
			s.db.attachSender(c)
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MessageStore) GetGroupMessages(ctx context.Context, groupID string) ([]model.Message, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]model.Message, 0, 16)
	for _, m := range s.db.messages {
		if m.GroupID == groupID {
			c := cloneMessage(m)
			s.db.attachSender(c)
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MessageStore) MarkConversationRead(ctx context.Context, viewerID, otherID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, m := range s.db.messages {
		if m.SenderID == otherID && m.ReceiverID == viewerID {
			m.Read = true
		}
	}
	return nil
}

func (s *MessageStore) Delete(ctx context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for i, m := range s.db.messages {
		if m.ID == id {
			s.db.messages = append(s.db.messages[:i], s.db.messages[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *MessageStore) DeleteConversation(ctx context.Context, userA, userB string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	kept := make([]*model.Message, 0, len(s.db.messages))
	for _, m := range s.db.messages {
		if !inDirectConversation(m, userA, userB) {
			kept = append(kept, m)
		}
	}
	s.db.messages = kept
	return nil
}

func (s *MessageStore) DeleteGroupMessages(ctx context.Context, groupID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	kept := make([]*model.Message, 0, len(s.db.messages))
	for _, m := range s.db.messages {
		if m.GroupID != groupID {
			kept = append(kept, m)
		}
	}
	s.db.messages = kept
	return nil
}

func (s *MessageStore) HideConversation(ctx context.Context, viewerID, otherID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, m := range s.db.messages {
		if inDirectConversation(m, viewerID, otherID) && !m.HiddenForUser(viewerID) {
			m.HiddenFor = append(m.HiddenFor, viewerID)
		}
	}
	return nil
}

func (s *MessageStore) UnhideConversation(ctx context.Context, viewerID, otherID string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, m := range s.db.messages {
		if inDirectConversation(m, viewerID, otherID) {
			kept := m.HiddenFor[:0]
			for _, id := range m.HiddenFor {
				if id != viewerID {
					kept = append(kept, id)
				}
			}
			m.HiddenFor = kept
		}
	}
	return nil
}

func (s *MessageStore) SidebarUsers(ctx context.Context, viewerID string) ([]model.SidebarUser, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]model.SidebarUser, 0, len(s.db.users))
	for _, u := range s.db.users {
		if u.ID == viewerID {
			continue
		}
		var last *time.Time
		hidden := false
		for _, m := range s.db.messages {
			if !inDirectConversation(m, viewerID, u.ID) {
				continue
			}
			if m.HiddenForUser(viewerID) {
				hidden = true
				break
			}
			if last == nil || m.CreatedAt.After(*last) {
				t := m.CreatedAt
				last = &t
			}
		}
		if hidden {
			continue
		}
		out = append(out, model.SidebarUser{User: *u, LastMessageTimestamp: last})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessageTimestamp, out[j].LastMessageTimestamp
		switch {
		case a == nil && b == nil:
			return out[i].Username < out[j].Username
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		default:
			return out[i].Username < out[j].Username
		}
	})
	return out, nil
}

func (s *MessageStore) HiddenPartners(ctx context.Context, viewerID string) ([]model.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]model.User, 0, 4)
	for _, m := range s.db.messages {
		if m.ReceiverID == "" || !m.HiddenForUser(viewerID) {
			continue
		}
		var partnerID string
		switch viewerID {
		case m.SenderID:
			partnerID = m.ReceiverID
		case m.ReceiverID:
			partnerID = m.SenderID
		default:
			continue
		}
		if _, ok := seen[partnerID]; ok {
			continue
		}
		seen[partnerID] = struct{}{}
		if u, ok := s.db.users[partnerID]; ok {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
