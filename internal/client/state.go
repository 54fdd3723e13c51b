// Package client is a headless chat client: a REST/WebSocket API wrapper
// and the local view state it keeps consistent with the server. The state
// survives event replays and out-of-order deliveries without duplicating
// or dropping messages.
package client

import (
	"sort"
	"sync"
	"time"

	"github.com/driftchat/internal/model"
)

// ChatType distinguishes direct chats from groups.
type ChatType int

const (
	ChatDirect ChatType = iota
	ChatGroup
)

// ChatRef identifies the currently open conversation.
type ChatRef struct {
	Type ChatType
	ID   string
}

// GroupEntry is a sidebar group row with its recency marker.
type GroupEntry struct {
	model.Group
	LastMessageTimestamp *time.Time `json:"last_message_timestamp,omitempty"`
}

// State is the client-side view of the conversation data. All methods are
// safe for concurrent use; socket events and UI reads may race freely.
type State struct {
	mu sync.RWMutex

	// messages is the open conversation's history, oldest first.
	// seen indexes message IDs for O(1) replay dedupe.
	messages []model.Message
	seen     map[string]struct{}

	users  []model.SidebarUser
	groups []GroupEntry

	selected *ChatRef

	online map[string]struct{}

	notifications []model.Notification

	usersLoading    bool
	messagesLoading bool
}

func NewState() *State {
	return &State{
		seen:   make(map[string]struct{}),
		online: make(map[string]struct{}),
	}
}

// SelectChat opens a conversation. The message list resets; the caller is
// expected to fetch history next and hand it to ReplaceMessages.
func (s *State) SelectChat(ref ChatRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &ref
	s.messages = nil
	s.seen = make(map[string]struct{})
}

// ClearSelection closes the open conversation.
func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.messages = nil
	s.seen = make(map[string]struct{})
}

// Selected returns the open conversation, or nil.
func (s *State) Selected() *ChatRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	ref := *s.selected
	return &ref
}

// ReplaceMessages installs a freshly fetched history wholesale. Any
// real-time messages that raced the fetch and are missing from it will be
// re-added by their events replaying through ApplyIncoming.
func (s *State) ReplaceMessages(msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]model.Message, len(msgs))
	copy(s.messages, msgs)
	s.seen = make(map[string]struct{}, len(msgs))
	for i := range msgs {
		s.seen[msgs[i].ID] = struct{}{}
	}
	s.messagesLoading = false
}

// ApplyIncoming folds a pushed message into the state. Duplicates (replays,
// multi-tab echo) are dropped by ID. The message appends to the open
// history only when it belongs to the open conversation; the sidebar
// recency bump happens either way.
func (s *State) ApplyIncoming(selfID string, msg *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[msg.ID]; dup {
		return
	}

	if s.matchesSelected(selfID, msg) {
		s.seen[msg.ID] = struct{}{}
		s.messages = append(s.messages, *msg)
	}

	s.bumpChat(selfID, msg)
}

// ApplySent folds the caller's own send (the REST response) into the state.
// Same dedupe as ApplyIncoming, so a racing multi-tab echo is harmless.
func (s *State) ApplySent(selfID string, msg *model.Message) {
	s.ApplyIncoming(selfID, msg)
}

// matchesSelected reports whether msg belongs to the open conversation.
// Callers hold s.mu.
func (s *State) matchesSelected(selfID string, msg *model.Message) bool {
	if s.selected == nil {
		return false
	}
	if msg.IsGroup() {
		return s.selected.Type == ChatGroup && s.selected.ID == msg.GroupID
	}
	if s.selected.Type != ChatDirect {
		return false
	}
	// A direct message belongs to the chat with the *other* participant.
	other := msg.SenderID
	if msg.SenderID == selfID {
		other = msg.ReceiverID
	}
	return s.selected.ID == other
}

// bumpChat updates the sidebar recency marker for the message's
// conversation and re-sorts. Callers hold s.mu.
func (s *State) bumpChat(selfID string, msg *model.Message) {
	ts := msg.CreatedAt
	if msg.IsGroup() {
		for i := range s.groups {
			if s.groups[i].ID == msg.GroupID {
				s.groups[i].LastMessageTimestamp = &ts
				break
			}
		}
		sortGroups(s.groups)
		return
	}

	partner := msg.SenderID
	if msg.SenderID == selfID {
		partner = msg.ReceiverID
	}
	for i := range s.users {
		if s.users[i].ID == partner {
			s.users[i].LastMessageTimestamp = &ts
			break
		}
	}
	sortUsers(s.users)
}

// sortUsers orders freshest conversation first, users without history last.
// The sort is stable so equal rows keep their relative order.
func sortUsers(users []model.SidebarUser) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i].LastMessageTimestamp, users[j].LastMessageTimestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

func sortGroups(groups []GroupEntry) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].LastMessageTimestamp, groups[j].LastMessageTimestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// SetUsers installs the fetched sidebar list wholesale.
func (s *State) SetUsers(users []model.SidebarUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make([]model.SidebarUser, len(users))
	copy(s.users, users)
	sortUsers(s.users)
	s.usersLoading = false
}

// SetGroups installs the fetched group list wholesale.
func (s *State) SetGroups(groups []GroupEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = make([]GroupEntry, len(groups))
	copy(s.groups, groups)
	sortGroups(s.groups)
}

// SetOnline replaces the online set with the pushed snapshot.
func (s *State) SetOnline(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.online[id] = struct{}{}
	}
}

// IsOnline reports presence per the latest snapshot.
func (s *State) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok
}

// AddNotification folds a pushed notification into the list, newest first.
func (s *State) AddNotification(n *model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == n.ID {
			return
		}
	}
	s.notifications = append([]model.Notification{*n}, s.notifications...)
}

// SetNotifications installs the fetched list wholesale.
func (s *State) SetNotifications(notifs []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]model.Notification, len(notifs))
	copy(s.notifications, notifs)
}

// DropChat removes a direct chat from the sidebar (after hide or delete).
// When it is the open conversation the selection clears too.
func (s *State) DropChat(partnerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.users[:0]
	for _, u := range s.users {
		if u.ID != partnerID {
			kept = append(kept, u)
		}
	}
	s.users = kept
	if s.selected != nil && s.selected.Type == ChatDirect && s.selected.ID == partnerID {
		s.selected = nil
		s.messages = nil
		s.seen = make(map[string]struct{})
	}
}

// DropGroup removes a group from the sidebar (after delete).
func (s *State) DropGroup(groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.groups[:0]
	for _, g := range s.groups {
		if g.ID != groupID {
			kept = append(kept, g)
		}
	}
	s.groups = kept
	if s.selected != nil && s.selected.Type == ChatGroup && s.selected.ID == groupID {
		s.selected = nil
		s.messages = nil
		s.seen = make(map[string]struct{})
	}
}

// Messages returns a copy of the open conversation's history.
func (s *State) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Users returns a copy of the sidebar user list in display order.
func (s *State) Users() []model.SidebarUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SidebarUser, len(s.users))
	copy(out, s.users)
	return out
}

// Groups returns a copy of the sidebar group list in display order.
func (s *State) Groups() []GroupEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GroupEntry, len(s.groups))
	copy(out, s.groups)
	return out
}

// Notifications returns a copy of the notification list, newest first.
func (s *State) Notifications() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// SetLoading flags the users/messages fetches in flight.
func (s *State) SetLoading(users, messages bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usersLoading = users
	s.messagesLoading = messages
}

// Loading reports the in-flight fetch flags.
func (s *State) Loading() (users, messages bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usersLoading, s.messagesLoading
}
