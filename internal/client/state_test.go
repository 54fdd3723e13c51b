package client

import (
	"testing"
	"time"

	"github.com/driftchat/internal/model"
)

const selfID = "me"

func ts(sec int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, sec, 0, time.UTC)
}

func directMsg(id, from, to string, at time.Time) *model.Message {
	return &model.Message{ID: id, SenderID: from, ReceiverID: to, Text: "t", CreatedAt: at}
}

func sidebar(ids ...string) []model.SidebarUser {
	users := make([]model.SidebarUser, 0, len(ids))
	for _, id := range ids {
		users = append(users, model.SidebarUser{User: model.User{ID: id, Username: id}})
	}
	return users
}

func TestApplyIncomingDedupe(t *testing.T) {
	s := NewState()
	s.SelectChat(ChatRef{Type: ChatDirect, ID: "bob"})

	msg := directMsg("m1", "bob", selfID, ts(1))
	s.ApplyIncoming(selfID, msg)
	s.ApplyIncoming(selfID, msg)
	s.ApplyIncoming(selfID, msg)

	if got := len(s.Messages()); got != 1 {
		t.Fatalf("messages = %d, want 1 after replay", got)
	}
}

func TestApplyIncomingOnlyOpenChat(t *testing.T) {
	s := NewState()
	s.SelectChat(ChatRef{Type: ChatDirect, ID: "bob"})

	// From carol: not the open chat, must not appear in the history.
	s.ApplyIncoming(selfID, directMsg("m1", "carol", selfID, ts(1)))
	if got := len(s.Messages()); got != 0 {
		t.Fatalf("messages = %d, want 0 for another chat", got)
	}

	// From bob: appends.
	s.ApplyIncoming(selfID, directMsg("m2", "bob", selfID, ts(2)))
	// My own message to bob (another tab echo): also the open chat.
	s.ApplyIncoming(selfID, directMsg("m3", selfID, "bob", ts(3)))

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].ID != "m2" || msgs[1].ID != "m3" {
		t.Fatalf("messages = %+v, want [m2 m3]", msgs)
	}
}

func TestApplyIncomingNoSelection(t *testing.T) {
	s := NewState()
	s.SetUsers(sidebar("bob"))
	s.ApplyIncoming(selfID, directMsg("m1", "bob", selfID, ts(1)))

	if got := len(s.Messages()); got != 0 {
		t.Fatalf("messages = %d, want 0 with nothing open", got)
	}
	// The sidebar bump still happens.
	users := s.Users()
	if users[0].LastMessageTimestamp == nil {
		t.Fatal("sidebar timestamp should be bumped")
	}
}

func TestSidebarReorderOnIncoming(t *testing.T) {
	s := NewState()
	users := sidebar("a", "b", "c")
	t0, t1, t2 := ts(10), ts(5), ts(1)
	users[0].LastMessageTimestamp = &t0
	users[1].LastMessageTimestamp = &t1
	users[2].LastMessageTimestamp = &t2
	s.SetUsers(users)

	// A message from c should move c to the front.
	s.ApplyIncoming(selfID, directMsg("m1", "c", selfID, ts(20)))

	got := s.Users()
	if got[0].ID != "c" || got[1].ID != "a" || got[2].ID != "b" {
		t.Fatalf("order = [%s %s %s], want [c a b]", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestSidebarUsersWithoutHistoryStayLast(t *testing.T) {
	s := NewState()
	users := sidebar("old", "fresh", "never")
	t0 := ts(1)
	users[0].LastMessageTimestamp = &t0
	t1 := ts(9)
	users[1].LastMessageTimestamp = &t1
	s.SetUsers(users)

	got := s.Users()
	if got[0].ID != "fresh" || got[1].ID != "old" || got[2].ID != "never" {
		t.Fatalf("order = [%s %s %s], want [fresh old never]", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestGroupMessageBumpsGroup(t *testing.T) {
	s := NewState()
	s.SetGroups([]GroupEntry{
		{Group: model.Group{ID: "g1", Name: "one"}},
		{Group: model.Group{ID: "g2", Name: "two"}},
	})
	s.SelectChat(ChatRef{Type: ChatGroup, ID: "g2"})

	msg := &model.Message{ID: "m1", SenderID: "bob", GroupID: "g2", Text: "t", CreatedAt: ts(1)}
	s.ApplyIncoming(selfID, msg)

	if got := len(s.Messages()); got != 1 {
		t.Fatalf("messages = %d, want 1", got)
	}
	groups := s.Groups()
	if groups[0].ID != "g2" {
		t.Fatalf("group order = [%s %s], want g2 first", groups[0].ID, groups[1].ID)
	}
}

func TestReplaceMessagesResetsDedupe(t *testing.T) {
	s := NewState()
	s.SelectChat(ChatRef{Type: ChatDirect, ID: "bob"})
	s.ApplyIncoming(selfID, directMsg("m1", "bob", selfID, ts(1)))

	// Refetch returns the same message plus an older one.
	s.ReplaceMessages([]model.Message{
		*directMsg("m0", selfID, "bob", ts(0)),
		*directMsg("m1", "bob", selfID, ts(1)),
	})

	// A replay of m1's event after the refetch must not duplicate it.
	s.ApplyIncoming(selfID, directMsg("m1", "bob", selfID, ts(1)))

	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].ID != "m0" || msgs[1].ID != "m1" {
		t.Fatalf("messages = %+v, want [m0 m1]", msgs)
	}
}

func TestDropChatClearsSelection(t *testing.T) {
	s := NewState()
	s.SetUsers(sidebar("bob", "carol"))
	s.SelectChat(ChatRef{Type: ChatDirect, ID: "bob"})
	s.ApplyIncoming(selfID, directMsg("m1", "bob", selfID, ts(1)))

	s.DropChat("bob")

	if s.Selected() != nil {
		t.Fatal("selection should clear when the open chat is dropped")
	}
	if got := len(s.Messages()); got != 0 {
		t.Fatalf("messages = %d, want 0", got)
	}
	users := s.Users()
	if len(users) != 1 || users[0].ID != "carol" {
		t.Fatalf("users = %+v, want only carol", users)
	}
}

func TestDropChatKeepsOtherSelection(t *testing.T) {
	s := NewState()
	s.SetUsers(sidebar("bob", "carol"))
	s.SelectChat(ChatRef{Type: ChatDirect, ID: "carol"})

	s.DropChat("bob")

	sel := s.Selected()
	if sel == nil || sel.ID != "carol" {
		t.Fatalf("selection = %+v, want carol", sel)
	}
}

func TestOnlineSnapshotReplaces(t *testing.T) {
	s := NewState()
	s.SetOnline([]string{"a", "b"})
	if !s.IsOnline("a") || !s.IsOnline("b") {
		t.Fatal("a and b should be online")
	}
	s.SetOnline([]string{"b"})
	if s.IsOnline("a") {
		t.Fatal("a should be gone after the new snapshot")
	}
	if !s.IsOnline("b") {
		t.Fatal("b should stay online")
	}
}

func TestAddNotificationDedupeAndOrder(t *testing.T) {
	s := NewState()
	s.AddNotification(&model.Notification{ID: "n1"})
	s.AddNotification(&model.Notification{ID: "n2"})
	s.AddNotification(&model.Notification{ID: "n1"})

	notifs := s.Notifications()
	if len(notifs) != 2 || notifs[0].ID != "n2" || notifs[1].ID != "n1" {
		t.Fatalf("notifications = %+v, want [n2 n1]", notifs)
	}
}
