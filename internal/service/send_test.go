package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftchat/internal/model"
	"github.com/driftchat/internal/repository"
	"github.com/driftchat/internal/repository/memory"
)

type fakeDeliverer struct {
	msgs   []*model.Message
	notifs [][]*model.Notification
}

func (f *fakeDeliverer) Deliver(msg *model.Message, notifs []*model.Notification) {
	f.msgs = append(f.msgs, msg)
	f.notifs = append(f.notifs, notifs)
}

func newTestService(t *testing.T) (*SendService, *memory.DB, *fakeDeliverer) {
	t.Helper()
	db := memory.New()
	hub := &fakeDeliverer{}
	svc := NewSendService(db.Messages(), db.Groups(), db.Notifications(), db.Users(), hub)
	return svc, db, hub
}

func seedUser(t *testing.T, db *memory.DB, id, username string) {
	t.Helper()
	err := db.Users().Create(context.Background(), &model.User{
		ID:        id,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func TestSendDirect(t *testing.T) {
	svc, db, hub := newTestService(t)
	seedUser(t, db, "alice", "alice")
	seedUser(t, db, "bob", "bob")
	ctx := context.Background()

	msg, err := svc.SendDirect(ctx, "alice", "bob", "hello", "")
	if err != nil {
		t.Fatalf("SendDirect: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("message should get an ID")
	}
	if msg.Sender == nil || msg.Sender.Username != "alice" {
		t.Fatalf("sender brief = %+v, want alice", msg.Sender)
	}

	stored, err := db.Messages().GetByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("message not persisted: %v", err)
	}
	if stored.ReceiverID != "bob" {
		t.Fatalf("receiver = %s, want bob", stored.ReceiverID)
	}

	notifs, err := db.Notifications().GetForReceiver(ctx, "bob")
	if err != nil {
		t.Fatalf("GetForReceiver: %v", err)
	}
	if len(notifs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifs))
	}
	if notifs[0].MessageID != msg.ID || notifs[0].Type != model.NotificationNewMessage {
		t.Fatalf("notification = %+v", notifs[0])
	}

	if len(hub.msgs) != 1 || hub.msgs[0].ID != msg.ID {
		t.Fatalf("deliver calls = %d", len(hub.msgs))
	}
	if len(hub.notifs[0]) != 1 || hub.notifs[0][0].ReceiverID != "bob" {
		t.Fatalf("delivered notifications = %+v", hub.notifs[0])
	}
}

func TestSendDirectEmptyPayload(t *testing.T) {
	svc, db, hub := newTestService(t)
	seedUser(t, db, "alice", "alice")
	seedUser(t, db, "bob", "bob")

	_, err := svc.SendDirect(context.Background(), "alice", "bob", "   ", "")
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("err = %v, want ErrEmptyPayload", err)
	}
	if len(hub.msgs) != 0 {
		t.Fatal("nothing should be delivered")
	}
}

func TestSendDirectImageOnly(t *testing.T) {
	svc, db, _ := newTestService(t)
	seedUser(t, db, "alice", "alice")
	seedUser(t, db, "bob", "bob")

	if _, err := svc.SendDirect(context.Background(), "alice", "bob", "", "data:image/png;base64,xxx"); err != nil {
		t.Fatalf("image-only message should send: %v", err)
	}
}

func TestSendDirectUnknownReceiver(t *testing.T) {
	svc, db, hub := newTestService(t)
	seedUser(t, db, "alice", "alice")

	_, err := svc.SendDirect(context.Background(), "alice", "ghost", "hi", "")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(hub.msgs) != 0 {
		t.Fatal("nothing should be delivered")
	}
}

func TestSendDirectToSelf(t *testing.T) {
	svc, db, hub := newTestService(t)
	seedUser(t, db, "alice", "alice")
	ctx := context.Background()

	msg, err := svc.SendDirect(ctx, "alice", "alice", "note to self", "")
	if err != nil {
		t.Fatalf("self-send should work: %v", err)
	}
	notifs, _ := db.Notifications().GetForReceiver(ctx, "alice")
	if len(notifs) != 1 || notifs[0].MessageID != msg.ID {
		t.Fatalf("self-send should produce one notification, got %d", len(notifs))
	}
	if len(hub.msgs) != 1 {
		t.Fatal("self-send should still deliver")
	}
}

func TestSendGroup(t *testing.T) {
	svc, db, hub := newTestService(t)
	for _, u := range []string{"alice", "bob", "carol"} {
		seedUser(t, db, u, u)
	}
	ctx := context.Background()
	group := &model.Group{ID: "g1", Name: "team", Members: []string{"alice", "bob", "carol"}, CreatedAt: time.Now().UTC()}
	if err := db.Groups().Create(ctx, group); err != nil {
		t.Fatalf("create group: %v", err)
	}

	msg, err := svc.SendGroup(ctx, "alice", "g1", "standup?", "")
	if err != nil {
		t.Fatalf("SendGroup: %v", err)
	}
	if msg.GroupID != "g1" || msg.ReceiverID != "" {
		t.Fatalf("message targeting = %+v", msg)
	}

	// One notification per member except the sender.
	if len(hub.notifs[0]) != 2 {
		t.Fatalf("delivered notifications = %d, want 2", len(hub.notifs[0]))
	}
	for _, n := range hub.notifs[0] {
		if n.ReceiverID == "alice" {
			t.Fatal("sender must not be notified")
		}
	}
	aliceNotifs, _ := db.Notifications().GetForReceiver(ctx, "alice")
	if len(aliceNotifs) != 0 {
		t.Fatal("sender must not have a stored notification")
	}
}

func TestSendGroupNotMember(t *testing.T) {
	svc, db, hub := newTestService(t)
	for _, u := range []string{"alice", "bob", "mallory"} {
		seedUser(t, db, u, u)
	}
	ctx := context.Background()
	group := &model.Group{ID: "g1", Name: "team", Members: []string{"alice", "bob"}, CreatedAt: time.Now().UTC()}
	if err := db.Groups().Create(ctx, group); err != nil {
		t.Fatalf("create group: %v", err)
	}

	_, err := svc.SendGroup(ctx, "mallory", "g1", "hi", "")
	if !errors.Is(err, ErrNotMember) {
		t.Fatalf("err = %v, want ErrNotMember", err)
	}
	if len(hub.msgs) != 0 {
		t.Fatal("nothing should be delivered")
	}
}

type failingMessageStore struct {
	repository.MessageStore
}

func (failingMessageStore) Create(context.Context, *model.Message) error {
	return errors.New("disk full")
}

func TestPersistenceFailureAbortsDelivery(t *testing.T) {
	db := memory.New()
	hub := &fakeDeliverer{}
	svc := NewSendService(failingMessageStore{db.Messages()}, db.Groups(), db.Notifications(), db.Users(), hub)
	seedUser(t, db, "alice", "alice")
	seedUser(t, db, "bob", "bob")

	_, err := svc.SendDirect(context.Background(), "alice", "bob", "hi", "")
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if len(hub.msgs) != 0 {
		t.Fatal("failed persist must not reach the hub")
	}
	notifs, _ := db.Notifications().GetForReceiver(context.Background(), "bob")
	if len(notifs) != 0 {
		t.Fatal("no notification should exist for an unpersisted message")
	}
}
