package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftchat/internal/model"
	"github.com/driftchat/internal/repository"
)

func TestGroupStore(t *testing.T) {
	db := New()
	seedUsers(t, db, "alice", "bob", "carol")
	ctx := context.Background()

	g := &model.Group{ID: "g1", Name: "team", Members: []string{"alice", "bob", "carol"}, CreatedAt: at(0)}
	if err := db.Groups().Create(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := db.Groups().GetByID(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Members) != 3 || !got.HasMember("carol") {
		t.Fatalf("members = %v", got.Members)
	}

	forBob, err := db.Groups().GetForUser(ctx, "bob")
	if err != nil || len(forBob) != 1 {
		t.Fatalf("GetForUser = %v, %v", forBob, err)
	}
	forDave, _ := db.Groups().GetForUser(ctx, "dave")
	if len(forDave) != 0 {
		t.Fatal("non-member must see no groups")
	}
}

func TestNotificationStoreOrderAndMarkRead(t *testing.T) {
	db := New()
	ctx := context.Background()
	for i, id := range []string{"n1", "n2", "n3"} {
		err := db.Notifications().Create(ctx, &model.Notification{
			ID: id, SenderID: "alice", ReceiverID: "bob",
			Type: model.NotificationNewMessage, CreatedAt: at(i),
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	notifs, err := db.Notifications().GetForReceiver(ctx, "bob")
	if err != nil {
		t.Fatalf("GetForReceiver: %v", err)
	}
	if len(notifs) != 3 || notifs[0].ID != "n3" || notifs[2].ID != "n1" {
		t.Fatalf("order = %+v, want newest first", notifs)
	}

	if err := db.Notifications().MarkRead(ctx, "n2"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, _ := db.Notifications().GetByID(ctx, "n2")
	if !got.Read {
		t.Fatal("n2 should be read")
	}
	if err := db.Notifications().MarkRead(ctx, "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUserSearch(t *testing.T) {
	db := New()
	ctx := context.Background()
	for _, name := range []string{"anna", "hannah", "bob"} {
		db.Users().Create(ctx, &model.User{ID: name, Username: name, CreatedAt: time.Now().UTC()})
	}

	got, err := db.Users().Search(ctx, "ANN", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("search ANN = %d users, want 2 (case-insensitive substring)", len(got))
	}

	got, _ = db.Users().Search(ctx, "ann", 1)
	if len(got) != 1 {
		t.Fatalf("limit not applied, got %d", len(got))
	}
}

func TestSetOnline(t *testing.T) {
	db := New()
	ctx := context.Background()
	db.Users().Create(ctx, &model.User{ID: "u1", Username: "u1", CreatedAt: time.Now().UTC()})

	if err := db.Users().SetOnline(ctx, "u1", true); err != nil {
		t.Fatalf("set online: %v", err)
	}
	u, _ := db.Users().GetByID(ctx, "u1")
	if !u.IsOnline {
		t.Fatal("u1 should be online")
	}

	if err := db.Users().SetOnline(ctx, "u1", false); err != nil {
		t.Fatalf("set offline: %v", err)
	}
	u, _ = db.Users().GetByID(ctx, "u1")
	if u.IsOnline {
		t.Fatal("u1 should be offline")
	}
	if u.LastSeenAt.IsZero() {
		t.Fatal("going offline should stamp last_seen_at")
	}
}

func TestSubscriptionStoreUpsertAndDelete(t *testing.T) {
	db := New()
	ctx := context.Background()

	sub := &model.PushSubscription{UserID: "u1", Endpoint: "https://push/1", P256dh: "k1", Auth: "a1", CreatedAt: at(0)}
	if err := db.Subscriptions().Save(ctx, sub); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Same endpoint again: upsert, not duplicate.
	sub2 := &model.PushSubscription{UserID: "u1", Endpoint: "https://push/1", P256dh: "k2", Auth: "a2", CreatedAt: at(1)}
	if err := db.Subscriptions().Save(ctx, sub2); err != nil {
		t.Fatalf("save again: %v", err)
	}

	subs, err := db.Subscriptions().GetForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(subs) != 1 || subs[0].P256dh != "k2" {
		t.Fatalf("subs = %+v, want one upserted entry", subs)
	}

	if err := db.Subscriptions().Delete(ctx, "u1", "https://push/1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	subs, _ = db.Subscriptions().GetForUser(ctx, "u1")
	if len(subs) != 0 {
		t.Fatal("subscription should be gone")
	}
}
