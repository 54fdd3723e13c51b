package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/driftchat/internal/model"
)

type fakePush struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakePush) Notify(_ context.Context, userID string, _ *model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
}

func (f *fakePush) notified() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestClient(h *Hub, userID string) *Client {
	return NewClient(h, nil, userID)
}

func drain(t *testing.T, c *Client, n int) []Event {
	t.Helper()
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		select {
		case ev := <-c.send:
			events = append(events, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
	return events
}

func TestRegisterIdempotent(t *testing.T) {
	h := NewHub(nil, nil, 0)
	c := newTestClient(h, "u1")

	if _, first := h.addClient(c); !first {
		t.Fatal("first register should report an offline->online transition")
	}
	if added, _ := h.addClient(c); added {
		t.Fatal("re-registering the same client must be a no-op")
	}
	if got := h.ConnectionCount(); got != 1 {
		t.Fatalf("connection count = %d, want 1", got)
	}

	if _, last := h.removeClient(c); !last {
		t.Fatal("removing the only connection should report online->offline")
	}
	if removed, _ := h.removeClient(c); removed {
		t.Fatal("removing an unknown client must be a no-op")
	}
	if got := h.ConnectionCount(); got != 0 {
		t.Fatalf("connection count after removal = %d, want 0", got)
	}
}

func TestSnapshotMultipleConnections(t *testing.T) {
	h := NewHub(nil, nil, 0)
	a1 := newTestClient(h, "alice")
	a2 := newTestClient(h, "alice")
	b := newTestClient(h, "bob")

	h.addClient(a1)
	if added, first := h.addClient(a2); !added || first {
		t.Fatal("second tab must register without re-reporting alice as newly online")
	}
	h.addClient(b)

	snap := h.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot = %v, want 2 users", snap)
	}
	if !h.IsOnline("alice") || !h.IsOnline("bob") {
		t.Fatal("both users should be online")
	}

	// Alice stays online while one tab remains.
	if _, last := h.removeClient(a1); last {
		t.Fatal("alice still has a live connection")
	}
	if !h.IsOnline("alice") {
		t.Fatal("alice should remain online after closing one tab")
	}
	if _, last := h.removeClient(a2); !last {
		t.Fatal("closing the last tab should take alice offline")
	}
	if h.IsOnline("alice") {
		t.Fatal("alice should be offline")
	}
}

func TestDeliverFansOutPerConnection(t *testing.T) {
	h := NewHub(nil, nil, 0)
	b1 := newTestClient(h, "bob")
	b2 := newTestClient(h, "bob")
	h.addClient(b1)
	h.addClient(b2)

	msg := &model.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"}
	notifs := []*model.Notification{{ID: "n1", SenderID: "alice", ReceiverID: "bob", MessageID: "m1"}}
	h.Deliver(msg, notifs)

	for _, c := range []*Client{b1, b2} {
		events := drain(t, c, 2)
		if events[0].Type != EventNewMessage {
			t.Fatalf("first event = %s, want %s", events[0].Type, EventNewMessage)
		}
		if events[1].Type != EventNewNotification {
			t.Fatalf("second event = %s, want %s", events[1].Type, EventNewNotification)
		}
	}
}

func TestDeliverOrderingAcrossSends(t *testing.T) {
	h := NewHub(nil, nil, 0)
	b := newTestClient(h, "bob")
	h.addClient(b)

	for _, id := range []string{"m1", "m2", "m3"} {
		msg := &model.Message{ID: id, SenderID: "alice", ReceiverID: "bob"}
		h.Deliver(msg, []*model.Notification{{ID: "n-" + id, ReceiverID: "bob", MessageID: id}})
	}

	events := drain(t, b, 6)
	wantIDs := []string{"m1", "m2", "m3"}
	for i, want := range wantIDs {
		msg, ok := events[i*2].Payload.(*model.Message)
		if !ok {
			t.Fatalf("event %d payload is %T, want *model.Message", i*2, events[i*2].Payload)
		}
		if msg.ID != want {
			t.Fatalf("message %d = %s, want %s", i, msg.ID, want)
		}
	}
}

func TestDeliverSkipsSenderAndPushesOffline(t *testing.T) {
	push := &fakePush{}
	h := NewHub(nil, push, 0)
	a := newTestClient(h, "alice")
	h.addClient(a)

	// bob has no connection: gets a browser push instead.
	msg := &model.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob"}
	h.Deliver(msg, []*model.Notification{{ID: "n1", SenderID: "alice", ReceiverID: "bob"}})

	deadline := time.Now().Add(time.Second)
	for {
		if calls := push.notified(); len(calls) == 1 {
			if calls[0] != "bob" {
				t.Fatalf("push went to %s, want bob", calls[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for push notify")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// No notification targeted alice, so her connection saw nothing.
	select {
	case ev := <-a.send:
		t.Fatalf("sender received unexpected event %s", ev.Type)
	default:
	}
}

func TestRunBroadcastsPresenceSnapshots(t *testing.T) {
	h := NewHub(nil, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	a := newTestClient(h, "alice")
	h.Register(a)
	events := drain(t, a, 1)
	if events[0].Type != EventOnlineUsers {
		t.Fatalf("event = %s, want %s", events[0].Type, EventOnlineUsers)
	}
	ids, ok := events[0].Payload.([]string)
	if !ok || len(ids) != 1 || ids[0] != "alice" {
		t.Fatalf("snapshot payload = %v, want [alice]", events[0].Payload)
	}

	b := newTestClient(h, "bob")
	h.Register(b)
	// Both connections get the updated snapshot.
	aEvents := drain(t, a, 1)
	bEvents := drain(t, b, 1)
	for _, ev := range []Event{aEvents[0], bEvents[0]} {
		ids, ok := ev.Payload.([]string)
		if !ok || len(ids) != 2 {
			t.Fatalf("snapshot payload = %v, want 2 users", ev.Payload)
		}
	}

	h.Unregister(b)
	aEvents = drain(t, a, 1)
	ids, ok = aEvents[0].Payload.([]string)
	if !ok || len(ids) != 1 || ids[0] != "alice" {
		t.Fatalf("snapshot after unregister = %v, want [alice]", aEvents[0].Payload)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestSecondTabReceivesSnapshot(t *testing.T) {
	h := NewHub(nil, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a1 := newTestClient(h, "alice")
	h.Register(a1)
	drain(t, a1, 1)

	// A second connection for an already-online user still triggers a
	// broadcast, so the new tab learns the current online set.
	a2 := newTestClient(h, "alice")
	h.Register(a2)
	events := drain(t, a2, 1)
	if events[0].Type != EventOnlineUsers {
		t.Fatalf("event = %s, want %s", events[0].Type, EventOnlineUsers)
	}
	ids, ok := events[0].Payload.([]string)
	if !ok || len(ids) != 1 || ids[0] != "alice" {
		t.Fatalf("snapshot payload = %v, want [alice]", events[0].Payload)
	}
	// The first tab sees the same snapshot again.
	drain(t, a1, 1)

	// Closing one of alice's tabs re-broadcasts to the survivor.
	h.Unregister(a2)
	events = drain(t, a1, 1)
	ids, ok = events[0].Payload.([]string)
	if !ok || len(ids) != 1 || ids[0] != "alice" {
		t.Fatalf("snapshot after tab close = %v, want [alice]", events[0].Payload)
	}
}

func TestStuckClientDoesNotBlockBroadcast(t *testing.T) {
	h := NewHub(nil, nil, 0)
	stuck := newTestClient(h, "alice")
	h.addClient(stuck)

	// Jam the client's send buffer and the unregister channel so the
	// broadcast cannot enqueue anywhere.
	for i := 0; i < sendBufSize; i++ {
		stuck.send <- Event{Type: EventOnlineUsers}
	}
	for i := 0; i < cap(h.unregister); i++ {
		h.unregister <- newTestClient(h, "filler")
	}

	done := make(chan struct{})
	go func() {
		h.broadcastPresence()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a stuck client")
	}
	select {
	case <-stuck.done:
	default:
		t.Fatal("stuck client should have been closed")
	}
}

func TestConnectionLimit(t *testing.T) {
	h := NewHub(nil, nil, 1)
	a := newTestClient(h, "alice")
	b := newTestClient(h, "bob")

	if added, _ := h.addClient(a); !added {
		t.Fatal("first client should register")
	}
	if added, _ := h.addClient(b); added {
		t.Fatal("client over the limit must be rejected")
	}
	if h.IsOnline("bob") {
		t.Fatal("rejected client must not appear online")
	}
}
