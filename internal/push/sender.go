package push

import (
	"context"
	"encoding/json"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/driftchat/internal/logger"
	"github.com/driftchat/internal/model"
	"github.com/driftchat/internal/repository"
)

const sendTimeout = 10 * time.Second

// Sender delivers browser push notifications to users without a live
// connection. With a nil VAPID key pair it degrades to a no-op: subscriptions
// are still stored but nothing is sent.
type Sender struct {
	subs  repository.SubscriptionStore
	vapid *webpush.Options
}

func NewSender(subs repository.SubscriptionStore, keys *VAPIDKeys) *Sender {
	s := &Sender{subs: subs}
	if keys != nil && keys.PublicKey != "" && keys.PrivateKey != "" {
		s.vapid = &webpush.Options{
			Subscriber:      "driftchat-push",
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             30,
		}
	}
	return s
}

// Enabled reports whether a VAPID key pair is configured.
func (s *Sender) Enabled() bool { return s.vapid != nil }

// PublicKey returns the VAPID public key, or "" when push is disabled.
func (s *Sender) PublicKey() string {
	if s.vapid == nil {
		return ""
	}
	return s.vapid.VAPIDPublicKey
}

// Subscribe stores a browser subscription for the user.
func (s *Sender) Subscribe(ctx context.Context, sub *model.PushSubscription) error {
	return s.subs.Save(ctx, sub)
}

// Unsubscribe removes the subscription identified by endpoint.
func (s *Sender) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	return s.subs.Delete(ctx, userID, endpoint)
}

// Notify sends a push to every subscription of the user. Gone endpoints
// (404/410) are pruned from the store.
func (s *Sender) Notify(ctx context.Context, userID string, msg *model.Message) {
	if s.vapid == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	subs, err := s.subs.GetForUser(ctx, userID)
	if err != nil {
		logger.Errorf("push: subscriptions for %s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	title := "New message"
	if msg.Sender != nil {
		title = "New message from " + msg.Sender.Username
	}
	body := msg.Text
	if body == "" && msg.Image != "" {
		body = "Sent an image"
	}
	payload, err := json.Marshal(map[string]any{
		"title": title,
		"body":  body,
		"data": map[string]string{
			"message_id": msg.ID,
			"sender_id":  msg.SenderID,
			"group_id":   msg.GroupID,
		},
	})
	if err != nil {
		logger.Errorf("push: encode payload: %v", err)
		return
	}

	for _, sub := range subs {
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, s.vapid)
		if err != nil {
			logger.Errorf("push: send to %s: %v", truncate(sub.Endpoint, 50), err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			if err := s.subs.Delete(ctx, userID, sub.Endpoint); err != nil {
				logger.Errorf("push: prune %s: %v", truncate(sub.Endpoint, 50), err)
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
