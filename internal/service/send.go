package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/driftchat/internal/logger"
	"github.com/driftchat/internal/model"
	"github.com/driftchat/internal/repository"
)

var (
	// ErrEmptyPayload is returned when a message carries neither text nor image.
	ErrEmptyPayload = errors.New("message must contain text or an image")
	// ErrNotMember is returned when the sender does not belong to the target group.
	ErrNotMember = errors.New("sender is not a member of the group")
)

// Deliverer pushes a persisted message and its notifications to live
// connections. Implemented by ws.Hub.
type Deliverer interface {
	Deliver(msg *model.Message, notifs []*model.Notification)
}

// SendService runs the send transaction: validate, persist the message,
// persist one notification per recipient, then hand everything to the
// delivery layer. Persistence failures abort before any push goes out.
type SendService struct {
	messages repository.MessageStore
	groups   repository.GroupStore
	notifs   repository.NotificationStore
	users    repository.UserStore
	hub      Deliverer
}

func NewSendService(
	messages repository.MessageStore,
	groups repository.GroupStore,
	notifs repository.NotificationStore,
	users repository.UserStore,
	hub Deliverer,
) *SendService {
	return &SendService{
		messages: messages,
		groups:   groups,
		notifs:   notifs,
		users:    users,
		hub:      hub,
	}
}

// SendDirect sends a message from senderID to receiverID. Sending to
// yourself is allowed and produces a self-notification.
func (s *SendService) SendDirect(ctx context.Context, senderID, receiverID, text, image string) (*model.Message, error) {
	defer logger.DeferLogDuration("send.SendDirect", time.Now())()

	if strings.TrimSpace(text) == "" && image == "" {
		return nil, ErrEmptyPayload
	}
	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		return nil, fmt.Errorf("send.SendDirect: receiver %s: %w", receiverID, err)
	}

	msg := &model.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedAt:  time.Now().UTC(),
	}
	return s.persistAndDeliver(ctx, msg, []string{receiverID})
}

// SendGroup sends a message to every member of the group except the sender.
func (s *SendService) SendGroup(ctx context.Context, senderID, groupID, text, image string) (*model.Message, error) {
	defer logger.DeferLogDuration("send.SendGroup", time.Now())()

	if strings.TrimSpace(text) == "" && image == "" {
		return nil, ErrEmptyPayload
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("send.SendGroup: group %s: %w", groupID, err)
	}
	if !group.HasMember(senderID) {
		return nil, ErrNotMember
	}

	recipients := make([]string, 0, len(group.Members)-1)
	for _, id := range group.Members {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}

	msg := &model.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		GroupID:   groupID,
		Text:      text,
		Image:     image,
		CreatedAt: time.Now().UTC(),
	}
	return s.persistAndDeliver(ctx, msg, recipients)
}

func (s *SendService) persistAndDeliver(ctx context.Context, msg *model.Message, recipients []string) (*model.Message, error) {
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("send: create message: %w", err)
	}

	sender, err := s.users.GetByID(ctx, msg.SenderID)
	if err != nil {
		return nil, fmt.Errorf("send: sender %s: %w", msg.SenderID, err)
	}
	brief := sender.Brief()
	msg.Sender = &brief

	notifs := make([]*model.Notification, 0, len(recipients))
	for _, receiverID := range recipients {
		n := &model.Notification{
			ID:         uuid.NewString(),
			SenderID:   msg.SenderID,
			ReceiverID: receiverID,
			MessageID:  msg.ID,
			Type:       model.NotificationNewMessage,
			Content:    fmt.Sprintf("New message from %s", sender.DisplayName()),
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.notifs.Create(ctx, n); err != nil {
			return nil, fmt.Errorf("send: create notification for %s: %w", receiverID, err)
		}
		notifs = append(notifs, n)
	}

	if s.hub != nil {
		s.hub.Deliver(msg, notifs)
	}
	return msg, nil
}
