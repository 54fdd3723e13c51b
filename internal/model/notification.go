package model

import "time"

type NotificationType string

const (
	NotificationNewMessage NotificationType = "new_message"
	NotificationChatUpdate NotificationType = "chat_update"
	NotificationOther      NotificationType = "other"
)

// Notification is one (event, recipient) row. Group sends create one per
// member excluding the sender. Only the receiver may mark it read; rows
// are never auto-deleted.
type Notification struct {
	ID         string           `json:"id"`
	SenderID   string           `json:"sender_id"`
	ReceiverID string           `json:"receiver_id"`
	MessageID  string           `json:"message_id,omitempty"`
	Type       NotificationType `json:"type"`
	Content    string           `json:"content"`
	Read       bool             `json:"read"`
	CreatedAt  time.Time        `json:"created_at"`
}
