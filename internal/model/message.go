package model

import "time"

// Message is a single direct or group message. Exactly one of ReceiverID
// and GroupID is set; that field is the conversation key.
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id,omitempty"`
	GroupID    string     `json:"group_id,omitempty"`
	Text       string     `json:"text,omitempty"`
	Image      string     `json:"image,omitempty"`
	Read       bool       `json:"read"`
	HiddenFor  []string   `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	Sender     *UserBrief `json:"sender,omitempty"`
}

// IsGroup reports whether the message belongs to a group conversation.
func (m *Message) IsGroup() bool { return m.GroupID != "" }

// HiddenForUser reports whether userID has hidden this message.
func (m *Message) HiddenForUser(userID string) bool {
	for _, id := range m.HiddenFor {
		if id == userID {
			return true
		}
	}
	return false
}
