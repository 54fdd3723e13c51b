package model

import "time"

// User is owned by the auth/profile subsystem; the core only reads it.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"full_name"`
	AvatarURL  string    `json:"avatar_url"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserBrief is the subset of User embedded in message payloads.
type UserBrief struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

func (u *User) Brief() UserBrief {
	return UserBrief{ID: u.ID, Username: u.Username, FullName: u.FullName, AvatarURL: u.AvatarURL}
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// SidebarUser is a chat-list entry: a user plus the timestamp of the most
// recent non-hidden message in the conversation with the viewer, nil when
// the two have never messaged.
type SidebarUser struct {
	User
	LastMessageTimestamp *time.Time `json:"last_message_timestamp,omitempty"`
}
