package model

import "time"

// PushSubscription is a browser Web Push subscription for one user.
// A user may hold several (one per browser/device).
type PushSubscription struct {
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
