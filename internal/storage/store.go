package storage

import "context"

// SessionStore maps opaque session IDs to user IDs.
// Implementations: redis.Client, memory.Client (for -mem/-dev without Redis).
type SessionStore interface {
	// Put binds sessionID to userID for the session TTL.
	Put(ctx context.Context, sessionID, userID string) error
	// UserID resolves a session ID. Returns "" when the session is unknown
	// or expired.
	UserID(ctx context.Context, sessionID string) (string, error)
	// Delete invalidates the session.
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
