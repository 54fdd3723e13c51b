package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftchat/internal/logger"
	"github.com/driftchat/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

var _ MessageStore = (*MessageRepository)(nil)

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const msgCols = `m.id, m.sender_id, COALESCE(m.receiver_id, ''), COALESCE(m.group_id, ''),
		m.text, m.image, m.read, m.hidden_for, m.created_at,
		u.id, u.username, u.full_name, u.avatar_url`

func scanMessage(row pgx.Row) (*model.Message, error) {
	m := &model.Message{}
	sender := &model.UserBrief{}
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.GroupID,
		&m.Text, &m.Image, &m.Read, &m.HiddenFor, &m.CreatedAt,
		&sender.ID, &sender.Username, &sender.FullName, &sender.AvatarURL)
	if err != nil {
		return nil, err
	}
	m.Sender = sender
	return m, nil
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	hidden := m.HiddenFor
	if hidden == nil {
		hidden = []string{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, group_id, text, image, read, hidden_for, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9)`,
		m.ID, m.SenderID, m.ReceiverID, m.GroupID, m.Text, m.Image, m.Read, hidden, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+msgCols+` FROM messages m JOIN users u ON u.id = m.sender_id WHERE m.id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

func (r *MessageRepository) queryMessages(ctx context.Context, op, sql string, args ...any) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.%s query: %w", op, err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, 64)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("msgRepo.%s scan: %w", op, err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.%s rows: %w", op, err)
	}
	return messages, nil
}

func (r *MessageRepository) GetConversation(ctx context.Context, viewerID, otherID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.GetConversation", time.Now())()
	return r.queryMessages(ctx, "GetConversation",
		`SELECT `+msgCols+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE ((m.sender_id = $1 AND m.receiver_id = $2) OR (m.sender_id = $2 AND m.receiver_id = $1))
		   AND NOT ($1 = ANY(m.hidden_for))
		 ORDER BY m.created_at ASC`, viewerID, otherID)
}

func (r *MessageRepository) GetGroupMessages(ctx context.Context, groupID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.GetGroupMessages", time.Now())()
	return r.queryMessages(ctx, "GetGroupMessages",
		`SELECT `+msgCols+`
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.group_id = $1
		 ORDER BY m.created_at ASC`, groupID)
}

func (r *MessageRepository) MarkConversationRead(ctx context.Context, viewerID, otherID string) error {
	defer logger.DeferLogDuration("msg.MarkConversationRead", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET read = true
		 WHERE sender_id = $1 AND receiver_id = $2 AND read = false`,
		otherID, viewerID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkConversationRead: %w", err)
	}
	return nil
}

func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("msg.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("msgRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MessageRepository) DeleteConversation(ctx context.Context, userA, userB string) error {
	defer logger.DeferLogDuration("msg.DeleteConversation", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM messages
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)`,
		userA, userB,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.DeleteConversation: %w", err)
	}
	return nil
}

func (r *MessageRepository) DeleteGroupMessages(ctx context.Context, groupID string) error {
	defer logger.DeferLogDuration("msg.DeleteGroupMessages", time.Now())()
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE group_id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("msgRepo.DeleteGroupMessages: %w", err)
	}
	return nil
}

func (r *MessageRepository) HideConversation(ctx context.Context, viewerID, otherID string) error {
	defer logger.DeferLogDuration("msg.HideConversation", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET hidden_for = array_append(hidden_for, $1)
		 WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		   AND NOT ($1 = ANY(hidden_for))`,
		viewerID, otherID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.HideConversation: %w", err)
	}
	return nil
}

func (r *MessageRepository) UnhideConversation(ctx context.Context, viewerID, otherID string) error {
	defer logger.DeferLogDuration("msg.UnhideConversation", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET hidden_for = array_remove(hidden_for, $1)
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)`,
		viewerID, otherID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.UnhideConversation: %w", err)
	}
	return nil
}

func (r *MessageRepository) SidebarUsers(ctx context.Context, viewerID string) ([]model.SidebarUser, error) {
	defer logger.DeferLogDuration("msg.SidebarUsers", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.username, u.full_name, u.avatar_url, u.is_online, u.last_seen_at, u.created_at, lm.created_at
		 FROM users u
		 LEFT JOIN LATERAL (
		     SELECT m.created_at FROM messages m
		     WHERE ((m.sender_id = u.id AND m.receiver_id = $1) OR (m.sender_id = $1 AND m.receiver_id = u.id))
		       AND NOT ($1 = ANY(m.hidden_for))
		     ORDER BY m.created_at DESC LIMIT 1
		 ) lm ON true
		 WHERE u.id != $1
		   AND NOT EXISTS (
		       SELECT 1 FROM messages h
		       WHERE ((h.sender_id = u.id AND h.receiver_id = $1) OR (h.sender_id = $1 AND h.receiver_id = u.id))
		         AND $1 = ANY(h.hidden_for)
		   )
		 ORDER BY lm.created_at DESC NULLS LAST, u.username ASC`, viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.SidebarUsers query: %w", err)
	}
	defer rows.Close()

	users := make([]model.SidebarUser, 0, 32)
	for rows.Next() {
		var su model.SidebarUser
		if err := rows.Scan(&su.ID, &su.Username, &su.FullName, &su.AvatarURL, &su.IsOnline,
			&su.LastSeenAt, &su.CreatedAt, &su.LastMessageTimestamp); err != nil {
			return nil, fmt.Errorf("msgRepo.SidebarUsers scan: %w", err)
		}
		users = append(users, su)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.SidebarUsers rows: %w", err)
	}
	return users, nil
}

func (r *MessageRepository) HiddenPartners(ctx context.Context, viewerID string) ([]model.User, error) {
	defer logger.DeferLogDuration("msg.HiddenPartners", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT u.id, u.username, u.full_name, u.avatar_url, u.is_online, u.last_seen_at, u.created_at
		 FROM messages m
		 JOIN users u ON u.id = CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
		 WHERE (m.sender_id = $1 OR m.receiver_id = $1)
		   AND m.receiver_id IS NOT NULL
		   AND $1 = ANY(m.hidden_for)`, viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.HiddenPartners query: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, 8)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.AvatarURL, &u.IsOnline, &u.LastSeenAt, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.HiddenPartners scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.HiddenPartners rows: %w", err)
	}
	return users, nil
}
