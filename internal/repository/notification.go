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

type NotificationRepository struct {
	pool *pgxpool.Pool
}

var _ NotificationStore = (*NotificationRepository)(nil)

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	defer logger.DeferLogDuration("notif.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (id, sender_id, receiver_id, message_id, type, content, read, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
		n.ID, n.SenderID, n.ReceiverID, n.MessageID, n.Type, n.Content, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("notifRepo.Create: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	defer logger.DeferLogDuration("notif.GetByID", time.Now())()
	n := &model.Notification{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, sender_id, receiver_id, COALESCE(message_id, ''), type, content, read, created_at
		 FROM notifications WHERE id = $1`, id,
	).Scan(&n.ID, &n.SenderID, &n.ReceiverID, &n.MessageID, &n.Type, &n.Content, &n.Read, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("notifRepo.GetByID: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) GetForReceiver(ctx context.Context, receiverID string) ([]model.Notification, error) {
	defer logger.DeferLogDuration("notif.GetForReceiver", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, sender_id, receiver_id, COALESCE(message_id, ''), type, content, read, created_at
		 FROM notifications WHERE receiver_id = $1
		 ORDER BY created_at DESC`, receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("notifRepo.GetForReceiver query: %w", err)
	}
	defer rows.Close()

	notifs := make([]model.Notification, 0, 32)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.SenderID, &n.ReceiverID, &n.MessageID, &n.Type, &n.Content, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notifRepo.GetForReceiver scan: %w", err)
		}
		notifs = append(notifs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifRepo.GetForReceiver rows: %w", err)
	}
	return notifs, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("notif.MarkRead", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("notifRepo.MarkRead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
