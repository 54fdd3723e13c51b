package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftchat/internal/logger"
	"github.com/driftchat/internal/model"
)

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

var _ SubscriptionStore = (*SubscriptionRepository)(nil)

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) Save(ctx context.Context, s *model.PushSubscription) error {
	defer logger.DeferLogDuration("sub.Save", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, endpoint) DO UPDATE SET p256dh = $3, auth = $4`,
		s.UserID, s.Endpoint, s.P256dh, s.Auth, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("subRepo.Save: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) GetForUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	defer logger.DeferLogDuration("sub.GetForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE user_id = $1`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("subRepo.GetForUser query: %w", err)
	}
	defer rows.Close()

	subs := make([]model.PushSubscription, 0, 4)
	for rows.Next() {
		var s model.PushSubscription
		if err := rows.Scan(&s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("subRepo.GetForUser scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subRepo.GetForUser rows: %w", err)
	}
	return subs, nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, userID, endpoint string) error {
	defer logger.DeferLogDuration("sub.Delete", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`,
		userID, endpoint,
	)
	if err != nil {
		return fmt.Errorf("subRepo.Delete: %w", err)
	}
	return nil
}
