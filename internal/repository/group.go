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

type GroupRepository struct {
	pool *pgxpool.Pool
}

var _ GroupStore = (*GroupRepository)(nil)

func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

func (r *GroupRepository) Create(ctx context.Context, g *model.Group) error {
	defer logger.DeferLogDuration("group.Create", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("groupRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO chat_groups (id, name, created_at) VALUES ($1, $2, $3)`,
		g.ID, g.Name, g.CreatedAt,
	); err != nil {
		return fmt.Errorf("groupRepo.Create insert: %w", err)
	}
	for _, userID := range g.Members {
		if _, err := tx.Exec(ctx,
			`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			g.ID, userID,
		); err != nil {
			return fmt.Errorf("groupRepo.Create member: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("groupRepo.Create commit: %w", err)
	}
	return nil
}

func (r *GroupRepository) GetByID(ctx context.Context, id string) (*model.Group, error) {
	defer logger.DeferLogDuration("group.GetByID", time.Now())()
	g := &model.Group{}
	err := r.pool.QueryRow(ctx,
		`SELECT g.id, g.name, g.created_at,
		        COALESCE(array_agg(gm.user_id) FILTER (WHERE gm.user_id IS NOT NULL), '{}')
		 FROM chat_groups g
		 LEFT JOIN group_members gm ON gm.group_id = g.id
		 WHERE g.id = $1
		 GROUP BY g.id`, id,
	).Scan(&g.ID, &g.Name, &g.CreatedAt, &g.Members)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("groupRepo.GetByID: %w", err)
	}
	return g, nil
}

func (r *GroupRepository) GetForUser(ctx context.Context, userID string) ([]model.Group, error) {
	defer logger.DeferLogDuration("group.GetForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.name, g.created_at,
		        COALESCE(array_agg(m.user_id) FILTER (WHERE m.user_id IS NOT NULL), '{}')
		 FROM chat_groups g
		 JOIN group_members gm ON gm.group_id = g.id AND gm.user_id = $1
		 LEFT JOIN group_members m ON m.group_id = g.id
		 GROUP BY g.id
		 ORDER BY g.created_at ASC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("groupRepo.GetForUser query: %w", err)
	}
	defer rows.Close()

	groups := make([]model.Group, 0, 8)
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.Members); err != nil {
			return nil, fmt.Errorf("groupRepo.GetForUser scan: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("groupRepo.GetForUser rows: %w", err)
	}
	return groups, nil
}

func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("group.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM chat_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("groupRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
