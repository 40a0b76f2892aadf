package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Gunvolt24/goodsfeed/internal/domain"
	"github.com/Gunvolt24/goodsfeed/internal/ports"
)

var _ ports.UserStore = (*UserRepository)(nil)

// UserRepository - список пользователей по времени регистрации.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository { return &UserRepository{pool: pool} }

func (r *UserRepository) FetchPage(ctx context.Context, p domain.Partition, cursor int64, limit int) ([]domain.Scored[domain.UserCard], error) {
	if p.Kind != domain.KindUserRegistry {
		return nil, fmt.Errorf("%w: %s is not a user partition", domain.ErrInvalidPartition, p)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, nickname, avatar, status, `+msExpr("create_time")+`
		FROM users
		WHERE create_time < `+fmt.Sprintf(cursorBound, 1)+`
		ORDER BY create_time DESC, id DESC
		LIMIT $2
	`, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("select users page: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Scored[domain.UserCard], 0, limit)
	for rows.Next() {
		var u domain.UserCard
		if err := rows.Scan(&u.ID, &u.Nickname, &u.Avatar, &u.Status, &u.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan users page: %w", err)
		}
		out = append(out, domain.Scored[domain.UserCard]{Item: u, Score: u.RegisteredAt})
	}
	return out, rows.Err()
}

func (r *UserRepository) FetchAllWithScore(ctx context.Context, p domain.Partition) ([]domain.IndexEntry, error) {
	if p.Kind != domain.KindUserRegistry {
		return nil, fmt.Errorf("%w: %s is not a user partition", domain.ErrInvalidPartition, p)
	}
	return collectEntries(ctx, r.pool, `SELECT id, `+msExpr("create_time")+` FROM users`, nil, "users")
}

func (r *UserRepository) FetchByIDs(ctx context.Context, ids []int64) ([]domain.UserCard, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, nickname, avatar, status, `+msExpr("create_time")+`
		FROM users WHERE id = ANY($1::bigint[])
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("select users by ids: %w", err)
	}
	defer rows.Close()

	out := make([]domain.UserCard, 0, len(ids))
	for rows.Next() {
		var u domain.UserCard
		if err := rows.Scan(&u.ID, &u.Nickname, &u.Avatar, &u.Status, &u.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan users: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func collectEntries(ctx context.Context, pool *pgxpool.Pool, sql string, args []any, what string) ([]domain.IndexEntry, error) {
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s ids: %w", what, err)
	}
	defer rows.Close()

	var out []domain.IndexEntry
	for rows.Next() {
		var e domain.IndexEntry
		if err := rows.Scan(&e.ID, &e.Score); err != nil {
			return nil, fmt.Errorf("scan %s ids: %w", what, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
