package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"typing-test-backend/internal/model"
)

// ResultRepository handles the immutable per-user result history.
// Requirements: 1.5 - result persistence
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository instance.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Insert persists a (possibly redacted) result and returns the created
// record id.
func (r *ResultRepository) Insert(ctx context.Context, result *model.Result) (string, error) {
	const query = `
		INSERT INTO results (id, uid, payload, created_at)
		VALUES ($1, $2, $3, NOW())
	`
	id := uuid.NewString()
	if _, err := r.pool.Exec(ctx, query, id, result.UID, result); err != nil {
		return "", fmt.Errorf("failed to insert result: %w", err)
	}
	return id, nil
}

// CountByUser returns how many results a user has stored. Used to backfill
// the completed-test counter for accounts predating it.
func (r *ResultRepository) CountByUser(ctx context.Context, uid string) (int64, error) {
	const query = `SELECT COUNT(*) FROM results WHERE uid = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, uid).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}
