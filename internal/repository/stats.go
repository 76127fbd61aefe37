package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// siteStatsID is the single row holding site-wide counters.
const siteStatsID = "stats"

// StatsRepository maintains site-wide counters via associative atomic
// increments, never read-modify-write.
// Requirements: 1.7 - completed test counters
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository instance.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// IncrementCompletedTests adds n to the site-wide completed-test counter,
// creating the row on first use.
func (r *StatsRepository) IncrementCompletedTests(ctx context.Context, n int64) error {
	const query = `
		INSERT INTO site_stats (id, completed_tests)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET completed_tests = site_stats.completed_tests + EXCLUDED.completed_tests
	`
	if _, err := r.pool.Exec(ctx, query, siteStatsID, n); err != nil {
		return fmt.Errorf("failed to increment completed tests: %w", err)
	}
	return nil
}

// GetCompletedTests returns the site-wide completed-test counter.
func (r *StatsRepository) GetCompletedTests(ctx context.Context) (int64, error) {
	const query = `SELECT COALESCE(MAX(completed_tests), 0) FROM site_stats WHERE id = $1`

	var count int64
	if err := r.pool.QueryRow(ctx, query, siteStatsID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get completed tests: %w", err)
	}
	return count, nil
}
