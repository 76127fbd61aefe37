// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"typing-test-backend/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository handles user profile persistence. Account creation and
// identity live upstream; this service reads profiles and maintains the
// derived fields (personal bests, counters, daily win tallies).
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `
	uid, COALESCE(name, ''), banned, verified, email_verified,
	COALESCE(discord_id, ''), completed_tests,
	COALESCE(daily_lb_wins, '{}'::jsonb), COALESCE(personal_bests, '{}'::jsonb),
	created_at, updated_at
`

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.UID,
		&user.Name,
		&user.Banned,
		&user.Verified,
		&user.EmailVerified,
		&user.DiscordID,
		&user.CompletedTests,
		&user.DailyLbWins,
		&user.PersonalBests,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user profile by uid.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, uid string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	return scanUser(r.pool.QueryRow(ctx, query, uid))
}

// Create inserts a user profile. Exists for provisioning and tests; in
// production profiles arrive from the account service.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	const query = `
		INSERT INTO users (uid, name, banned, verified, email_verified, discord_id,
			completed_tests, daily_lb_wins, personal_bests, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		user.UID, user.Name, user.Banned, user.Verified, user.EmailVerified,
		user.DiscordID, user.CompletedTests, user.DailyLbWins, user.PersonalBests,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdatePersonalBests writes the user's full personal-best set. This is a
// plain document write against the previously read snapshot; concurrent
// submissions from the same user may lose one update, a documented
// limitation of the personal-best path.
// Requirements: 5.3 - personal best persistence
func (r *UserRepository) UpdatePersonalBests(ctx context.Context, uid string, pbs model.PersonalBestSet) error {
	const query = `
		UPDATE users
		SET personal_bests = $2, updated_at = NOW()
		WHERE uid = $1
	`
	result, err := r.pool.Exec(ctx, query, uid, pbs)
	if err != nil {
		return fmt.Errorf("failed to update personal bests: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IncrementCompletedTests adds n to the user's completed-test counter using
// an associative in-place increment, safe under arbitrary concurrency.
// Requirements: 1.7 - completed test counters
func (r *UserRepository) IncrementCompletedTests(ctx context.Context, uid string, n int64) error {
	const query = `
		UPDATE users
		SET completed_tests = COALESCE(completed_tests, 0) + $2, updated_at = NOW()
		WHERE uid = $1
	`
	result, err := r.pool.Exec(ctx, query, uid, n)
	if err != nil {
		return fmt.Errorf("failed to increment completed tests: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IncrementDailyWin adds one daily leaderboard win for a category key such
// as "time60", creating the tally structure lazily. The whole update is a
// single statement so concurrent rollovers of different categories cannot
// clobber each other.
// Requirements: 6.2 - daily win counter
func (r *UserRepository) IncrementDailyWin(ctx context.Context, uid string, category string) error {
	const query = `
		UPDATE users
		SET daily_lb_wins = jsonb_set(
			COALESCE(daily_lb_wins, '{}'::jsonb),
			ARRAY[$2],
			(COALESCE(daily_lb_wins->>$2, '0')::int + 1)::text::jsonb
		), updated_at = NOW()
		WHERE uid = $1
	`
	result, err := r.pool.Exec(ctx, query, uid, category)
	if err != nil {
		return fmt.Errorf("failed to increment daily win: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
