package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"typing-test-backend/internal/model"
)

// ErrLeaderboardNotFound is returned when no board exists for a category.
var ErrLeaderboardNotFound = errors.New("leaderboard not found")

// BoardID builds the primary key for a leaderboard document, e.g.
// "time_60_global".
func BoardID(mode string, mode2 int, boardType string) string {
	return fmt.Sprintf("%s_%d_%s", mode, mode2, boardType)
}

// LeaderboardRepository handles leaderboard document persistence. The
// transactional methods take a pgx.Tx so the coordinator can run its
// read-insert-write cycle inside one serializable transaction.
// Requirements: 4.4, 4.5 - leaderboard document lifecycle
type LeaderboardRepository struct {
	pool *pgxpool.Pool
}

// NewLeaderboardRepository creates a new LeaderboardRepository instance.
func NewLeaderboardRepository(pool *pgxpool.Pool) *LeaderboardRepository {
	return &LeaderboardRepository{pool: pool}
}

const leaderboardColumns = `id, mode, mode2, type, size, COALESCE(board, '[]'::jsonb)`

func scanLeaderboard(row pgx.Row) (*model.Leaderboard, error) {
	var lb model.Leaderboard
	err := row.Scan(&lb.ID, &lb.Mode, &lb.Mode2, &lb.Type, &lb.Size, &lb.Board)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeaderboardNotFound
		}
		return nil, fmt.Errorf("failed to scan leaderboard: %w", err)
	}
	return &lb, nil
}

// GetByCategory retrieves the board for a category outside a transaction,
// for the read path.
func (r *LeaderboardRepository) GetByCategory(ctx context.Context, mode string, mode2 int, boardType string) (*model.Leaderboard, error) {
	query := `SELECT ` + leaderboardColumns + ` FROM leaderboards WHERE id = $1`
	return scanLeaderboard(r.pool.QueryRow(ctx, query, BoardID(mode, mode2, boardType)))
}

// GetByCategoryTx retrieves the board for a category inside a transaction.
func (r *LeaderboardRepository) GetByCategoryTx(ctx context.Context, tx pgx.Tx, mode string, mode2 int, boardType string) (*model.Leaderboard, error) {
	query := `SELECT ` + leaderboardColumns + ` FROM leaderboards WHERE id = $1`
	return scanLeaderboard(tx.QueryRow(ctx, query, BoardID(mode, mode2, boardType)))
}

// CreateTx initializes an empty leaderboard document for a category inside
// a transaction. Boards are created lazily on the first qualifying result.
// Concurrent first submissions race to create the same id; the loser's
// conflict surfaces as a retryable error and the retried transaction reads
// the committed row instead.
func (r *LeaderboardRepository) CreateTx(ctx context.Context, tx pgx.Tx, lb *model.Leaderboard) error {
	const query = `
		INSERT INTO leaderboards (id, mode, mode2, type, size, board)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	lb.ID = BoardID(lb.Mode, lb.Mode2, lb.Type)
	if lb.Board == nil {
		lb.Board = []model.LeaderboardEntry{}
	}
	_, err := tx.Exec(ctx, query, lb.ID, lb.Mode, lb.Mode2, lb.Type, lb.Size, lb.Board)
	if err != nil {
		return fmt.Errorf("failed to create leaderboard: %w", err)
	}
	return nil
}

// SaveBoardTx writes the updated size, type and entries back to the
// document inside the same transaction that read it.
func (r *LeaderboardRepository) SaveBoardTx(ctx context.Context, tx pgx.Tx, lb *model.Leaderboard) error {
	const query = `
		UPDATE leaderboards
		SET size = $2, type = $3, board = $4
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query, lb.ID, lb.Size, lb.Type, lb.Board); err != nil {
		return fmt.Errorf("failed to save leaderboard: %w", err)
	}
	return nil
}

// ListByType returns every leaderboard document of the given board type.
// Used by the daily rollover.
func (r *LeaderboardRepository) ListByType(ctx context.Context, boardType string) ([]*model.Leaderboard, error) {
	query := `SELECT ` + leaderboardColumns + ` FROM leaderboards WHERE type = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, boardType)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboards: %w", err)
	}
	defer rows.Close()

	var boards []*model.Leaderboard
	for rows.Next() {
		lb, err := scanLeaderboard(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, lb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboards: %w", err)
	}
	return boards, nil
}

// ResetBoard empties a live board, preserving its identity and capacity.
// Requirements: 6.5 - daily board reset
func (r *LeaderboardRepository) ResetBoard(ctx context.Context, id string) error {
	const query = `UPDATE leaderboards SET board = '[]'::jsonb WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset leaderboard: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLeaderboardNotFound
	}
	return nil
}

// Archive writes an immutable history record for an archived daily board,
// keyed by archival date and category. Re-running a rollover for the same
// day overwrites the same key rather than duplicating it.
// Requirements: 6.3 - leaderboard history
func (r *LeaderboardRepository) Archive(ctx context.Context, lb *model.Leaderboard, archivedOn time.Time) error {
	const query = `
		INSERT INTO leaderboard_history (id, archived_on, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET archived_on = EXCLUDED.archived_on, data = EXCLUDED.data
	`
	archivedOn = archivedOn.UTC()
	id := fmt.Sprintf("%s_%s_%d", archivedOn.Format("2006-01-02"), lb.Mode, lb.Mode2)
	if _, err := r.pool.Exec(ctx, query, id, archivedOn, lb); err != nil {
		return fmt.Errorf("failed to archive leaderboard: %w", err)
	}
	return nil
}

// GetHistory retrieves an archived daily board by its key.
func (r *LeaderboardRepository) GetHistory(ctx context.Context, id string) (*model.LeaderboardHistory, error) {
	const query = `SELECT id, archived_on, data FROM leaderboard_history WHERE id = $1`

	var h model.LeaderboardHistory
	err := r.pool.QueryRow(ctx, query, id).Scan(&h.ID, &h.ArchivedOn, &h.Data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeaderboardNotFound
		}
		return nil, fmt.Errorf("failed to get leaderboard history: %w", err)
	}
	return &h, nil
}
