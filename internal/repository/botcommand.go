package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// BotCommandRepository appends outbound instructions for the external
// chat-bot worker. This service never reads the queue back.
// Requirements: 1.8, 6.4 - bot command outbox
type BotCommandRepository struct {
	pool *pgxpool.Pool
}

// NewBotCommandRepository creates a new BotCommandRepository instance.
func NewBotCommandRepository(pool *pgxpool.Pool) *BotCommandRepository {
	return &BotCommandRepository{pool: pool}
}

// Append adds a command record to the outbox, unexecuted.
func (r *BotCommandRepository) Append(ctx context.Context, command string, arguments []any) error {
	const query = `
		INSERT INTO bot_commands (command, arguments, executed, requested_at)
		VALUES ($1, $2, FALSE, NOW())
	`
	if _, err := r.pool.Exec(ctx, query, command, arguments); err != nil {
		return fmt.Errorf("failed to append bot command: %w", err)
	}
	return nil
}
