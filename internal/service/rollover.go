package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"typing-test-backend/internal/model"
	"typing-test-backend/internal/pkg/lock"
)

// rolloverLockKey guards a rollover run against an overlapping trigger.
const rolloverLockKey = "daily-rollover"

// Storage interfaces consumed by the rollover job.
type (
	// DailyBoardStore lists, archives, and clears daily leaderboards.
	DailyBoardStore interface {
		ListByType(ctx context.Context, boardType string) ([]*model.Leaderboard, error)
		Archive(ctx context.Context, lb *model.Leaderboard, archivedOn time.Time) error
		ResetBoard(ctx context.Context, id string) error
	}

	// WinCounter bumps a user's per-category daily win counter.
	WinCounter interface {
		IncrementDailyWin(ctx context.Context, uid string, category string) error
	}
)

// RolloverService archives and clears every daily leaderboard at each UTC
// midnight, crediting the winners and announcing the final standings.
// Requirements: 6.1-6.6 - daily rollover
type RolloverService struct {
	boards  DailyBoardStore
	users   WinCounter
	queue   CommandQueue
	locks   *lock.KeyedLock
	timeout time.Duration
}

// NewRolloverService creates a new RolloverService instance.
func NewRolloverService(boards DailyBoardStore, users WinCounter, queue CommandQueue, timeout time.Duration) *RolloverService {
	return &RolloverService{
		boards:  boards,
		users:   users,
		queue:   queue,
		locks:   lock.New(),
		timeout: timeout,
	}
}

// Run fires the rollover at every UTC midnight until the context ends.
func (s *RolloverService) Run(ctx context.Context) {
	for {
		next := NextDailyReset(time.Now().UTC())
		log.Info().Time("next", next).Msg("daily rollover scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("daily rollover scheduler stopped")
			return
		case <-timer.C:
		}

		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		if err := s.Rollover(runCtx); err != nil {
			log.Error().Err(err).Msg("daily rollover failed")
		}
		cancel()
	}
}

// Rollover processes every daily leaderboard once. Each category is handled
// independently; one failing category is logged and skipped without
// blocking the rest.
func (s *RolloverService) Rollover(ctx context.Context) error {
	if !s.locks.TryLock(rolloverLockKey) {
		log.Warn().Msg("daily rollover already running, skipping")
		return nil
	}
	defer s.locks.Unlock(rolloverLockKey)

	boards, err := s.boards.ListByType(ctx, model.BoardTypeDaily)
	if err != nil {
		return fmt.Errorf("failed to list daily leaderboards: %w", err)
	}

	archivedOn := time.Now().UTC()
	for _, lb := range boards {
		if err := s.rolloverBoard(ctx, lb, archivedOn); err != nil {
			log.Error().
				Err(err).
				Str("leaderboard", lb.ID).
				Msg("failed to roll over daily leaderboard")
		}
	}
	return nil
}

func (s *RolloverService) rolloverBoard(ctx context.Context, lb *model.Leaderboard, archivedOn time.Time) error {
	if len(lb.Board) == 0 {
		log.Info().Str("leaderboard", lb.ID).Msg("daily leaderboard is empty, skipping")
		return nil
	}

	winner := lb.Board[0]
	category := fmt.Sprintf("%s%d", lb.Mode, lb.Mode2)
	if err := s.users.IncrementDailyWin(ctx, winner.UID, category); err != nil {
		return fmt.Errorf("failed to credit daily win for %s: %w", winner.UID, err)
	}

	if err := s.boards.Archive(ctx, lb, archivedOn); err != nil {
		return fmt.Errorf("failed to archive: %w", err)
	}

	err := s.queue.Append(ctx, model.CmdAnnounceDailyLbResult, []any{lb})
	if err != nil {
		return fmt.Errorf("failed to queue daily result announcement: %w", err)
	}

	if err := s.boards.ResetBoard(ctx, lb.ID); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}

	log.Info().
		Str("leaderboard", lb.ID).
		Str("winner", winner.Name).
		Float64("wpm", winner.WPM).
		Msg("daily leaderboard rolled over")
	return nil
}
