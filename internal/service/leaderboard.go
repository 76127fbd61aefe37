// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"typing-test-backend/internal/board"
	"typing-test-backend/internal/model"
	"typing-test-backend/internal/pkg/db"
	"typing-test-backend/internal/repository"
)

// rankedLanguage is the only language ranked on global and daily boards.
const rankedLanguage = "english"

// LeaderboardOutcome is the result of offering a submission to one board.
// Placement is nil when the result skipped leaderboard consideration, with
// the flags explaining why.
type LeaderboardOutcome struct {
	Placement          *board.InsertResult `json:"placement"`
	NeedsToVerify      bool                `json:"needsToVerify,omitempty"`
	NeedsToVerifyEmail bool                `json:"needsToVerifyEmail,omitempty"`
	NoName             bool                `json:"noName,omitempty"`
	Banned             bool                `json:"banned,omitempty"`
}

// LeaderboardViewEntry is a board entry as served to clients: the owning
// uid is scrubbed to an explicit null, never echoed back.
type LeaderboardViewEntry struct {
	UID         *string `json:"uid"`
	Name        string  `json:"name"`
	WPM         float64 `json:"wpm"`
	Raw         float64 `json:"raw"`
	Acc         float64 `json:"acc"`
	Mode        string  `json:"mode"`
	Mode2       int     `json:"mode2"`
	Timestamp   int64   `json:"timestamp"`
	Hidden      bool    `json:"hidden"`
	CurrentUser bool    `json:"currentUser,omitempty"`
}

// LeaderboardView is the read-path projection of a board: entries with the
// owning uid scrubbed, plus the next reset instant for daily boards.
type LeaderboardView struct {
	Mode      string                 `json:"mode"`
	Mode2     int                    `json:"mode2"`
	Type      string                 `json:"type"`
	Size      int                    `json:"size"`
	Board     []LeaderboardViewEntry `json:"board"`
	ResetTime *int64                 `json:"resetTime,omitempty"`
}

// LeaderboardService coordinates ranked board updates inside serializable
// transactions and serves the read path.
// Requirements: 4.4-4.6 - leaderboard transaction coordinator
type LeaderboardService struct {
	pool      *db.Pool
	lbRepo    *repository.LeaderboardRepository
	boardSize int
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(pool *db.Pool, lbRepo *repository.LeaderboardRepository, boardSize int) *LeaderboardService {
	if boardSize <= 0 {
		boardSize = model.DefaultBoardSize
	}
	return &LeaderboardService{
		pool:      pool,
		lbRepo:    lbRepo,
		boardSize: boardSize,
	}
}

// checkEligibility applies the owner preconditions checked before any
// transaction is opened. Returns a blocking outcome, or nil if the owner
// may be ranked.
func checkEligibility(user *model.User) *LeaderboardOutcome {
	if !user.EmailVerified {
		return &LeaderboardOutcome{NeedsToVerifyEmail: true}
	}
	if user.Name == "" {
		return &LeaderboardOutcome{NoName: true}
	}
	if user.Banned {
		return &LeaderboardOutcome{Banned: true}
	}
	if user.NeedsManualVerification() {
		return &LeaderboardOutcome{NeedsToVerify: true}
	}
	return nil
}

// qualifiesForRanking reports whether a result's category is ranked at all:
// english 15s and 60s time tests only.
func qualifiesForRanking(result *model.Result) bool {
	return result.Mode == model.ModeTime &&
		(result.Mode2 == 15 || result.Mode2 == 60) &&
		result.Language == rankedLanguage
}

// Apply offers an accepted result to the board of the given type. The board
// document is read, rebuilt and written back inside one serializable
// transaction; conflicting submissions for the same category serialize
// through the store's retry. Infrastructure failures are logged and
// reported as a nil placement so one board's trouble never blocks the rest
// of the submission.
func (s *LeaderboardService) Apply(ctx context.Context, result *model.Result, user *model.User, boardType string) *LeaderboardOutcome {
	if blocked := checkEligibility(user); blocked != nil {
		return blocked
	}
	if !qualifiesForRanking(result) {
		return &LeaderboardOutcome{}
	}

	candidate := model.LeaderboardEntry{
		UID:       result.UID,
		Name:      user.Name,
		WPM:       result.WPM,
		Raw:       result.RawWPM,
		Acc:       result.Acc,
		Mode:      result.Mode,
		Mode2:     result.Mode2,
		Timestamp: result.Timestamp,
	}

	var placement board.InsertResult
	err := db.RunSerializable(ctx, s.pool.Pool, func(tx pgx.Tx) error {
		lb, err := s.lbRepo.GetByCategoryTx(ctx, tx, result.Mode, result.Mode2, boardType)
		if errors.Is(err, repository.ErrLeaderboardNotFound) {
			log.Info().
				Str("mode", result.Mode).
				Int("mode2", result.Mode2).
				Str("type", boardType).
				Msg("no leaderboard found for category, creating")
			lb = &model.Leaderboard{
				Mode:  result.Mode,
				Mode2: result.Mode2,
				Type:  boardType,
				Size:  s.boardSize,
			}
			if err := s.lbRepo.CreateTx(ctx, tx, lb); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		b := board.New(lb.Size, result.Mode, result.Mode2, lb.Type, lb.Board)
		placement = b.Insert(candidate)

		if placement.Inserted() {
			lb.Size = b.Size
			lb.Board = b.Entries
			return s.lbRepo.SaveBoardTx(ctx, tx, lb)
		}
		return nil
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("uid", result.UID).
			Str("type", boardType).
			Str("mode", result.Mode).
			Int("mode2", result.Mode2).
			Msg("error while checking leaderboards")
		return &LeaderboardOutcome{}
	}

	return &LeaderboardOutcome{Placement: &placement}
}

// Get returns the current ranked list for a category with each entry's
// owning uid scrubbed, marking the requester's own entry if present. Daily
// boards also carry the next reset instant in Unix milliseconds.
// Requirements: 7.1, 7.2 - leaderboard read path
func (s *LeaderboardService) Get(ctx context.Context, mode string, mode2 int, boardType, requestingUID string) (*LeaderboardView, error) {
	lb, err := s.lbRepo.GetByCategory(ctx, mode, mode2, boardType)
	if err != nil {
		return nil, err
	}

	view := &LeaderboardView{
		Mode:  lb.Mode,
		Mode2: lb.Mode2,
		Type:  lb.Type,
		Size:  lb.Size,
		Board: make([]LeaderboardViewEntry, len(lb.Board)),
	}
	for i, e := range lb.Board {
		view.Board[i] = LeaderboardViewEntry{
			Name:        e.Name,
			WPM:         e.WPM,
			Raw:         e.Raw,
			Acc:         e.Acc,
			Mode:        e.Mode,
			Mode2:       e.Mode2,
			Timestamp:   e.Timestamp,
			Hidden:      e.Hidden,
			CurrentUser: e.UID != "" && e.UID == requestingUID,
		}
	}

	if boardType == model.BoardTypeDaily {
		reset := NextDailyReset(time.Now()).UnixMilli()
		view.ResetTime = &reset
	}
	return view, nil
}

// NextDailyReset returns the next UTC midnight after the given instant.
func NextDailyReset(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
