package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"typing-test-backend/internal/board"
	"typing-test-backend/internal/model"
	"typing-test-backend/internal/validator"
)

// Storage interfaces consumed by the orchestrator. Implemented by the
// repository layer; narrowed here so the submission flow can be exercised
// without a database.
type (
	// UserStore reads profiles and bumps the per-user test counter.
	UserStore interface {
		GetByID(ctx context.Context, uid string) (*model.User, error)
		IncrementCompletedTests(ctx context.Context, uid string, n int64) error
	}

	// ResultStore persists results and counts a user's history.
	ResultStore interface {
		Insert(ctx context.Context, result *model.Result) (string, error)
		CountByUser(ctx context.Context, uid string) (int64, error)
	}

	// SiteStats bumps the site-wide test counter.
	SiteStats interface {
		IncrementCompletedTests(ctx context.Context, n int64) error
	}

	// CommandQueue appends outbound bot commands.
	CommandQueue interface {
		Append(ctx context.Context, command string, arguments []any) error
	}

	// BoardApplier offers a result to one leaderboard.
	BoardApplier interface {
		Apply(ctx context.Context, result *model.Result, user *model.User, boardType string) *LeaderboardOutcome
	}

	// BestRecorder updates a user's personal bests.
	BestRecorder interface {
		Record(ctx context.Context, uid string, result *model.Result) (bool, error)
	}
)

// SubmitResponse is the submission endpoint's payload.
// Requirements: 1.10 - submission response shape
type SubmitResponse struct {
	ResultCode         int                 `json:"resultCode"`
	GlobalLeaderboard  *board.InsertResult `json:"globalLeaderboard"`
	DailyLeaderboard   *board.InsertResult `json:"dailyLeaderboard"`
	LbBanned           bool                `json:"lbBanned"`
	Name               string              `json:"name"`
	CreatedID          string              `json:"createdId,omitempty"`
	NeedsToVerify      bool                `json:"needsToVerify"`
	NeedsToVerifyEmail bool                `json:"needsToVerifyEmail"`
	Message            string              `json:"message,omitempty"`
}

// SubmissionService sequences a result submission end to end: input checks,
// plausibility validation, the anti-cheat gate, persistence, and the
// concurrent fan-out to both leaderboards and the personal-best tracker.
// Requirements: 1.1-1.10 - result submission orchestration
type SubmissionService struct {
	users   UserStore
	results ResultStore
	stats   SiteStats
	queue   CommandQueue
	boards  BoardApplier
	bests   BestRecorder
}

// NewSubmissionService creates a new SubmissionService instance.
func NewSubmissionService(
	users UserStore,
	results ResultStore,
	stats SiteStats,
	queue CommandQueue,
	boards BoardApplier,
	bests BestRecorder,
) *SubmissionService {
	return &SubmissionService{
		users:   users,
		results: results,
		stats:   stats,
		queue:   queue,
		boards:  boards,
		bests:   bests,
	}
}

// topAnnounceRank is the worst global rank (zero-based) that still triggers
// a leaderboard announcement.
const topAnnounceRank = 9

// payloadCharset is the only character set accepted in any scalar field or
// array element of a submitted result.
var payloadCharset = regexp.MustCompile(`^[0-9a-zA-Z._]+$`)

func charsetOK(v string) bool {
	return payloadCharset.MatchString(v)
}

func numberOK(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return charsetOK(strconv.FormatFloat(v, 'f', -1, 64))
}

// validateCharset applies the charset rule to every scalar and array
// element of the payload. A negative number fails through its minus sign.
// Requirements: 1.2 - structural input validation
func validateCharset(r *model.Result) bool {
	for _, s := range []string{r.Mode, r.Language, r.Difficulty} {
		if !charsetOK(s) {
			return false
		}
	}
	for _, n := range []float64{
		float64(r.Mode2), r.WPM, r.RawWPM, r.Acc, r.Consistency,
		r.CorrectChars, r.AllChars, r.TestDuration, float64(r.Timestamp),
	} {
		if !numberOK(n) {
			return false
		}
	}
	for _, arr := range [][]float64{r.KeySpacing, r.KeyDuration} {
		for _, v := range arr {
			if !numberOK(v) {
				return false
			}
		}
	}
	return true
}

// Submit runs the whole submission sequence and always produces a
// response; failures are mapped to result codes, never surfaced as errors.
func (s *SubmissionService) Submit(ctx context.Context, uid string, result *model.Result) *SubmitResponse {
	if uid == "" || result == nil {
		log.Error().Str("uid", uid).Msg("error saving result - missing input")
		return &SubmitResponse{ResultCode: model.CodeInternalError, Message: "missing input"}
	}
	result.UID = uid

	if !validateCharset(result) {
		log.Error().Str("uid", uid).Msg("error saving result - bad input")
		return &SubmitResponse{ResultCode: model.CodeBadInput}
	}

	if result.WPM <= 0 || result.WPM > 350 || result.Acc < 50 || result.Acc > 100 {
		return &SubmitResponse{ResultCode: model.CodeBadInput}
	}

	if !validator.Validate(result) && !validator.BailoutExempt(result) {
		return &SubmitResponse{ResultCode: model.CodeValidationFailed}
	}

	spacing := validator.ComputeKeyStats(result.KeySpacing)
	duration := validator.ComputeKeyStats(result.KeyDuration)
	if spacing == nil || duration == nil {
		log.Error().
			Str("uid", uid).
			Int("keySpacing", len(result.KeySpacing)).
			Int("keyDuration", len(result.KeyDuration)).
			Msg("cant verify key spacing or duration")
	}
	result.KeySpacingStats = spacing
	result.KeyDurationStats = duration

	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		log.Error().Err(err).Str("uid", uid).Msg("error saving result when getting user data")
		return &SubmitResponse{ResultCode: model.CodeInternalError, Message: err.Error()}
	}
	result.Name = user.Name

	switch validator.CheckAntiCheat(result, user, spacing, duration) {
	case validator.GateBotSignature:
		return &SubmitResponse{ResultCode: model.CodeBotDetected}
	case validator.GateInsufficientData:
		return &SubmitResponse{ResultCode: model.CodeNeedsManualVerification}
	}

	// Raw timing samples are only retained for the short fixed-duration
	// categories; everything else persists statistics only.
	if !result.KeepsRawTiming() {
		result.Redact()
	}

	createdID, err := s.results.Insert(ctx, result)
	if err != nil {
		log.Error().Err(err).Str("uid", uid).Msg("error saving result when adding result to the db")
		return &SubmitResponse{ResultCode: model.CodeInternalError, Message: err.Error()}
	}

	// The two board updates and the personal-best check are independent
	// units of derived state; they run concurrently with no cross-document
	// atomicity between them.
	var (
		globalOut, dailyOut *LeaderboardOutcome
		isPB                bool
		pbErr               error
		wg                  sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		globalOut = s.boards.Apply(ctx, result, user, model.BoardTypeGlobal)
	}()
	go func() {
		defer wg.Done()
		dailyOut = s.boards.Apply(ctx, result, user, model.BoardTypeDaily)
	}()
	go func() {
		defer wg.Done()
		isPB, pbErr = s.bests.Record(ctx, uid, result)
	}()
	wg.Wait()

	if pbErr != nil {
		log.Error().Err(pbErr).Str("uid", uid).Msg("error saving result when checking for PB")
		return &SubmitResponse{ResultCode: model.CodeInternalError, Message: pbErr.Error()}
	}

	s.bumpCounters(ctx, user)

	resp := &SubmitResponse{
		GlobalLeaderboard:  globalOut.Placement,
		DailyLeaderboard:   dailyOut.Placement,
		LbBanned:           user.Banned,
		Name:               user.Name,
		CreatedID:          createdID,
		NeedsToVerify:      globalOut.NeedsToVerify,
		NeedsToVerifyEmail: globalOut.NeedsToVerifyEmail,
	}

	s.announceIfTopTen(ctx, result, user, globalOut)

	if isPB {
		resp.ResultCode = model.CodeSavedPB
		s.maybeUpdateRole(ctx, result, user)
		log.Info().Str("uid", uid).Float64("wpm", result.WPM).Msg("saved result (new PB)")
	} else {
		resp.ResultCode = model.CodeSaved
		log.Info().Str("uid", uid).Float64("wpm", result.WPM).Msg("saved result")
	}
	return resp
}

// bumpCounters increments both completed-test counters. An account
// predating the counter is backfilled from its stored result count.
// Counter trouble is logged, never surfaced; the result is already saved.
func (s *SubmissionService) bumpCounters(ctx context.Context, user *model.User) {
	n := int64(1)
	if user.CompletedTests == nil {
		count, err := s.results.CountByUser(ctx, user.UID)
		if err != nil {
			log.Error().Err(err).Str("uid", user.UID).Msg("failed to backfill completed test count")
			return
		}
		n = count
	}
	if err := s.users.IncrementCompletedTests(ctx, user.UID, n); err != nil {
		log.Error().Err(err).Str("uid", user.UID).Msg("failed to increment user test counter")
	}
	if err := s.stats.IncrementCompletedTests(ctx, n); err != nil {
		log.Error().Err(err).Str("uid", user.UID).Msg("failed to increment site test counter")
	}
}

// announceIfTopTen queues a leaderboard announcement when the result landed
// a strict improvement inside the global top ten.
// Requirements: 1.8 - top-ten announcement
func (s *SubmissionService) announceIfTopTen(ctx context.Context, result *model.Result, user *model.User, globalOut *LeaderboardOutcome) {
	p := globalOut.Placement
	if p == nil || !p.Inserted() || p.InsertedAt > topAnnounceRank || !p.NewBest {
		return
	}

	who := user.Name
	if user.DiscordID != "" {
		who = user.DiscordID
	}
	lbName := fmt.Sprintf("%s %d global", result.Mode, result.Mode2)
	log.Info().
		Str("uid", user.UID).
		Int("rank", p.InsertedAt+1).
		Str("leaderboard", lbName).
		Msg("sending command to the bot to announce lb update")

	err := s.queue.Append(ctx, model.CmdAnnounceLbUpdate, []any{who, p.InsertedAt + 1, lbName, result.WPM})
	if err != nil {
		log.Error().Err(err).Str("uid", user.UID).Msg("failed to queue lb announcement")
	}
}

// maybeUpdateRole queues an external role update for a new personal best on
// the canonical 60s category, for linked and not-flagged accounts.
// Requirements: 1.9 - role update on canonical PB
func (s *SubmissionService) maybeUpdateRole(ctx context.Context, result *model.Result, user *model.User) {
	if result.Mode != model.ModeTime || result.Mode2 != 60 {
		return
	}
	if user.DiscordID == "" || user.NeedsManualVerification() {
		return
	}

	wpm := int(math.Round(result.WPM))
	log.Info().Str("uid", user.UID).Int("wpm", wpm).Msg("sending command to the bot to update the role")
	if err := s.queue.Append(ctx, model.CmdUpdateDiscordRole, []any{user.DiscordID, wpm}); err != nil {
		log.Error().Err(err).Str("uid", user.UID).Msg("failed to queue role update")
	}
}
