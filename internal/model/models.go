// Package model defines the data models for the typing test backend.
package model

import "time"

// Test modes. Mode2 carries the numeric variant of the mode: the duration in
// seconds for ModeTime, the word count for ModeWords.
const (
	ModeTime   = "time"
	ModeWords  = "words"
	ModeCustom = "custom"
)

// Result represents one completed typing test attempt as submitted by a
// client. Results are immutable once persisted.
// Requirements: 1.1 - result submission payload
type Result struct {
	UID          string    `json:"uid"`
	Name         string    `json:"name,omitempty"`
	Mode         string    `json:"mode"`
	Mode2        int       `json:"mode2"`
	Language     string    `json:"language"`
	Difficulty   string    `json:"difficulty"`
	Punctuation  bool      `json:"punctuation"`
	WPM          float64   `json:"wpm"`
	RawWPM       float64   `json:"rawWpm"`
	Acc          float64   `json:"acc"`
	Consistency  float64   `json:"consistency"`
	CorrectChars float64   `json:"correctChars"`
	AllChars     float64   `json:"allChars,omitempty"`
	TestDuration float64   `json:"testDuration"`
	KeySpacing   []float64 `json:"keySpacing,omitempty"`
	KeyDuration  []float64 `json:"keyDuration,omitempty"`
	Timestamp    int64     `json:"timestamp"`
	BailedOut    bool      `json:"bailedOut,omitempty"`

	// Derived statistics attached before persistence. Nil when the raw
	// timing arrays were missing or malformed.
	KeySpacingStats  *KeyStats `json:"keySpacingStats,omitempty"`
	KeyDurationStats *KeyStats `json:"keyDurationStats,omitempty"`

	// True when the raw timing arrays were stripped before persistence.
	// Only 15s and 60s time-mode results keep their raw samples.
	TimingRedacted bool `json:"timingRedacted,omitempty"`
}

// KeyStats holds the mean and standard deviation of a timing sample
// sequence, both in milliseconds.
type KeyStats struct {
	Average float64 `json:"average"`
	SD      float64 `json:"sd"`
}

// Redact strips the raw timing sample arrays from the result, leaving only
// the derived statistics. Applied to every category except 15s/60s time mode.
// Requirements: 3.5 - timing sample retention policy
func (r *Result) Redact() {
	r.KeySpacing = nil
	r.KeyDuration = nil
	r.TimingRedacted = true
}

// KeepsRawTiming reports whether this result's category retains its raw
// timing sample arrays in storage.
func (r *Result) KeepsRawTiming() bool {
	return r.Mode == ModeTime && (r.Mode2 == 15 || r.Mode2 == 60)
}

// PersonalBest is a single best entry within a (mode, mode2) bucket, keyed
// by (language, difficulty, punctuation).
// Requirements: 5.1 - personal best record shape
type PersonalBest struct {
	Language    string  `json:"language"`
	Difficulty  string  `json:"difficulty"`
	Punctuation bool    `json:"punctuation"`
	WPM         float64 `json:"wpm"`
	Acc         float64 `json:"acc"`
	Raw         float64 `json:"raw"`
}

// PersonalBestSet maps mode -> mode2 -> best entries. Lazily created on the
// user's first accepted result.
type PersonalBestSet map[string]map[string][]PersonalBest

// LeaderboardEntry is one row of a ranked board.
// Requirements: 4.1 - leaderboard entry shape
type LeaderboardEntry struct {
	UID         string  `json:"uid,omitempty"`
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

// Board types.
const (
	BoardTypeGlobal = "global"
	BoardTypeDaily  = "daily"
)

// DefaultBoardSize is the capacity given to lazily created leaderboards.
const DefaultBoardSize = 20

// Leaderboard is the persisted form of a ranked board.
type Leaderboard struct {
	ID    string             `json:"id"`
	Mode  string             `json:"mode"`
	Mode2 int                `json:"mode2"`
	Type  string             `json:"type"`
	Size  int                `json:"size"`
	Board []LeaderboardEntry `json:"board"`
}

// LeaderboardHistory is an immutable archived daily board, keyed by
// archival date and category.
type LeaderboardHistory struct {
	ID         string      `json:"id"`
	ArchivedOn time.Time   `json:"archivedOn"`
	Data       Leaderboard `json:"data"`
}

// BotCommand is an outbound instruction appended for the external chat-bot
// worker. This service only ever appends; the worker marks them executed.
// Requirements: 6.4, 1.8 - outbound bot command queue
type BotCommand struct {
	ID          int64     `json:"id"`
	Command     string    `json:"command"`
	Arguments   []any     `json:"arguments"`
	Executed    bool      `json:"executed"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Bot command names consumed by the external worker.
const (
	CmdAnnounceLbUpdate      = "sayLbUpdate"
	CmdUpdateDiscordRole     = "updateRole"
	CmdAnnounceDailyLbResult = "announceDailyLbResult"
)

// User is the account profile as far as this service is concerned. Identity
// verification happens upstream; uid arrives as an opaque verified string.
type User struct {
	UID            string          `json:"uid"`
	Name           string          `json:"name"`
	Banned         bool            `json:"banned"`
	Verified       *bool           `json:"verified"`
	EmailVerified  bool            `json:"emailVerified"`
	DiscordID      string          `json:"discordId"`
	CompletedTests *int64          `json:"completedTests"`
	DailyLbWins    map[string]int  `json:"dailyLbWins"`
	PersonalBests  PersonalBestSet `json:"personalBests"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// IsVerified reports whether the account passed manual review. An account
// that was never reviewed is not verified.
func (u *User) IsVerified() bool {
	return u.Verified != nil && *u.Verified
}

// NeedsManualVerification reports whether the account was explicitly flagged
// for manual review.
func (u *User) NeedsManualVerification() bool {
	return u.Verified != nil && !*u.Verified
}

// Result codes returned by the submission endpoint.
// Requirements: 1.10 - response codes
const (
	CodeSavedPB                 = 2  // saved, new personal best
	CodeSaved                   = 1  // saved, not a personal best
	CodeBadInput                = -1 // malformed or out-of-range input
	CodeBotDetected             = -2 // rejected by anti-cheat, bot signature
	CodeNeedsManualVerification = -3 // timing data insufficient for anti-cheat
	CodeValidationFailed        = -4 // rejected by the plausibility validator
	CodeInternalError           = -999
)
