// Package board implements the bounded, sorted, per-user de-duplicated
// ranking structure backing the leaderboards.
// Requirements: 4.1, 4.2, 4.3 - ranked board invariants
package board

import "typing-test-backend/internal/model"

// Sentinel values for InsertResult.InsertedAt.
const (
	// NotInserted means the candidate did not outrank anyone and the board
	// was already full.
	NotInserted = -1
	// WrongCategory means the candidate's (mode, mode2) does not match the
	// board's key.
	WrongCategory = -999
)

// InsertResult describes the outcome of a single insertion.
//
// FoundAt is the position the user's pre-existing entry occupied (after the
// new entry was spliced in), nil if the user had no entry. NewBest is true
// iff the new entry ranks equal or better than any prior entry from the
// same user; it guards against a race producing an out-of-order insert.
type InsertResult struct {
	InsertedAt int  `json:"insertedAt"`
	NewBest    bool `json:"newBest"`
	FoundAt    *int `json:"foundAt,omitempty"`
}

// Inserted reports whether the candidate was actually placed on the board.
func (r InsertResult) Inserted() bool {
	return r.InsertedAt >= 0
}

// Board is a capacity-bounded ranked list of leaderboard entries for a
// single (mode, mode2) category. It is a plain in-memory structure; callers
// provide whatever synchronization the storage layer requires.
type Board struct {
	Size    int
	Mode    string
	Mode2   int
	Type    string
	Entries []model.LeaderboardEntry
}

// New reconstructs a board from persisted entries, keeping only those
// matching the given category, then sorting and clipping to size.
func New(size int, mode string, mode2 int, boardType string, starting []model.LeaderboardEntry) *Board {
	b := &Board{
		Size:  size,
		Mode:  mode,
		Mode2: mode2,
		Type:  boardType,
	}
	for _, e := range starting {
		if e.Mode == mode && e.Mode2 == mode2 {
			b.Entries = append(b.Entries, e)
		}
	}
	b.sort()
	b.clip()
	return b
}

// outranks reports whether a ranks strictly better than b: higher wpm wins,
// then higher accuracy, then earlier timestamp (the first to achieve a score
// keeps priority).
func outranks(a, b model.LeaderboardEntry) bool {
	if a.WPM != b.WPM {
		return a.WPM > b.WPM
	}
	if a.Acc != b.Acc {
		return a.Acc > b.Acc
	}
	return a.Timestamp < b.Timestamp
}

// sort orders entries by (wpm desc, acc desc, timestamp asc) with a simple
// insertion sort; boards never exceed a few tens of entries.
func (b *Board) sort() {
	for i := 1; i < len(b.Entries); i++ {
		for j := i; j > 0 && outranks(b.Entries[j], b.Entries[j-1]); j-- {
			b.Entries[j], b.Entries[j-1] = b.Entries[j-1], b.Entries[j]
		}
	}
}

// clip truncates the board to its capacity from the tail.
func (b *Board) clip() {
	if len(b.Entries) > b.Size {
		b.Entries = b.Entries[:b.Size]
	}
}

// Insert places a candidate result on the board if it qualifies, removing
// the owner's previous entry if one exists.
// Requirements: 4.2 - insertion order, 4.3 - per-user de-duplication
func (b *Board) Insert(candidate model.LeaderboardEntry) InsertResult {
	if candidate.Mode != b.Mode || candidate.Mode2 != b.Mode2 {
		return InsertResult{InsertedAt: WrongCategory}
	}

	insertedAt := NotInserted
	for i, e := range b.Entries {
		if outranks(candidate, e) {
			b.Entries = append(b.Entries, model.LeaderboardEntry{})
			copy(b.Entries[i+1:], b.Entries[i:])
			b.Entries[i] = candidate
			insertedAt = i
			break
		}
	}
	if insertedAt == NotInserted && len(b.Entries) < b.Size {
		b.Entries = append(b.Entries, candidate)
		insertedAt = len(b.Entries) - 1
	}

	res := InsertResult{InsertedAt: insertedAt}
	if insertedAt >= 0 {
		res.FoundAt = b.dedupe(insertedAt, candidate.UID)
		// No prior entry means this is trivially the user's best.
		res.NewBest = res.FoundAt == nil || *res.FoundAt >= insertedAt
		b.clip()
	}
	return res
}

// dedupe enforces the one-entry-per-user invariant after an insertion at
// insertedAt. Of the user's two occurrences the worse-positioned one is
// removed, so an out-of-order insert cannot displace a better standing
// result. Returns the position the pre-existing entry occupied after the
// splice, nil if the user had no prior entry.
func (b *Board) dedupe(insertedAt int, uid string) *int {
	prev := -1
	for i, e := range b.Entries {
		if i != insertedAt && e.UID == uid {
			prev = i
			break
		}
	}
	if prev < 0 {
		return nil
	}
	remove := prev
	if insertedAt > prev {
		remove = insertedAt
	}
	b.Entries = append(b.Entries[:remove], b.Entries[remove+1:]...)
	return &prev
}
