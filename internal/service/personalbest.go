package service

import (
	"context"
	"fmt"
	"strconv"

	"typing-test-backend/internal/model"
	"typing-test-backend/internal/repository"
)

// PersonalBestTracker maintains each user's best-by-category records.
//
// The write is a full-document replacement of the best-set compared against
// the snapshot read at the start of the call. Two truly concurrent
// submissions from the same user can lose one update; accepted as a known
// limitation in exchange for a simple write path.
// Requirements: 5.1-5.4 - personal best tracking
type PersonalBestTracker struct {
	userRepo *repository.UserRepository
}

// NewPersonalBestTracker creates a new PersonalBestTracker instance.
func NewPersonalBestTracker(userRepo *repository.UserRepository) *PersonalBestTracker {
	return &PersonalBestTracker{userRepo: userRepo}
}

// Record compares the result against the user's stored bests and persists
// the updated set when it improves one. Returns true iff this result set a
// new best.
func (t *PersonalBestTracker) Record(ctx context.Context, uid string, result *model.Result) (bool, error) {
	user, err := t.userRepo.GetByID(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("failed to load user for pb check: %w", err)
	}

	pbs := user.PersonalBests
	if pbs == nil {
		pbs = model.PersonalBestSet{}
	}

	improved := updateBestSet(pbs, result)
	if !improved {
		return false, nil
	}

	if err := t.userRepo.UpdatePersonalBests(ctx, uid, pbs); err != nil {
		return false, fmt.Errorf("failed to save personal bests: %w", err)
	}
	return true, nil
}

// updateBestSet merges a result into a best-set in place. A tuple with no
// existing entry is a best by definition; an existing entry is replaced
// only when the new wpm is strictly greater.
func updateBestSet(pbs model.PersonalBestSet, result *model.Result) bool {
	mode2Key := strconv.Itoa(result.Mode2)

	byMode2, ok := pbs[result.Mode]
	if !ok {
		byMode2 = map[string][]model.PersonalBest{}
		pbs[result.Mode] = byMode2
	}

	entries := byMode2[mode2Key]
	for i, pb := range entries {
		if pb.Punctuation == result.Punctuation &&
			pb.Difficulty == result.Difficulty &&
			pb.Language == result.Language {
			if pb.WPM < result.WPM {
				entries[i].WPM = result.WPM
				entries[i].Acc = result.Acc
				entries[i].Raw = result.RawWPM
				return true
			}
			return false
		}
	}

	byMode2[mode2Key] = append(entries, model.PersonalBest{
		Language:    result.Language,
		Difficulty:  result.Difficulty,
		Punctuation: result.Punctuation,
		WPM:         result.WPM,
		Acc:         result.Acc,
		Raw:         result.RawWPM,
	})
	return true
}
