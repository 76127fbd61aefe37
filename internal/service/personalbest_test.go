package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typing-test-backend/internal/model"
)

func bestSetWith(wpm float64) model.PersonalBestSet {
	return model.PersonalBestSet{
		"time": {
			"60": {{
				Language:    "english",
				Difficulty:  "normal",
				Punctuation: false,
				WPM:         wpm,
				Acc:         90,
				Raw:         wpm + 5,
			}},
		},
	}
}

func englishTimeResult(wpm float64) *model.Result {
	return &model.Result{
		Mode:       model.ModeTime,
		Mode2:      60,
		Language:   "english",
		Difficulty: "normal",
		WPM:        wpm,
		RawWPM:     wpm + 7,
		Acc:        96,
	}
}

func TestUpdateBestSet(t *testing.T) {
	t.Run("first result for a tuple is always a best", func(t *testing.T) {
		pbs := model.PersonalBestSet{}

		improved := updateBestSet(pbs, englishTimeResult(50))

		assert.True(t, improved)
		require.Len(t, pbs["time"]["60"], 1)
		assert.Equal(t, 50.0, pbs["time"]["60"][0].WPM)
	})

	t.Run("higher wpm replaces the stored best", func(t *testing.T) {
		pbs := bestSetWith(60)

		improved := updateBestSet(pbs, englishTimeResult(65))

		assert.True(t, improved)
		require.Len(t, pbs["time"]["60"], 1)
		best := pbs["time"]["60"][0]
		assert.Equal(t, 65.0, best.WPM)
		assert.Equal(t, 96.0, best.Acc)
		assert.Equal(t, 72.0, best.Raw)
	})

	t.Run("equal wpm is not an improvement", func(t *testing.T) {
		pbs := bestSetWith(60)

		improved := updateBestSet(pbs, englishTimeResult(60))

		assert.False(t, improved)
		assert.Equal(t, 90.0, pbs["time"]["60"][0].Acc, "stored best must be untouched")
	})

	t.Run("lower wpm is not an improvement", func(t *testing.T) {
		pbs := bestSetWith(60)

		improved := updateBestSet(pbs, englishTimeResult(55))

		assert.False(t, improved)
		assert.Equal(t, 60.0, pbs["time"]["60"][0].WPM)
	})

	t.Run("different tuple coexists under the same category", func(t *testing.T) {
		pbs := bestSetWith(60)
		result := englishTimeResult(40)
		result.Punctuation = true

		improved := updateBestSet(pbs, result)

		assert.True(t, improved)
		require.Len(t, pbs["time"]["60"], 2)
		assert.Equal(t, 60.0, pbs["time"]["60"][0].WPM)
		assert.Equal(t, 40.0, pbs["time"]["60"][1].WPM)
	})

	t.Run("different mode2 tracked separately", func(t *testing.T) {
		pbs := bestSetWith(60)
		result := englishTimeResult(40)
		result.Mode2 = 15

		improved := updateBestSet(pbs, result)

		assert.True(t, improved)
		require.Len(t, pbs["time"]["15"], 1)
		assert.Equal(t, 60.0, pbs["time"]["60"][0].WPM)
	})
}
