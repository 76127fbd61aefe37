package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"typing-test-backend/internal/model"
)

// plausibleResult returns a 60s time-mode result whose numbers agree with
// each other: 250 correct chars over 60s is exactly 50 wpm.
func plausibleResult() *model.Result {
	return &model.Result{
		UID:          "user1",
		Mode:         model.ModeTime,
		Mode2:        60,
		Language:     "english",
		Difficulty:   "normal",
		WPM:          50,
		RawWPM:       55,
		Acc:          95,
		Consistency:  70,
		CorrectChars: 250,
		AllChars:     275,
		TestDuration: 60,
		KeySpacing:   evenSpacing(60, 300),
		KeyDuration:  evenSpacing(60, 300),
		Timestamp:    1600000000000,
	}
}

// evenSpacing builds n samples summing to total seconds, in milliseconds.
func evenSpacing(totalSeconds float64, n int) []float64 {
	samples := make([]float64, n)
	per := totalSeconds * 1000 / float64(n)
	for i := range samples {
		samples[i] = per
	}
	return samples
}

func TestRoundTo2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{50.0, 50.0},
		{49.994999, 49.99},
		{83.333333, 83.33},
		{0.125, 0.13},
		{1.005, 1.01}, // the epsilon nudge matters here
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, RoundTo2(tt.in), 1e-9)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Result)
		want   bool
	}{
		{
			name:   "plausible result passes",
			mutate: func(r *model.Result) {},
			want:   true,
		},
		{
			name:   "wpm above raw wpm fails",
			mutate: func(r *model.Result) { r.RawWPM = r.WPM - 1 },
			want:   false,
		},
		{
			name: "wpm within one percent of recomputed passes",
			mutate: func(r *model.Result) {
				// expected wpm is 50; 50.3 is within 1%
				r.WPM = 50.3
			},
			want: true,
		},
		{
			name: "wpm off by more than one percent fails",
			mutate: func(r *model.Result) {
				r.WPM = 55
				r.RawWPM = 60
			},
			want: false,
		},
		{
			name: "raw wpm mismatch fails",
			mutate: func(r *model.Result) {
				r.AllChars = 400 // implies raw 80, submitted 55
			},
			want: false,
		},
		{
			name: "missing all chars skips raw check",
			mutate: func(r *model.Result) {
				r.AllChars = 0
			},
			want: true,
		},
		{
			name: "key spacing sum too short fails",
			mutate: func(r *model.Result) {
				r.KeySpacing = evenSpacing(40, 300)
			},
			want: false,
		},
		{
			name: "key spacing sum slightly under duration passes",
			mutate: func(r *model.Result) {
				r.KeySpacing = evenSpacing(55, 300)
			},
			want: true,
		},
		{
			name: "test duration far from mode parameter fails",
			mutate: func(r *model.Result) {
				// numbers self-consistent at 62s, off the 60 +/- 1 window
				r.TestDuration = 62
				r.CorrectChars = 310
				r.AllChars = 0
				r.WPM = 60
				r.RawWPM = 65
				r.KeySpacing = evenSpacing(58, 300)
			},
			want: false,
		},
		{
			name: "long word test skips timing checks",
			mutate: func(r *model.Result) {
				r.Mode = model.ModeWords
				r.Mode2 = 100
				r.KeySpacing = nil
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := plausibleResult()
			tt.mutate(r)
			assert.Equal(t, tt.want, Validate(r))
		})
	}
}

func TestBailoutExempt(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		mode2  int
		bailed bool
		want   bool
	}{
		{"bailed hour-long time test", model.ModeTime, 3600, true, true},
		{"bailed long word test", model.ModeWords, 5000, true, true},
		{"bailed custom test", model.ModeCustom, 0, true, true},
		{"bailed short time test", model.ModeTime, 60, true, false},
		{"bailed short word test", model.ModeWords, 100, true, false},
		{"finished hour-long time test", model.ModeTime, 3600, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &model.Result{Mode: tt.mode, Mode2: tt.mode2, BailedOut: tt.bailed}
			assert.Equal(t, tt.want, BailoutExempt(r))
		})
	}
}
