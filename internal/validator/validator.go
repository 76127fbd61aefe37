// Package validator implements the numeric plausibility checks and the
// statistical anti-cheat gate applied to submitted results.
// Requirements: 2.1-2.5 - result plausibility validation
package validator

import (
	"math"

	"github.com/rs/zerolog/log"

	"typing-test-backend/internal/model"
)

// epsilon counteracts binary floating-point representation error when
// rounding half-up to two decimal places.
const epsilon = 2.220446049250313e-16

// RoundTo2 rounds half-up to two decimal places.
func RoundTo2(num float64) float64 {
	return math.Round((num+epsilon)*100) / 100
}

// Validate reports whether a submitted result is numerically plausible.
// Side-effect-free except diagnostic logging.
//
// A wpm recomputed from the correct-character count must agree with the
// submitted wpm within 1%, likewise raw wpm from the all-character count
// when present. Short fixed-duration tests additionally have their
// inter-keystroke interval sum and test duration checked against the
// category parameter.
func Validate(result *model.Result) bool {
	if result.WPM > result.RawWPM {
		log.Error().
			Str("uid", result.UID).
			Float64("wpm", result.WPM).
			Float64("rawWpm", result.RawWPM).
			Msg("could not validate result: wpm exceeds raw wpm")
		return false
	}

	wpm := RoundTo2(result.CorrectChars * (60 / result.TestDuration) / 5)
	if wpm < result.WPM-result.WPM*0.01 || wpm > result.WPM+result.WPM*0.01 {
		log.Error().
			Str("uid", result.UID).
			Float64("expected", wpm).
			Float64("submitted", result.WPM).
			Msg("could not validate result: wpm mismatch")
		return false
	}

	if result.AllChars != 0 {
		raw := RoundTo2(result.AllChars * (60 / result.TestDuration) / 5)
		if raw < result.RawWPM-result.RawWPM*0.01 || raw > result.RawWPM+result.RawWPM*0.01 {
			log.Error().
				Str("uid", result.UID).
				Float64("expected", raw).
				Float64("submitted", result.RawWPM).
				Msg("could not validate result: raw wpm mismatch")
			return false
		}
	}

	if result.Mode == model.ModeTime && (result.Mode2 == 15 || result.Mode2 == 60) {
		var sum float64
		for _, v := range result.KeySpacing {
			sum += v
		}
		sum /= 1000
		if sum < result.TestDuration-8 || sum > result.TestDuration+1 {
			log.Error().
				Str("uid", result.UID).
				Float64("keySpacingSum", sum).
				Float64("testDuration", result.TestDuration).
				Msg("could not validate key spacing sum")
			return false
		}

		if result.TestDuration < float64(result.Mode2)-1 || result.TestDuration > float64(result.Mode2)+1 {
			log.Error().
				Str("uid", result.UID).
				Float64("testDuration", result.TestDuration).
				Int("mode2", result.Mode2).
				Msg("could not validate test duration")
			return false
		}
	}

	return true
}

// BailoutExempt reports whether a failed validation is waived: the result
// was bailed out of a sufficiently long test.
// Requirements: 2.6 - bailout exemption
func BailoutExempt(result *model.Result) bool {
	if !result.BailedOut {
		return false
	}
	return (result.Mode == model.ModeTime && result.Mode2 >= 3600) ||
		(result.Mode == model.ModeWords && result.Mode2 >= 5000) ||
		result.Mode == model.ModeCustom
}
