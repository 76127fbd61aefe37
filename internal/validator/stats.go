package validator

import (
	"math"

	"github.com/rs/zerolog/log"

	"typing-test-backend/internal/model"
)

// Anti-cheat thresholds, all in milliseconds except the wpm and consistency
// bounds. Human typing exhibits irreducible timing jitter; suspiciously low
// variance at high speed is the primary bot signature.
const (
	gateMinWPM = 130

	hardSpacingSD   = 15
	hardDurationSD  = 10
	hardDurationAvg = 15

	softSpacingSD   = 25
	softDurationSD  = 15
	softDurationAvg = 20

	extremeWPM            = 200
	extremeMinConsistency = 60
)

// ComputeKeyStats derives the mean and population standard deviation of a
// timing sample sequence. Returns nil for an empty or missing sequence.
func ComputeKeyStats(samples []float64) *model.KeyStats {
	n := len(samples)
	if n == 0 {
		return nil
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range samples {
		sq += (v - mean) * (v - mean)
	}
	return &model.KeyStats{
		Average: mean,
		SD:      math.Sqrt(sq / float64(n)),
	}
}

// GateVerdict is the outcome of the anti-cheat gate.
type GateVerdict int

const (
	// GatePassed means the result may proceed.
	GatePassed GateVerdict = iota
	// GateBotSignature means the timing statistics match a bot signature.
	GateBotSignature
	// GateInsufficientData means statistics could not be computed and the
	// account needs manual verification before ranking this fast.
	GateInsufficientData
)

// CheckAntiCheat applies the statistical bot heuristic to a fast time-mode
// result. Verified accounts bypass the gate entirely; slower results and
// other modes are not gated.
// Requirements: 3.1-3.4 - anti-cheat gate
func CheckAntiCheat(result *model.Result, user *model.User, spacing, duration *model.KeyStats) GateVerdict {
	if result.Mode != model.ModeTime || result.WPM <= gateMinWPM {
		return GatePassed
	}
	if user.IsVerified() {
		return GatePassed
	}

	if spacing == nil || duration == nil {
		return GateInsufficientData
	}

	if spacing.SD <= hardSpacingSD ||
		duration.SD <= hardDurationSD ||
		duration.Average < hardDurationAvg ||
		(result.WPM > extremeWPM && result.Consistency < extremeMinConsistency) {
		log.Error().
			Str("uid", result.UID).
			Str("name", user.Name).
			Float64("wpm", result.WPM).
			Float64("rawWpm", result.RawWPM).
			Float64("acc", result.Acc).
			Float64("spacingSd", spacing.SD).
			Float64("durationSd", duration.SD).
			Float64("durationAvg", duration.Average).
			Msg("possible bot detected")
		return GateBotSignature
	}

	if (spacing.SD > hardSpacingSD && spacing.SD <= softSpacingSD) ||
		(duration.SD > hardDurationSD && duration.SD <= softDurationSD) ||
		(duration.Average > hardDurationAvg && duration.Average <= softDurationAvg) {
		log.Warn().
			Str("uid", result.UID).
			Str("name", user.Name).
			Float64("wpm", result.WPM).
			Float64("spacingSd", spacing.SD).
			Float64("durationSd", duration.SD).
			Float64("durationAvg", duration.Average).
			Msg("very close to bot threshold")
	}

	return GatePassed
}
