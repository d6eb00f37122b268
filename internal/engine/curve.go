package engine

import "math"

// CrashPoint maps a 16-bit entropy draw onto the round's hidden crash
// threshold. This is an inverse-CDF draw from a Pareto-like distribution:
// U is uniform on (0, 1], so the threshold (1-h)/U exceeds m with
// probability (1-h)/m, capped at maxMultiplier. houseEdge is the fraction
// retained by the house over many rounds.
//
// The raw value falls below 1.0 for draws near the top of the range
// (U close to 1), so the result is floored at 1.0: a round cannot crash
// below the starting multiplier.
func CrashPoint(r uint16, houseEdge, maxMultiplier float64) float64 {
	u := (float64(r) + 1) / 65536.0
	m := (1 - houseEdge) / u

	if m > maxMultiplier {
		m = maxMultiplier
	}
	if m < 1.0 {
		m = 1.0
	}

	return m
}

// GrowthRate returns the exponent k such that exp(k*targetTime) equals
// targetMultiplier. The live curve climbs exponentially, not linearly.
func GrowthRate(targetMultiplier, targetTime float64) float64 {
	return math.Log(targetMultiplier) / targetTime
}

// Multiplier evaluates the live curve at elapsed seconds: exp(k*t) capped
// at maxMultiplier. Monotonically non-decreasing in t, equals 1 at t=0.
func Multiplier(elapsed, k, maxMultiplier float64) float64 {
	m := math.Exp(k * elapsed)
	if m > maxMultiplier {
		return maxMultiplier
	}
	return m
}
