package common

import "math"

// SafeDiv divides a by b, returning 0 when the denominator is exactly
// zero. Every division of derived customer metrics goes through this
// helper so the zero/NaN/Inf policy lives in one place.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Sanitize collapses NaN and infinities to 0 and floors the result at
// zero. Derived features are guaranteed finite and non-negative.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return 0
	}
	return v
}
