/*
File: stability.go
Version: 1.0.2
Description: Blur stability gate. Blur-on is immediate, blur-off is delayed by
             minBlurDuration. The bias is deliberate: over-blurring beats
             flashing content during noisy classification runs.
*/

package main

import (
	"time"
)

// StabilityState is mutable, single-instance, owned by the decision engine's
// processing stream. Invariant: once blurred, it cannot flip clean until
// minBlurDuration has elapsed since the blur started.
type StabilityState struct {
	blurred          bool
	blurStart        time.Time
	consecutiveBad   int
	consecutiveClean int
}

// ApplyGate turns a raw per-frame verdict into the final blur-now boolean.
func (st *StabilityState) ApplyGate(inappropriate bool, now time.Time, minBlurDuration time.Duration) bool {
	if inappropriate {
		st.consecutiveBad++
		st.consecutiveClean = 0
		if !st.blurred {
			st.blurred = true
			st.blurStart = now
			if IsDebugEnabled() {
				LogDebug("[STABILITY] Blur ON (consecutive=%d)", st.consecutiveBad)
			}
		}
		return true
	}

	st.consecutiveClean++
	st.consecutiveBad = 0

	if st.blurred {
		held := now.Sub(st.blurStart)
		if held < minBlurDuration {
			// Hysteresis: hold the blur even though this frame is clean.
			return true
		}
		st.blurred = false
		if IsDebugEnabled() {
			LogDebug("[STABILITY] Blur OFF after %v (clean streak=%d)", held, st.consecutiveClean)
		}
	}
	return false
}

// Blurred reports the current gate state.
func (st *StabilityState) Blurred() bool {
	return st.blurred
}

// ConsecutiveBad returns the current inappropriate streak length.
func (st *StabilityState) ConsecutiveBad() int {
	return st.consecutiveBad
}

// Reset clears all state. Safe any time relative to its own stream.
func (st *StabilityState) Reset() {
	*st = StabilityState{}
}
