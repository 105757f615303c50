/*
File: action.go
Version: 1.3.0
Description: Action executor. Dispatches global navigation actions through the
             platform bridge with a minimum gap between actions, an in-flight
             guard, and a close-tab -> back -> home failover chain.
*/

package main

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ActionBridge is the platform input boundary. Each call performs one global
// action and reports whether the platform accepted it.
type ActionBridge interface {
	PerformBack() error
	PerformHome() error
	PerformScroll() error
	CloseCurrentTab() error
}

type actionStep struct {
	name string
	fn   func() error
}

// ActionExecutor serializes corrective actions. At most one action executes at
// a time and consecutive actions are separated by the configured minimum gap,
// so a burst of detections cannot turn into an input storm.
type ActionExecutor struct {
	bridge   ActionBridge
	limiter  *rate.Limiter
	inFlight atomic.Bool

	dispatched uint64
	throttled  uint64
	failed     uint64
}

func NewActionExecutor(bridge ActionBridge, minGap time.Duration) *ActionExecutor {
	if minGap <= 0 {
		minGap = actionMinGap
	}
	return &ActionExecutor{
		bridge:  bridge,
		limiter: rate.NewLimiter(rate.Every(minGap), 1),
	}
}

// Execute maps a recommendation to a bridge call. Returns false when the
// action was throttled, coalesced with one already in flight, or every step
// in its chain failed.
func (ae *ActionExecutor) Execute(action RecommendedAction) bool {
	switch action {
	case ActScrollAway:
		return ae.dispatch("scroll_away", []actionStep{
			{"scroll", ae.bridge.PerformScroll},
			{"back", ae.bridge.PerformBack},
		})
	case ActNavigateBack:
		return ae.NavigateBack()
	case ActAutoCloseApp:
		return ae.CloseApp()
	default:
		// SELECTIVE_BLUR and GENTLE_REDIRECT are overlay concerns, not inputs.
		return false
	}
}

func (ae *ActionExecutor) NavigateBack() bool {
	return ae.dispatch("navigate_back", []actionStep{
		{"back", ae.bridge.PerformBack},
		{"home", ae.bridge.PerformHome},
	})
}

func (ae *ActionExecutor) NavigateHome() bool {
	return ae.dispatch("navigate_home", []actionStep{
		{"home", ae.bridge.PerformHome},
	})
}

func (ae *ActionExecutor) ScrollAway() bool {
	return ae.dispatch("scroll_away", []actionStep{
		{"scroll", ae.bridge.PerformScroll},
		{"back", ae.bridge.PerformBack},
	})
}

// CloseApp tries the least disruptive exit first: close the tab, then back
// out, then fall back to home. Home virtually always succeeds, so the chain
// ends on the most reliable step.
func (ae *ActionExecutor) CloseApp() bool {
	return ae.dispatch("close_app", []actionStep{
		{"close_tab", ae.bridge.CloseCurrentTab},
		{"back", ae.bridge.PerformBack},
		{"home", ae.bridge.PerformHome},
	})
}

func (ae *ActionExecutor) dispatch(name string, chain []actionStep) bool {
	if !ae.inFlight.CompareAndSwap(false, true) {
		if IsDebugEnabled() {
			LogDebug("[ACTION] %s coalesced, another action in flight", name)
		}
		return false
	}
	defer ae.inFlight.Store(false)

	if !ae.limiter.Allow() {
		ae.throttled++
		if IsDebugEnabled() {
			LogDebug("[ACTION] %s throttled", name)
		}
		return false
	}

	for _, step := range chain {
		if err := step.fn(); err != nil {
			LogWarn("[ACTION] %s: step %s failed: %v", name, step.name, err)
			continue
		}
		ae.dispatched++
		LogInfo("[ACTION] %s executed via %s", name, step.name)
		return true
	}

	ae.failed++
	LogError("[ACTION] %s: all %d steps failed", name, len(chain))
	return false
}

// Stats returns dispatched, throttled, and failed action counts.
func (ae *ActionExecutor) Stats() (dispatched, throttled, failed uint64) {
	return ae.dispatched, ae.throttled, ae.failed
}
