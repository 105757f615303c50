/*
File: decision.go
Version: 2.2.0
Description: Core decision state machine. Turns one classification result plus
             settings and stability state into a final pipeline decision.
             UPDATED: Region-density escalation consults the LLM advisor when
             configured, with a mandatory rule fallback.
*/

package main

import (
	"context"
	"time"
)

const (
	// Overall confidence at which a frame goes full-screen even without a
	// dense region count.
	fullScreenConfidence = 0.85
)

// DecisionEngine owns the per-cycle evaluation. All mutable collaborators
// (thresholds, stability) belong to the frame-processing stream; the engine
// must only be driven from there.
type DecisionEngine struct {
	thresholds *AdaptiveThresholds
	stability  *StabilityState
	advisor    *LLMAdvisor // nil when disabled

	screenW int
	screenH int

	state DecisionState

	evaluated uint64
	errored   uint64
	escalated uint64
}

func NewDecisionEngine(thresholds *AdaptiveThresholds, stability *StabilityState, advisor *LLMAdvisor, screenW, screenH int) *DecisionEngine {
	return &DecisionEngine{
		thresholds: thresholds,
		stability:  stability,
		advisor:    advisor,
		screenW:    screenW,
		screenH:    screenH,
		state:      StateIdle,
	}
}

// State returns the last terminal state, for observability.
func (de *DecisionEngine) State() DecisionState {
	return de.state
}

// Evaluate runs one decision cycle. It never panics past its boundary: any
// failure degrades to a Maintain decision so the current overlay state is
// kept. Silently un-blurring on error is the one thing this must never do.
func (de *DecisionEngine) Evaluate(ctx context.Context, res Classification, settings *Settings, now time.Time) (dec Decision) {
	prev := de.state
	de.state = StateEvaluating
	de.evaluated++

	defer func() {
		if r := recover(); r != nil {
			de.errored++
			LogError("[DECISION] Evaluation panic, maintaining overlay state: %v", r)
			dec = Decision{State: de.state, Maintain: true}
		}
		de.state = dec.State
	}()

	if !res.OK {
		// Classification failure is "maintain current blur state", never
		// "assume safe".
		de.errored++
		if IsDebugEnabled() {
			LogDebug("[DECISION] Classification failed (%s), maintaining", res.Err)
		}
		return Decision{State: de.state, Maintain: true}
	}

	genderThr := de.thresholds.Gender()
	nsfwThr := de.thresholds.NSFW()

	// 1. Female faces, gated entirely off by settings.
	hasFemale := false
	var regions []Rect
	if settings.BlurFemaleFaces {
		for _, f := range res.Faces {
			if f.Gender == GenderFemale && f.GenderConfidence > genderThr {
				hasFemale = true
				if r, ok := f.Box.Clamp(de.screenW, de.screenH); ok {
					regions = append(regions, r)
				}
			}
		}
	}

	// 2. Tiered NSFW confidence. A single sensitivity slider progressively
	// lowers the effective bar.
	hasNSFW := false
	if settings.DetectNSFW {
		c := res.NSFWConfidence
		switch {
		case c > nsfwThr:
			hasNSFW = true
		case c > mediumTierFactor*nsfwThr && settings.Sensitivity > sensitivityMedium:
			hasNSFW = true
		case c > anyIndicatorFloor && settings.Sensitivity > sensitivityParanoid:
			hasNSFW = true
		}
	}

	denseCount := 0
	maxRegionConf := 0.0
	for _, nr := range res.NSFWRegions {
		if nr.Confidence > maxRegionConf {
			maxRegionConf = nr.Confidence
		}
		// Density counts only individually high-confidence regions; borderline
		// ones still get blurred but do not push toward escalation.
		if nr.Confidence >= regionConfidenceHigh {
			denseCount++
		}
		if r, ok := nr.Box.Clamp(de.screenW, de.screenH); ok {
			regions = append(regions, r)
		}
	}

	// 3. Region presence is a safety fallback even when the confidence
	// tiers stayed quiet.
	shouldBlur := hasFemale || hasNSFW || len(regions) > 0

	// 4. Stability gate: blur-on immediate, blur-off delayed.
	blurNow := de.stability.ApplyGate(shouldBlur, now, settings.MinBlurDuration)
	if !blurNow {
		return Decision{State: StateClean, HasFemale: hasFemale, HasNSFW: hasNSFW}
	}
	if !shouldBlur {
		// Clean frame held inside the blur-off window. This frame contributed
		// no regions, so rendering it would blank the overlay and flicker;
		// whatever is showing stays exactly as it is until the hold expires.
		return Decision{State: prev, Maintain: true}
	}

	// 5. Region-density escalation: many simultaneous explicit regions mean
	// the whole screen is unsafe; N small blur boxes would be both expensive
	// and insufficient.
	if denseCount >= settings.RegionDensityLimit {
		de.escalated++
		action := de.recommendDense(ctx, denseCount, maxRegionConf, settings)
		LogInfo("[DECISION] Region-density escalation: %d regions (max conf %.2f) -> %s",
			denseCount, maxRegionConf, action)
		return de.denseDecision(action, regions, hasFemale, hasNSFW)
	}

	// 6. Non-density full-screen triggers: unlocalizable or overwhelming
	// NSFW signal gets the warning treatment instead of region blur.
	if hasNSFW && (len(regions) == 0 || res.NSFWConfidence >= fullScreenConfidence) {
		return Decision{
			State:     StateFullScreenWarning,
			HasFemale: hasFemale,
			HasNSFW:   true,
			Category:  "explicit-content",
		}
	}

	return Decision{
		State:     StateSelectiveBlur,
		Regions:   regions,
		HasFemale: hasFemale,
		HasNSFW:   hasNSFW,
	}
}

func (de *DecisionEngine) denseDecision(action RecommendedAction, regions []Rect, hasFemale, hasNSFW bool) Decision {
	switch action {
	case ActSelectiveBlur:
		return Decision{State: StateSelectiveBlur, Regions: regions, Action: action, RegionDense: true, HasFemale: hasFemale, HasNSFW: hasNSFW}
	case ActGentleRedirect:
		return Decision{State: StateFullScreenWarning, Action: action, RegionDense: true, HasFemale: hasFemale, HasNSFW: hasNSFW, Category: "region-density"}
	case ActScrollAway, ActNavigateBack, ActAutoCloseApp:
		return Decision{State: StateActionDispatch, Action: action, RegionDense: true, HasFemale: hasFemale, HasNSFW: hasNSFW, Category: "region-density"}
	default:
		// Exhaustive over RecommendedAction; an unknown value means a new
		// action kind was added without updating this dispatch.
		LogWarn("[DECISION] Unknown recommended action %d, falling back to full-screen", action)
		return Decision{State: StateFullScreenWarning, Action: ActGentleRedirect, RegionDense: true, Category: "region-density"}
	}
}

// recommendDense picks the dense-screen action, via the advisor when enabled.
// The advisor applies its own bounded timeout and always falls back to the
// rule; this call can never hang the cycle.
func (de *DecisionEngine) recommendDense(ctx context.Context, count int, maxConf float64, settings *Settings) RecommendedAction {
	fallback := chooseRuleAction(count, maxConf, settings.RegionDensityLimit)
	if de.advisor == nil {
		return fallback
	}
	return de.advisor.Recommend(ctx, AdvisorRequest{
		RegionCount:   count,
		MaxConfidence: maxConf,
	}, fallback)
}

// chooseRuleAction buckets severity by region count and peak confidence.
// These cutoffs are product-tuned, not principled; keep them adjustable in
// one place.
func chooseRuleAction(count int, maxConf float64, limit int) RecommendedAction {
	switch {
	case count >= limit*2 || maxConf >= 0.95:
		return ActAutoCloseApp
	case count >= limit+3 || maxConf >= 0.9:
		return ActNavigateBack
	case maxConf >= 0.8:
		return ActScrollAway
	default:
		return ActGentleRedirect
	}
}

// Stats returns cumulative evaluation counters.
func (de *DecisionEngine) Stats() (evaluated, errored, escalated uint64) {
	return de.evaluated, de.errored, de.escalated
}
