/*
File: types.go
Version: 1.2.0
Description: Shared types, enums, and tuning constants for the detection pipeline.
             UPDATED: WarningAction is a closed tagged union dispatched exhaustively.
*/

package main

import (
	"time"
)

// --- Tuning Constants ---

const (
	// Detection cache / stability
	decisionCacheTTL   = 5 * time.Second
	recentDetectionTTL = 10 * time.Second
	learnHistoryTTL    = 10 * time.Minute
	learnWindowEntries = 20

	// Adaptive threshold tuner
	tunerMinInterval = 30 * time.Second
	tunerMinSamples  = 5
	tunerSmallStep   = 0.02
	tunerLargeStep   = 0.05
	// Ratio cutoffs are heuristic; tunable, not contractual.
	tunerCalmRatio = 0.1
	tunerHotRatio  = 0.8

	// Threshold safety clamps. Adaptation can never disable detection
	// (ceiling) or drive it into permanent full blur (floor).
	nsfwThresholdFloor   = 0.20
	nsfwThresholdCeil    = 0.70
	genderThresholdFloor = 0.30
	genderThresholdCeil  = 0.90

	// NSFW confidence tiering
	mediumTierFactor     = 0.7
	anyIndicatorFloor    = 0.2
	sensitivityMedium    = 0.6
	sensitivityParanoid  = 0.8
	regionConfidenceHigh = 0.6

	// Geometry
	minRegionPx = 20

	// Sampler
	captureIntervalFloor = 500 * time.Millisecond
	captureBudget        = 3 * time.Second

	// Overlay safeguards
	fullScreenAutoClose  = 10 * time.Second
	autoCloseGracePeriod = 2 * time.Second
	blockedSiteTimeout   = 30 * time.Second

	// Action executor
	actionMinGap = 2 * time.Second
)

// --- Geometry ---

// Rect is a rectangle in screen coordinates (pixels, origin top-left).
type Rect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

func (r Rect) Width() int  { return r.Right - r.Left }
func (r Rect) Height() int { return r.Bottom - r.Top }

// Clamp confines the rectangle to [0,w]x[0,h]. Returns the clamped rect and
// false if the result is degenerate (smaller than minRegionPx in either axis).
func (r Rect) Clamp(w, h int) (Rect, bool) {
	if r.Left < 0 {
		r.Left = 0
	}
	if r.Top < 0 {
		r.Top = 0
	}
	if r.Right > w {
		r.Right = w
	}
	if r.Bottom > h {
		r.Bottom = h
	}
	if r.Width() < minRegionPx || r.Height() < minRegionPx {
		return r, false
	}
	return r, true
}

// --- Frames ---

// Frame is one captured screen image. Ephemeral; owned by the sampler until
// handed to the classifier, never persisted.
type Frame struct {
	Width    int
	Height   int
	Pixels   []uint32 // ARGB, row-major, len == Width*Height
	Captured time.Time
}

// --- Classification ---

type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "MALE"
	case GenderFemale:
		return "FEMALE"
	default:
		return "UNKNOWN"
	}
}

type Face struct {
	Box              Rect
	Gender           Gender
	GenderConfidence float64
}

type NSFWRegion struct {
	Box        Rect
	Confidence float64
}

// Classification is the immutable per-frame output of the classifier boundary.
type Classification struct {
	Faces          []Face
	NSFWConfidence float64 // 0..1
	NSFWRegions    []NSFWRegion
	OK             bool
	Err            string
}

// --- Decisions ---

type DecisionState int

const (
	StateIdle DecisionState = iota
	StateEvaluating
	StateSelectiveBlur
	StateFullScreenWarning
	StateActionDispatch
	StateClean
)

func (s DecisionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateEvaluating:
		return "EVALUATING"
	case StateSelectiveBlur:
		return "SELECTIVE_BLUR"
	case StateFullScreenWarning:
		return "FULL_SCREEN_WARNING"
	case StateActionDispatch:
		return "ACTION_DISPATCH"
	case StateClean:
		return "CLEAN"
	default:
		return "UNKNOWN"
	}
}

// RecommendedAction is what the engine wants done about a region-dense screen.
type RecommendedAction int

const (
	ActSelectiveBlur RecommendedAction = iota
	ActScrollAway
	ActNavigateBack
	ActAutoCloseApp
	ActGentleRedirect
)

func (a RecommendedAction) String() string {
	switch a {
	case ActSelectiveBlur:
		return "SELECTIVE_BLUR"
	case ActScrollAway:
		return "SCROLL_AWAY"
	case ActNavigateBack:
		return "NAVIGATE_BACK"
	case ActAutoCloseApp:
		return "AUTO_CLOSE_APP"
	case ActGentleRedirect:
		return "GENTLE_REDIRECT"
	default:
		return "UNKNOWN"
	}
}

func parseRecommendedAction(s string) (RecommendedAction, bool) {
	switch s {
	case "SELECTIVE_BLUR":
		return ActSelectiveBlur, true
	case "SCROLL_AWAY":
		return ActScrollAway, true
	case "NAVIGATE_BACK":
		return ActNavigateBack, true
	case "AUTO_CLOSE_APP":
		return ActAutoCloseApp, true
	case "GENTLE_REDIRECT":
		return ActGentleRedirect, true
	}
	return 0, false
}

// Decision is the outcome of one evaluation cycle.
type Decision struct {
	State       DecisionState
	Regions     []Rect // validated, clamped; only for StateSelectiveBlur
	Action      RecommendedAction
	RegionDense bool
	HasFemale   bool
	HasNSFW     bool
	Category    string

	// Maintain means this cycle must not touch the overlays: either the
	// evaluation failed, or a clean frame is being held by the blur-off
	// delay. Never un-blur on error or inside the hold window.
	Maintain bool
}

// --- Warning dialog actions ---

// WarningKind enumerates every way a full-screen warning can resolve. The
// dispatch switch must stay exhaustive; a new kind that is not handled
// everywhere is a bug.
type WarningKind int

const (
	WarningDismissed WarningKind = iota
	WarningContinued
	WarningClosedApp
	WarningTimedOut
)

// WarningAction carries a resolution kind plus its payload.
type WarningAction struct {
	Kind      WarningKind
	Category  string
	ElapsedMs int64
}

// --- Settings ---

type BlurStyle int

const (
	StyleSolid BlurStyle = iota
	StylePixelate
	StyleNoise
)

type Intensity int

const (
	IntensityLight Intensity = iota
	IntensityMedium
	IntensityStrong
	IntensityMaximum
)

func (i Intensity) String() string {
	switch i {
	case IntensityLight:
		return "LIGHT"
	case IntensityMedium:
		return "MEDIUM"
	case IntensityStrong:
		return "STRONG"
	case IntensityMaximum:
		return "MAXIMUM"
	default:
		return "UNKNOWN"
	}
}

// Settings is the read-only per-cycle snapshot of user configuration. Core
// components never write it; changes land on the next cycle.
type Settings struct {
	BlurFemaleFaces bool
	DetectNSFW      bool
	Sensitivity     float64 // 0..1 slider
	NSFWThreshold   float64 // user cap; adaptive threshold never exceeds it
	GenderThreshold float64
	BlurIntensity   Intensity
	Style           BlurStyle

	CaptureInterval   time.Duration
	MinBlurDuration   time.Duration
	MaxProcessingTime time.Duration

	RegionDensityLimit int
	ReflectionSeconds  int

	BypassApps []string
}

// BypassesApp reports whether the given package is exempt from inspection.
func (s *Settings) BypassesApp(pkg string) bool {
	for _, b := range s.BypassApps {
		if b == pkg {
			return true
		}
	}
	return false
}

// --- Site blocking ---

// BlockVerdict is the outcome of a URL check against the site blocker.
type BlockVerdict struct {
	Blocked  bool
	Category string
	Severity int // 1 (mild) .. 3 (severe)
	Source   string
}
