/*
File: service.go
Version: 2.4.0
Description: Pipeline supervisor. Wires sampler, cache, classifier, decision
             engine, overlays, browser monitor, and action executor together
             with explicit dependency injection. All detection-side state
             (cache, stability, thresholds, engine) is touched only on the
             sampler's frame stream, which is why none of it carries locks.
*/

package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// GuardService is the composition root. Everything it owns is passed in or
// built in NewGuardService; nothing reaches for globals except the config.
type GuardService struct {
	sampler    *Sampler
	classifier Classifier
	cache      *DetectionCache
	thresholds *AdaptiveThresholds
	stability  *StabilityState
	engine     *DecisionEngine
	overlay    *OverlayManager
	executor   *ActionExecutor
	monitor    *BrowserMonitor
	blocker    *SiteBlocker

	// settings and foreground app are written from the control/accessibility
	// streams and read on the frame stream.
	mu         sync.RWMutex
	settings   Settings
	foreground string

	// resetPending hands the emergency reset off to the frame stream, which
	// owns the cache, stability gate, and thresholds. Mutating those from the
	// caller's goroutine would race processFrame.
	resetPending atomic.Bool

	started  time.Time
	frames   uint64
	bypassed uint64
}

// GuardDeps carries the platform boundaries. Everything else is built from
// config inside NewGuardService.
type GuardDeps struct {
	Source     ScreenSource
	Classifier Classifier
	Backend    WindowBackend
	Bridge     ActionBridge
	ScreenW    int
	ScreenH    int
}

func NewGuardService(cfg *Config, deps GuardDeps) *GuardService {
	gs := &GuardService{
		classifier: NewBudgetedClassifier(deps.Classifier),
		cache:      NewDetectionCache(),
		thresholds: NewAdaptiveThresholds(cfg.Detection),
		stability:  &StabilityState{},
		settings:   SettingsFromConfig(cfg),
	}

	gs.executor = NewActionExecutor(deps.Bridge, cfg.Action.parsedMinGap)
	gs.overlay = NewOverlayManager(deps.Backend, deps.ScreenW, deps.ScreenH,
		func() { gs.executor.NavigateBack() },
		func() { gs.executor.CloseApp() },
	)

	var advisor *LLMAdvisor
	if cfg.LLM.Enabled {
		advisor = NewLLMAdvisor(NewHTTPAdvisorCaller(cfg.LLM), cfg.LLM.parsedTimeout)
	}
	gs.engine = NewDecisionEngine(gs.thresholds, gs.stability, advisor, deps.ScreenW, deps.ScreenH)

	gs.blocker = NewSiteBlocker(cfg.Blocklist)
	if cfg.Browser.Enabled {
		gs.monitor = NewBrowserMonitor(cfg.Browser, gs.blocker, gs.overlay)
	}

	gs.sampler = NewSampler(deps.Source, cfg.Capture.parsedInterval, cfg.Capture.parsedBudget)
	return gs
}

// Run starts the pipeline and blocks until ctx is cancelled. Teardown order
// matters: capture stops first so no frame is in flight when overlays drop.
func (gs *GuardService) Run(ctx context.Context) error {
	gs.started = time.Now()
	LogInfo("[SERVICE] Starting detection pipeline")

	gs.sampler.StartCapturing(ctx, gs.processFrame)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		gs.statsLoop(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		gs.sampler.StopCapturing()
		gs.overlay.Stop()
		return nil
	})

	err := g.Wait()
	LogInfo("[SERVICE] Pipeline stopped after %v", time.Since(gs.started).Round(time.Second))
	return err
}

// processFrame is the frame stream. Runs on the sampler goroutine only; this
// single-caller guarantee is what lets the cache, stability gate, thresholds,
// and engine stay lock-free.
func (gs *GuardService) processFrame(frame *Frame) {
	now := time.Now()
	gs.frames++

	if gs.resetPending.CompareAndSwap(true, false) {
		gs.cache.Flush()
		gs.stability.Reset()
		gs.thresholds.Reset(config.Detection)
		LogInfo("[SERVICE] Detection state reset on frame stream")
	}

	settings, app := gs.snapshot()

	if settings.BypassesApp(app) {
		gs.bypassed++
		if gs.stability.Blurred() {
			gs.stability.Reset()
			gs.overlay.HideBlur()
		}
		return
	}

	hash := FrameHash(frame)
	if lookup := gs.cache.ShouldProcess(hash, now); lookup.Cached {
		gs.applyCached(lookup.Decision, &settings, now)
		return
	}

	res := gs.classifier.Analyze(context.Background(), frame, &settings)
	dec := gs.engine.Evaluate(context.Background(), res, &settings, now)

	if !dec.Maintain {
		inappropriate := dec.State != StateClean
		gs.cache.Store(hash, inappropriate, now)
		gs.cache.RecordDetection(inappropriate, now)
		gs.thresholds.RecordOutcome(inappropriate, now)
	}

	gs.apply(dec, &settings)
}

// applyCached replays a cached per-frame verdict through the stability gate.
// The gate still runs so the blur-off delay holds across cache hits.
func (gs *GuardService) applyCached(inappropriate bool, settings *Settings, now time.Time) {
	blurNow := gs.stability.ApplyGate(inappropriate, now, settings.MinBlurDuration)
	if !blurNow {
		gs.overlay.HideBlur()
	}
	// Blur stays as rendered: a cache hit means the screen has not changed,
	// so the existing overlay geometry is still right.
}

func (gs *GuardService) apply(dec Decision, settings *Settings) {
	if dec.Maintain {
		return
	}

	switch dec.State {
	case StateClean:
		gs.overlay.HideBlur()
		gs.overlay.HideFullScreenWarning()

	case StateSelectiveBlur:
		gs.overlay.ShowBlur(dec.Regions, settings.BlurIntensity, settings.Style)

	case StateFullScreenWarning:
		gs.overlay.HideBlur()
		gs.overlay.ShowFullScreenWarning(dec.Category, settings.ReflectionSeconds, dec.RegionDense, gs.onWarningResolved)

	case StateActionDispatch:
		// Blur whatever we can while the corrective action lands.
		if len(dec.Regions) > 0 {
			gs.overlay.ShowBlur(dec.Regions, settings.BlurIntensity, settings.Style)
		}
		gs.executor.Execute(dec.Action)

	default:
		LogWarn("[SERVICE] Unhandled decision state %s", dec.State)
	}
}

func (gs *GuardService) onWarningResolved(action WarningAction) {
	LogInfo("[SERVICE] Warning resolved: %v for %s after %dms", action.Kind, action.Category, action.ElapsedMs)
}

// HandleWindowEvent receives accessibility window events. Tracks the
// foreground app for bypass checks and feeds browser windows to the URL
// monitor.
func (gs *GuardService) HandleWindowEvent(ev WindowEvent) {
	if ev.PackageName != "" {
		gs.mu.Lock()
		gs.foreground = ev.PackageName
		gs.mu.Unlock()
	}
	if gs.monitor != nil {
		gs.monitor.HandleEvent(ev)
	}
}

// UpdateSettings swaps the settings snapshot. Takes effect on the next frame.
func (gs *GuardService) UpdateSettings(s Settings) {
	gs.mu.Lock()
	gs.settings = s
	gs.mu.Unlock()
	LogInfo("[SERVICE] Settings updated (sensitivity=%.2f, intensity=%s)", s.Sensitivity, s.BlurIntensity)
}

func (gs *GuardService) snapshot() (Settings, string) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.settings, gs.foreground
}

// EmergencyReset hides every overlay immediately and flushes all learned and
// cached state. The user-facing panic button: whatever went wrong, the screen
// comes back. Overlays and the verdict cache carry their own synchronization,
// so those clear here; the frame-stream-owned state clears at the top of the
// next processFrame to avoid racing a cycle already in flight.
func (gs *GuardService) EmergencyReset() {
	LogWarn("[SERVICE] Emergency reset requested")
	gs.resetPending.Store(true)
	gs.blocker.Flush()
	gs.overlay.EmergencyHideAll()
}

func (gs *GuardService) statsLoop(ctx context.Context) {
	interval := config.Service.parsedStatsInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gs.logStats()
		}
	}
}

func (gs *GuardService) logStats() {
	captured, skipped := gs.sampler.Stats()
	hits, misses := gs.cache.Stats()
	evaluated, errored, escalated := gs.engine.Stats()
	dispatched, throttled, failedActs := gs.executor.Stats()

	line := ""
	if gs.monitor != nil {
		checked, blocked := gs.monitor.Stats()
		line = fmt.Sprintf(" urls=%d blocked=%d", checked, blocked)
	}

	LogInfo("[SERVICE] Stats: frames=%d captured=%d skipped=%d cache=%d/%d eval=%d err=%d dense=%d actions=%d/%d/%d bypassed=%d%s",
		gs.frames, captured, skipped, hits, hits+misses, evaluated, errored, escalated,
		dispatched, throttled, failedActs, gs.bypassed, line)
}
