/*
File: overlay.go
Version: 2.3.0
Description: Overlay visibility state machine. All overlay state is mutated on
             one dispatcher goroutine (the UI-affinity stream); every public
             call marshals onto it. Show is idempotent (update in place), hide
             of a hidden overlay is a no-op, and emergency hide always resets
             flags even when individual removals fail.
*/

package main

import (
	"sync"
	"time"
)

type OverlayKind int

const (
	OverlayBlur OverlayKind = iota
	OverlayFullScreen
	OverlayBlockedSite
	overlayKindCount
)

func (k OverlayKind) String() string {
	switch k {
	case OverlayBlur:
		return "BLUR"
	case OverlayFullScreen:
		return "FULL_SCREEN"
	case OverlayBlockedSite:
		return "BLOCKED_SITE"
	default:
		return "UNKNOWN"
	}
}

// WindowBackend is the platform window-manager boundary. Implementations own
// the actual always-on-top views; the manager only tracks handles.
type WindowBackend interface {
	AddWindow(kind OverlayKind, plan RenderPlan) (handle any, err error)
	UpdateWindow(handle any, plan RenderPlan) error
	RemoveWindow(handle any) error
}

type overlayState struct {
	visible   bool
	handle    any
	autoTimer *time.Timer

	// Full-screen warning bookkeeping
	reflectUntil time.Time
	category     string
	onAction     func(WarningAction)
	shownAt      time.Time
}

// OverlayManager renders blur, full-screen warning, and blocked-site overlays.
type OverlayManager struct {
	backend WindowBackend
	screenW int
	screenH int

	// navigateAway is invoked by auto-close safeguards; wired to the action
	// executor at construction.
	navigateAway func()
	closeApp     func()

	cmds    chan overlayCmd
	stopped chan struct{}
	mu      sync.Mutex // guards running flag only
	running bool

	// Mutated only on the dispatcher goroutine.
	states [overlayKindCount]overlayState
}

type overlayCmd struct {
	fn   func()
	done chan struct{}
}

func NewOverlayManager(backend WindowBackend, screenW, screenH int, navigateAway, closeApp func()) *OverlayManager {
	om := &OverlayManager{
		backend:      backend,
		screenW:      screenW,
		screenH:      screenH,
		navigateAway: navigateAway,
		closeApp:     closeApp,
		cmds:         make(chan overlayCmd, 64),
		stopped:      make(chan struct{}),
	}
	om.running = true
	go om.dispatch()
	return om
}

func (om *OverlayManager) dispatch() {
	for cmd := range om.cmds {
		om.run(cmd.fn)
		close(cmd.done)
	}
	close(om.stopped)
}

func (om *OverlayManager) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			LogError("[OVERLAY] Panic on dispatcher: %v", r)
		}
	}()
	fn()
}

// do marshals fn onto the dispatcher and waits for it. After Stop, commands
// execute inline so emergency paths keep working during teardown.
func (om *OverlayManager) do(fn func()) {
	om.mu.Lock()
	running := om.running
	om.mu.Unlock()

	if !running {
		om.run(fn)
		return
	}

	cmd := overlayCmd{fn: fn, done: make(chan struct{})}
	om.cmds <- cmd
	<-cmd.done
}

// Stop drains the dispatcher and hides everything.
func (om *OverlayManager) Stop() {
	om.EmergencyHideAll()

	om.mu.Lock()
	if !om.running {
		om.mu.Unlock()
		return
	}
	om.running = false
	om.mu.Unlock()

	close(om.cmds)
	<-om.stopped
}

// --- Blur overlay ---

// ShowBlur renders region blur. Showing while already visible updates the
// window in place rather than re-adding it. Zero valid regions hides instead.
func (om *OverlayManager) ShowBlur(regions []Rect, intensity Intensity, style BlurStyle) {
	plan, ok := BuildBlurPlan(regions, intensity, style, om.screenW, om.screenH)
	if !ok {
		om.HideBlur()
		return
	}
	om.do(func() {
		om.showLocked(OverlayBlur, plan)
	})
}

// HideBlur is a no-op when the blur overlay is not visible.
func (om *OverlayManager) HideBlur() {
	om.do(func() {
		om.hideLocked(OverlayBlur)
	})
}

// --- Full-screen warning ---

// ShowFullScreenWarning displays the warning overlay. During the reflection
// countdown, dismissal and continue resolutions are disabled. An auto-action
// timer fires after fullScreenAutoClose if the user does nothing: it attempts
// navigate-away, waits a grace period, then force-hides if still visible. No
// overlay is ever permanent, even if upstream logic never calls hide.
func (om *OverlayManager) ShowFullScreenWarning(category string, reflectionSeconds int, regionDense bool, onAction func(WarningAction)) {
	plan := BuildFullScreenPlan(category, regionDense, om.screenW, om.screenH)
	now := time.Now()

	om.do(func() {
		st := &om.states[OverlayFullScreen]
		st.category = category
		st.onAction = onAction
		if !st.visible {
			st.reflectUntil = now.Add(time.Duration(reflectionSeconds) * time.Second)
			st.shownAt = now
		}
		om.showLocked(OverlayFullScreen, plan)
		om.armAutoClose(OverlayFullScreen, fullScreenAutoClose)
	})
}

// ResolveWarning handles a user (or timeout) resolution of the full-screen
// warning. The switch is exhaustive over WarningKind; silently-ignored action
// kinds are a bug.
func (om *OverlayManager) ResolveWarning(action WarningAction) {
	om.do(func() {
		st := &om.states[OverlayFullScreen]
		if !st.visible {
			return
		}

		// Capture before hideLocked clears the state.
		cb := st.onAction
		category := st.category
		shownAt := st.shownAt

		now := time.Now()
		switch action.Kind {
		case WarningDismissed, WarningContinued:
			if now.Before(st.reflectUntil) {
				if IsDebugEnabled() {
					LogDebug("[OVERLAY] Warning action %d ignored during reflection window", action.Kind)
				}
				return
			}
			om.hideLocked(OverlayFullScreen)
		case WarningClosedApp:
			om.hideLocked(OverlayFullScreen)
			if om.closeApp != nil {
				go om.closeApp()
			}
		case WarningTimedOut:
			om.hideLocked(OverlayFullScreen)
			if om.navigateAway != nil {
				go om.navigateAway()
			}
		default:
			LogWarn("[OVERLAY] Unhandled warning kind %d", action.Kind)
			return
		}

		if cb != nil {
			action.Category = category
			action.ElapsedMs = now.Sub(shownAt).Milliseconds()
			go cb(action)
		}
	})
}

// HideFullScreenWarning drops the warning without a user resolution. Used when
// the underlying content went clean on its own; no callback fires.
func (om *OverlayManager) HideFullScreenWarning() {
	om.do(func() {
		om.hideLocked(OverlayFullScreen)
	})
}

// --- Blocked site ---

// ShowBlockedSite displays the blocked-site overlay with its own hard timeout:
// if no user action occurs within blockedSiteTimeout the overlay force-hides.
func (om *OverlayManager) ShowBlockedSite(verdict BlockVerdict, guidance string, onAction func(WarningAction)) {
	plan := BuildBlockedSitePlan(verdict, guidance, om.screenW, om.screenH)
	om.do(func() {
		st := &om.states[OverlayBlockedSite]
		st.category = verdict.Category
		st.onAction = onAction
		if !st.visible {
			st.shownAt = time.Now()
		}
		om.showLocked(OverlayBlockedSite, plan)
		om.armAutoClose(OverlayBlockedSite, blockedSiteTimeout)
	})
}

// HideBlockedSite is a no-op when not visible.
func (om *OverlayManager) HideBlockedSite() {
	om.do(func() {
		om.hideLocked(OverlayBlockedSite)
	})
}

// --- Shared internals (dispatcher goroutine only) ---

func (om *OverlayManager) showLocked(kind OverlayKind, plan RenderPlan) {
	st := &om.states[kind]

	if st.visible {
		if err := om.backend.UpdateWindow(st.handle, plan); err != nil {
			LogWarn("[OVERLAY] Update %s failed: %v", kind, err)
			om.emergencyLocked()
		}
		return
	}

	handle, err := om.backend.AddWindow(kind, plan)
	if err != nil {
		LogWarn("[OVERLAY] Add %s failed: %v", kind, err)
		om.emergencyLocked()
		return
	}
	st.visible = true
	st.handle = handle
	if IsDebugEnabled() {
		LogDebug("[OVERLAY] %s shown", kind)
	}
}

func (om *OverlayManager) hideLocked(kind OverlayKind) {
	st := &om.states[kind]
	om.cancelAutoClose(st)

	if !st.visible {
		return
	}

	if err := om.backend.RemoveWindow(st.handle); err != nil {
		// The window token may already be dead. Clear state regardless; a
		// stuck flag is worse than a leaked removal attempt.
		LogWarn("[OVERLAY] Remove %s failed: %v", kind, err)
	}
	st.visible = false
	st.handle = nil
	st.onAction = nil
	if IsDebugEnabled() {
		LogDebug("[OVERLAY] %s hidden", kind)
	}
}

// armAutoClose ties exactly one timer to the overlay's current lifetime. Any
// hide path cancels it, so duplicate or orphaned timers cannot accumulate.
// A force-hide resolves as WarningTimedOut through the stored callback, so
// whoever raised the overlay learns it is gone.
func (om *OverlayManager) armAutoClose(kind OverlayKind, after time.Duration) {
	st := &om.states[kind]
	om.cancelAutoClose(st)

	st.autoTimer = time.AfterFunc(after, func() {
		LogInfo("[OVERLAY] Auto-close for %s fired after %v", kind, after)
		if om.navigateAway != nil {
			om.navigateAway()
		}
		time.Sleep(autoCloseGracePeriod)
		om.do(func() {
			st := &om.states[kind]
			if !st.visible {
				return
			}
			LogWarn("[OVERLAY] %s still visible after grace period, force-hiding", kind)

			// Capture before hideLocked clears the state.
			cb := st.onAction
			category := st.category
			shownAt := st.shownAt

			om.hideLocked(kind)

			if cb != nil {
				go cb(WarningAction{
					Kind:      WarningTimedOut,
					Category:  category,
					ElapsedMs: time.Since(shownAt).Milliseconds(),
				})
			}
		})
	})
}

func (om *OverlayManager) cancelAutoClose(st *overlayState) {
	if st.autoTimer != nil {
		st.autoTimer.Stop()
		st.autoTimer = nil
	}
}

// EmergencyHideAll unconditionally attempts removal of every overlay kind and
// resets all visibility flags even if individual removals fail. A stuck or
// leaked window must never be able to permanently block the screen.
func (om *OverlayManager) EmergencyHideAll() {
	om.do(func() {
		om.emergencyLocked()
	})
}

func (om *OverlayManager) emergencyLocked() {
	for kind := OverlayKind(0); kind < overlayKindCount; kind++ {
		st := &om.states[kind]
		om.cancelAutoClose(st)
		if st.handle != nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						LogWarn("[OVERLAY] Emergency remove %s panicked: %v", kind, r)
					}
				}()
				if err := om.backend.RemoveWindow(st.handle); err != nil {
					LogWarn("[OVERLAY] Emergency remove %s failed: %v", kind, err)
				}
			}()
		}
		st.visible = false
		st.handle = nil
		st.onAction = nil
	}
	LogInfo("[OVERLAY] Emergency hide-all completed")
}

// Visible reports per-kind visibility. Reads go through the dispatcher so the
// answer is consistent with in-flight commands.
func (om *OverlayManager) Visible(kind OverlayKind) bool {
	var v bool
	om.do(func() {
		v = om.states[kind].visible
	})
	return v
}
