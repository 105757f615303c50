package main

import (
	"context"
	"testing"
	"time"
)

// countingClassifier returns a fixed result and counts invocations.
type countingClassifier struct {
	calls int
	res   Classification
}

func (c *countingClassifier) Analyze(ctx context.Context, frame *Frame, settings *Settings) Classification {
	c.calls++
	return c.res
}

func newTestService(t *testing.T, cl Classifier) *GuardService {
	t.Helper()

	cfg := &Config{}
	cfg.Detection = DetectionConfig{
		BlurFemaleFaces: true,
		DetectNSFW:      true,
		Sensitivity:     0.5,
		NSFWThreshold:   0.5,
		GenderThreshold: 0.6,
	}
	cfg.Service.BypassApps = []string{"com.safe.app"}
	applyDefaults(cfg)
	config = cfg

	gs := NewGuardService(cfg, GuardDeps{
		Source:     &SimulatedScreenSource{Width: 64, Height: 64},
		Classifier: cl,
		Backend:    &recordBackend{},
		Bridge:     &flakyBridge{},
		ScreenW:    1080,
		ScreenH:    2400,
	})
	t.Cleanup(gs.overlay.Stop)
	return gs
}

func TestCacheHitSkipsClassifier(t *testing.T) {
	cl := &countingClassifier{res: Classification{OK: true, NSFWConfidence: 0.9}}
	gs := newTestService(t, cl)

	frame := solidFrame(64, 64, 0xFFAA8866, time.Unix(1000, 0))
	gs.processFrame(frame)
	gs.processFrame(solidFrame(64, 64, 0xFFAA8866, time.Unix(1000, 0)))

	if cl.calls != 1 {
		t.Fatalf("identical frame must hit cache, classifier ran %d times", cl.calls)
	}
	hits, _ := gs.cache.Stats()
	if hits != 1 {
		t.Fatalf("expected 1 cache hit, got %d", hits)
	}
}

func TestHighConfidenceFrameRaisesWarning(t *testing.T) {
	cl := &countingClassifier{res: Classification{OK: true, NSFWConfidence: 0.9}}
	gs := newTestService(t, cl)

	gs.processFrame(solidFrame(64, 64, 0xFFAA8866, time.Unix(1000, 0)))

	if !gs.overlay.Visible(OverlayFullScreen) {
		t.Fatal("unlocalizable high-confidence NSFW must raise the full-screen warning")
	}
}

func TestLocalizedDetectionBlursSelectively(t *testing.T) {
	cl := &countingClassifier{res: Classification{
		OK:             true,
		NSFWConfidence: 0.6,
		NSFWRegions:    []NSFWRegion{{Box: Rect{100, 100, 400, 400}, Confidence: 0.6}},
	}}
	gs := newTestService(t, cl)

	gs.processFrame(solidFrame(64, 64, 0xFFAA8866, time.Unix(1000, 0)))

	if !gs.overlay.Visible(OverlayBlur) {
		t.Fatal("localized detection must raise the selective blur overlay")
	}
	if gs.overlay.Visible(OverlayFullScreen) {
		t.Fatal("localized detection must not raise the full-screen warning")
	}
}

func TestBypassedAppIsNeverInspected(t *testing.T) {
	cl := &countingClassifier{res: Classification{OK: true, NSFWConfidence: 0.9}}
	gs := newTestService(t, cl)

	gs.HandleWindowEvent(WindowEvent{PackageName: "com.safe.app"})
	gs.processFrame(solidFrame(64, 64, 0xFFAA8866, time.Unix(1000, 0)))

	if cl.calls != 0 {
		t.Fatal("frames from a bypassed app must not reach the classifier")
	}
	if gs.overlay.Visible(OverlayBlur) || gs.overlay.Visible(OverlayFullScreen) {
		t.Fatal("bypassed app must not be blurred")
	}
}

// The blur-off hold must survive the full path: decision, service apply, and
// overlay. A clean frame inside the window may not repaint or hide anything.
func TestHysteresisHoldsBlurThroughOverlay(t *testing.T) {
	bad := Classification{
		OK:             true,
		NSFWConfidence: 0.6,
		NSFWRegions:    []NSFWRegion{{Box: Rect{100, 100, 400, 400}, Confidence: 0.6}},
	}
	cl := &countingClassifier{res: bad}
	gs := newTestService(t, cl)

	s := gs.settings
	s.MinBlurDuration = 500 * time.Millisecond
	gs.UpdateSettings(s)

	gs.processFrame(solidFrame(64, 64, 0xFFAA8866, time.Unix(1000, 0)))
	if !gs.overlay.Visible(OverlayBlur) {
		t.Fatal("precondition: blur should be up")
	}

	// Rapidly alternating verdicts: the overlay must stay up the whole time.
	fill := uint32(0xFF000001)
	for i := 0; i < 4; i++ {
		if i%2 == 0 {
			cl.res = Classification{OK: true}
		} else {
			cl.res = bad
		}
		gs.processFrame(solidFrame(64, 64, fill, time.Unix(1000, 0)))
		fill++
		if !gs.overlay.Visible(OverlayBlur) {
			t.Fatalf("blur overlay dropped at alternation step %d", i)
		}
	}

	// Clean frame after the hold expires: now it releases.
	cl.res = Classification{OK: true}
	time.Sleep(600 * time.Millisecond)
	gs.processFrame(solidFrame(64, 64, fill, time.Unix(1000, 0)))
	if gs.overlay.Visible(OverlayBlur) {
		t.Fatal("blur should release once the hold window has passed")
	}
}

func TestEmergencyResetClearsEverything(t *testing.T) {
	cl := &countingClassifier{res: Classification{OK: true, NSFWConfidence: 0.9}}
	gs := newTestService(t, cl)

	gs.processFrame(solidFrame(64, 64, 0xFFAA8866, time.Unix(1000, 0)))
	if !gs.overlay.Visible(OverlayFullScreen) {
		t.Fatal("precondition: warning should be up")
	}

	gs.EmergencyReset()

	// Overlays drop immediately; they have their own dispatcher.
	for kind := OverlayKind(0); kind < overlayKindCount; kind++ {
		if gs.overlay.Visible(kind) {
			t.Fatalf("%s still visible after emergency reset", kind)
		}
	}

	// Frame-stream state clears at the top of the next cycle: the same frame
	// must be re-classified, not answered from the flushed cache.
	gs.processFrame(solidFrame(64, 64, 0xFFAA8866, time.Unix(1000, 0)))
	if cl.calls != 2 {
		t.Fatalf("cache should be flushed before the next lookup, classifier ran %d times", cl.calls)
	}

	gs.EmergencyReset()
	cl.res = Classification{OK: true}
	gs.processFrame(solidFrame(64, 64, 0xFF000009, time.Unix(1000, 0)))

	if gs.stability.Blurred() {
		t.Fatal("stability gate should be clear after reset")
	}
	if gs.overlay.Visible(OverlayBlur) || gs.overlay.Visible(OverlayFullScreen) {
		t.Fatal("nothing should be visible after reset and a clean frame")
	}
}

func TestSettingsUpdateLandsOnNextFrame(t *testing.T) {
	cl := &countingClassifier{res: Classification{OK: true, NSFWConfidence: 0.9}}
	gs := newTestService(t, cl)

	s := gs.settings
	s.DetectNSFW = false
	gs.UpdateSettings(s)

	gs.processFrame(solidFrame(64, 64, 0xFFAA8866, time.Unix(1000, 0)))

	if gs.overlay.Visible(OverlayFullScreen) {
		t.Fatal("NSFW detection disabled, nothing should trigger")
	}
}
