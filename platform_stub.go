/*
File: platform_stub.go
Version: 1.0.1
Description: Stand-in platform boundaries for running the pipeline without a
             device: a pixel-heuristic classifier, a logging window backend,
             and a logging action bridge.
*/

package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// HeuristicClassifier scores frames by the fraction of skin-tone-ish pixels.
// Crude on purpose; it exists so the full pipeline runs end to end without
// the on-device models.
type HeuristicClassifier struct{}

func (hc *HeuristicClassifier) Analyze(ctx context.Context, frame *Frame, settings *Settings) Classification {
	select {
	case <-ctx.Done():
		return Classification{OK: false, Err: ctx.Err().Error()}
	default:
	}

	if len(frame.Pixels) == 0 {
		return Classification{OK: true}
	}

	skin := 0
	// Sample at a stride; full scans are pointless for a heuristic.
	stride := len(frame.Pixels)/4096 + 1
	sampled := 0
	for i := 0; i < len(frame.Pixels); i += stride {
		sampled++
		if isSkinTone(frame.Pixels[i]) {
			skin++
		}
	}

	conf := float64(skin) / float64(sampled)
	res := Classification{OK: true, NSFWConfidence: conf}
	if conf > 0.5 {
		// Pretend the middle of the screen is the offending region.
		res.NSFWRegions = []NSFWRegion{{
			Box: Rect{
				Left:   frame.Width / 4,
				Top:    frame.Height / 4,
				Right:  3 * frame.Width / 4,
				Bottom: 3 * frame.Height / 4,
			},
			Confidence: conf,
		}}
	}
	return res
}

func isSkinTone(argb uint32) bool {
	r := (argb >> 16) & 0xFF
	g := (argb >> 8) & 0xFF
	b := argb & 0xFF
	return r > 95 && g > 40 && b > 20 && r > g && r > b && r-b > 15
}

// LoggingBackend tracks windows in memory and logs transitions. Handle values
// are opaque monotonically increasing ints.
type LoggingBackend struct {
	mu      sync.Mutex
	nextID  int
	windows map[int]OverlayKind
}

func NewLoggingBackend() *LoggingBackend {
	return &LoggingBackend{windows: make(map[int]OverlayKind)}
}

func (lb *LoggingBackend) AddWindow(kind OverlayKind, plan RenderPlan) (any, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.nextID++
	lb.windows[lb.nextID] = kind
	LogInfo("[BACKEND] Window %d added (%s, %d regions)", lb.nextID, kind, len(plan.Regions))
	return lb.nextID, nil
}

func (lb *LoggingBackend) UpdateWindow(handle any, plan RenderPlan) error {
	id, ok := handle.(int)
	if !ok {
		return fmt.Errorf("bad handle %v", handle)
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if _, exists := lb.windows[id]; !exists {
		return fmt.Errorf("window %d gone", id)
	}
	if IsDebugEnabled() {
		LogDebug("[BACKEND] Window %d updated (%d regions)", id, len(plan.Regions))
	}
	return nil
}

func (lb *LoggingBackend) RemoveWindow(handle any) error {
	id, ok := handle.(int)
	if !ok {
		return fmt.Errorf("bad handle %v", handle)
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if _, exists := lb.windows[id]; !exists {
		return fmt.Errorf("window %d gone", id)
	}
	delete(lb.windows, id)
	LogInfo("[BACKEND] Window %d removed", id)
	return nil
}

// LoggingBridge logs actions instead of injecting input.
type LoggingBridge struct {
	backs   atomic.Uint64
	homes   atomic.Uint64
	scrolls atomic.Uint64
	closes  atomic.Uint64
}

func (lb *LoggingBridge) PerformBack() error {
	lb.backs.Add(1)
	LogInfo("[BRIDGE] BACK")
	return nil
}

func (lb *LoggingBridge) PerformHome() error {
	lb.homes.Add(1)
	LogInfo("[BRIDGE] HOME")
	return nil
}

func (lb *LoggingBridge) PerformScroll() error {
	lb.scrolls.Add(1)
	LogInfo("[BRIDGE] SCROLL")
	return nil
}

func (lb *LoggingBridge) CloseCurrentTab() error {
	lb.closes.Add(1)
	LogInfo("[BRIDGE] CLOSE_TAB")
	return nil
}
