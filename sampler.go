/*
File: sampler.go
Version: 1.2.0
Description: Periodic screen capture loop over the platform screenshot boundary.
             Failures skip the frame and back the interval off by doubling once;
             nothing thrown here may escape the loop.
*/

package main

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ScreenSource is the platform screenshot boundary. Capture blocks until a
// frame is available, the context expires, or the source fails. Release frees
// platform capture resources (display handles, image readers).
type ScreenSource interface {
	Capture(ctx context.Context) (*Frame, error)
	Release() error
}

// Sampler owns the capture loop. One frame is in flight at a time: the loop
// does not capture again until the previous onFrame callback returns, which is
// the pipeline's designed backpressure mechanism.
type Sampler struct {
	source   ScreenSource
	interval time.Duration
	budget   time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	released bool

	captured uint64
	skipped  uint64
}

func NewSampler(source ScreenSource, interval, budget time.Duration) *Sampler {
	if interval < captureIntervalFloor {
		interval = captureIntervalFloor
	}
	if budget <= 0 {
		budget = captureBudget
	}
	return &Sampler{
		source:   source,
		interval: interval,
		budget:   budget,
	}
}

// StartCapturing begins the repeating capture loop. onFrame runs on the
// sampler goroutine; returning from it re-arms the inter-frame delay.
// Calling StartCapturing while running is a no-op.
func (s *Sampler) StartCapturing(parent context.Context, onFrame func(*Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.released = false

	go s.loop(ctx, onFrame)
	LogInfo("[SAMPLER] Capture loop started (interval=%v, budget=%v)", s.interval, s.budget)
}

func (s *Sampler) loop(ctx context.Context, onFrame func(*Frame)) {
	defer close(s.done)

	interval := s.interval
	backedOff := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		frame, err := s.captureOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.skipped++
			// Back off by doubling once; recover on the next success.
			if !backedOff {
				interval = s.interval * 2
				backedOff = true
				LogWarn("[SAMPLER] Capture failed (%v), backing off to %v", err, interval)
			} else if IsDebugEnabled() {
				LogDebug("[SAMPLER] Capture failed again: %v", err)
			}
			continue
		}

		if backedOff {
			interval = s.interval
			backedOff = false
		}
		if frame == nil {
			s.skipped++
			continue
		}

		s.captured++
		s.deliver(frame, onFrame)
	}
}

// captureOnce wraps a single screenshot attempt in the capture budget.
func (s *Sampler) captureOnce(ctx context.Context) (*Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	type result struct {
		frame *Frame
		err   error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				LogError("[SAMPLER] Panic in screen source: %v", r)
				ch <- result{err: errors.New("screen source panic")}
			}
		}()
		f, err := s.source.Capture(ctx)
		ch <- result{frame: f, err: err}
	}()

	select {
	case r := <-ch:
		return r.frame, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Sampler) deliver(frame *Frame, onFrame func(*Frame)) {
	defer func() {
		if r := recover(); r != nil {
			LogError("[SAMPLER] Panic in frame consumer: %v", r)
		}
	}()
	onFrame(frame)
}

// StopCapturing cancels the loop and releases capture resources exactly once.
// Safe to call repeatedly; a double release is tolerated.
func (s *Sampler) StopCapturing() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.released {
		s.released = true
		if err := s.source.Release(); err != nil {
			LogWarn("[SAMPLER] Release failed: %v", err)
		}
		LogInfo("[SAMPLER] Capture stopped (captured=%d, skipped=%d)", s.captured, s.skipped)
	}
}

// Stats returns cumulative capture counters.
func (s *Sampler) Stats() (captured, skipped uint64) {
	return s.captured, s.skipped
}

// --- Simulated source ---

// SimulatedScreenSource produces synthetic frames. Used when no platform
// capture bridge is wired in, and by tests.
type SimulatedScreenSource struct {
	Width  int
	Height int
	Fill   uint32

	releases int
}

func (sim *SimulatedScreenSource) Capture(ctx context.Context) (*Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	px := make([]uint32, sim.Width*sim.Height)
	for i := range px {
		px[i] = sim.Fill
	}
	return &Frame{
		Width:    sim.Width,
		Height:   sim.Height,
		Pixels:   px,
		Captured: time.Now(),
	}, nil
}

func (sim *SimulatedScreenSource) Release() error {
	sim.releases++
	return nil
}
