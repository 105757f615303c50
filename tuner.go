/*
File: tuner.go
Version: 1.3.0
Description: Adaptive detection threshold tuning from rolling outcome history.
             Shifts are small and hard-clamped so learning can never disable
             detection or drive the pipeline into permanent full blur.
*/

package main

import (
	"time"
)

type outcomeRecord struct {
	when          time.Time
	inappropriate bool
}

// AdaptiveThresholds recalculates the effective NSFW and gender confidence
// thresholds from a rolling window of detection outcomes. Owned by the
// frame-processing stream; not safe for concurrent use.
type AdaptiveThresholds struct {
	enabled bool

	nsfw   float64
	gender float64

	// User caps. The effective threshold never rises above these; a user
	// asking for aggressive filtering keeps it even when traffic looks calm.
	nsfwCap   float64
	genderCap float64

	history    []outcomeRecord
	lastRecalc time.Time
}

func NewAdaptiveThresholds(cfg DetectionConfig) *AdaptiveThresholds {
	return &AdaptiveThresholds{
		enabled:   cfg.AutoThreshold,
		nsfw:      clampF(cfg.NSFWThreshold, nsfwThresholdFloor, nsfwThresholdCeil),
		gender:    clampF(cfg.GenderThreshold, genderThresholdFloor, genderThresholdCeil),
		nsfwCap:   cfg.NSFWThreshold,
		genderCap: cfg.GenderThreshold,
	}
}

// NSFW returns the effective NSFW threshold.
func (at *AdaptiveThresholds) NSFW() float64 {
	return minF(at.nsfw, at.nsfwCap)
}

// Gender returns the effective gender-confidence threshold.
func (at *AdaptiveThresholds) Gender() float64 {
	return minF(at.gender, at.genderCap)
}

// RecordOutcome feeds one detection outcome into the learning window and
// recalculates when due. Recalculation is a no-op unless at least
// tunerMinInterval has passed since the last run and tunerMinSamples exist in
// the window, keeping thresholds stable under sparse traffic.
func (at *AdaptiveThresholds) RecordOutcome(wasInappropriate bool, now time.Time) {
	if !at.enabled {
		return
	}

	at.history = append(at.history, outcomeRecord{when: now, inappropriate: wasInappropriate})
	at.prune(now)

	if now.Sub(at.lastRecalc) < tunerMinInterval {
		return
	}
	if len(at.history) < tunerMinSamples {
		return
	}
	at.recalc(now)
}

func (at *AdaptiveThresholds) prune(now time.Time) {
	keep := at.history[:0]
	for _, r := range at.history {
		if now.Sub(r.when) <= learnHistoryTTL {
			keep = append(keep, r)
		}
	}
	at.history = keep

	if len(at.history) > learnWindowEntries {
		at.history = at.history[len(at.history)-learnWindowEntries:]
	}
}

func (at *AdaptiveThresholds) recalc(now time.Time) {
	at.lastRecalc = now

	bad := 0
	for _, r := range at.history {
		if r.inappropriate {
			bad++
		}
	}
	ratio := float64(bad) / float64(len(at.history))

	prevNSFW, prevGender := at.nsfw, at.gender

	switch {
	case ratio >= tunerHotRatio:
		// Mostly inappropriate traffic: lower the bar, catch earlier.
		at.nsfw -= tunerLargeStep
		at.gender -= tunerLargeStep
	case ratio <= tunerCalmRatio:
		// Mostly clean traffic: relax slightly to cut false positives.
		at.nsfw += tunerSmallStep
		at.gender += tunerSmallStep
	}

	at.nsfw = clampF(at.nsfw, nsfwThresholdFloor, nsfwThresholdCeil)
	at.gender = clampF(at.gender, genderThresholdFloor, genderThresholdCeil)

	if at.nsfw != prevNSFW || at.gender != prevGender {
		LogInfo("[TUNER] Thresholds shifted: nsfw %.2f -> %.2f, gender %.2f -> %.2f (ratio=%.2f, samples=%d)",
			prevNSFW, at.nsfw, prevGender, at.gender, ratio, len(at.history))
	} else if IsDebugEnabled() {
		LogDebug("[TUNER] Recalc no-op (ratio=%.2f, samples=%d)", ratio, len(at.history))
	}
}

// Reset drops the learning history and returns thresholds to their clamped
// configured values.
func (at *AdaptiveThresholds) Reset(cfg DetectionConfig) {
	at.nsfw = clampF(cfg.NSFWThreshold, nsfwThresholdFloor, nsfwThresholdCeil)
	at.gender = clampF(cfg.GenderThreshold, genderThresholdFloor, genderThresholdCeil)
	at.history = nil
	at.lastRecalc = time.Time{}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
