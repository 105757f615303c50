package main

import (
	"testing"
	"time"
)

func tunerConfig(auto bool) DetectionConfig {
	return DetectionConfig{
		NSFWThreshold:   0.5,
		GenderThreshold: 0.6,
		AutoThreshold:   auto,
	}
}

// feed records n outcomes at now, then one more past the recalc interval to
// trigger a recalculation.
func feed(at *AdaptiveThresholds, n int, inappropriate bool, start time.Time) time.Time {
	now := start
	for i := 0; i < n; i++ {
		now = now.Add(time.Second)
		at.RecordOutcome(inappropriate, now)
	}
	now = now.Add(tunerMinInterval)
	at.RecordOutcome(inappropriate, now)
	return now
}

func TestTunerLowersThresholdsUnderHotTraffic(t *testing.T) {
	at := NewAdaptiveThresholds(tunerConfig(true))
	before := at.NSFW()

	feed(at, tunerMinSamples, true, time.Now())

	if at.NSFW() >= before {
		t.Fatalf("nsfw threshold should drop under all-inappropriate traffic: %.2f -> %.2f", before, at.NSFW())
	}
}

func TestTunerRaisesThresholdsUnderCalmTraffic(t *testing.T) {
	cfg := tunerConfig(true)
	at := NewAdaptiveThresholds(cfg)

	// Drive it down first so there is headroom below the user cap.
	now := feed(at, tunerMinSamples, true, time.Now())
	lowered := at.NSFW()

	now = now.Add(learnHistoryTTL + time.Minute) // age out the hot window
	feed(at, tunerMinSamples, false, now)

	if at.NSFW() <= lowered {
		t.Fatalf("nsfw threshold should rise under all-clean traffic: %.2f -> %.2f", lowered, at.NSFW())
	}
}

func TestTunerNeverCrossesSafetyClamps(t *testing.T) {
	at := NewAdaptiveThresholds(tunerConfig(true))

	now := time.Now()
	for round := 0; round < 50; round++ {
		now = feed(at, tunerMinSamples, true, now)
	}

	if at.nsfw < nsfwThresholdFloor {
		t.Fatalf("nsfw threshold below floor: %.2f", at.nsfw)
	}
	if at.gender < genderThresholdFloor {
		t.Fatalf("gender threshold below floor: %.2f", at.gender)
	}
}

func TestTunerNeverExceedsUserCap(t *testing.T) {
	cfg := tunerConfig(true)
	cfg.NSFWThreshold = 0.3 // aggressive user setting
	at := NewAdaptiveThresholds(cfg)

	now := time.Now()
	for round := 0; round < 50; round++ {
		now = now.Add(learnHistoryTTL + time.Minute)
		now = feed(at, tunerMinSamples, false, now)
	}

	if at.NSFW() > 0.3 {
		t.Fatalf("effective threshold %.2f exceeds user cap 0.3", at.NSFW())
	}
}

func TestTunerNoRecalcWithoutEnoughSamples(t *testing.T) {
	at := NewAdaptiveThresholds(tunerConfig(true))
	before := at.NSFW()

	now := time.Now()
	// Fewer than tunerMinSamples records, spread past the interval.
	for i := 0; i < tunerMinSamples-1; i++ {
		now = now.Add(tunerMinInterval)
		at.RecordOutcome(true, now)
	}

	if at.NSFW() != before {
		t.Fatalf("threshold moved with only %d samples", tunerMinSamples-1)
	}
}

func TestTunerNoRecalcBeforeInterval(t *testing.T) {
	at := NewAdaptiveThresholds(tunerConfig(true))
	at.lastRecalc = time.Now()
	before := at.NSFW()

	now := time.Now()
	for i := 0; i < tunerMinSamples*2; i++ {
		now = now.Add(time.Second)
		at.RecordOutcome(true, now)
	}

	if at.NSFW() != before {
		t.Fatal("threshold moved before tunerMinInterval elapsed")
	}
}

func TestTunerDisabledIsInert(t *testing.T) {
	at := NewAdaptiveThresholds(tunerConfig(false))
	before := at.NSFW()

	feed(at, tunerMinSamples*2, true, time.Now())

	if at.NSFW() != before {
		t.Fatal("disabled tuner must never move thresholds")
	}
	if len(at.history) != 0 {
		t.Fatal("disabled tuner must not accumulate history")
	}
}

func TestTunerResetRestoresConfiguredValues(t *testing.T) {
	cfg := tunerConfig(true)
	at := NewAdaptiveThresholds(cfg)
	feed(at, tunerMinSamples, true, time.Now())

	at.Reset(cfg)

	if at.NSFW() != 0.5 || at.Gender() != 0.6 {
		t.Fatalf("reset should restore configured thresholds, got nsfw=%.2f gender=%.2f", at.NSFW(), at.Gender())
	}
}
