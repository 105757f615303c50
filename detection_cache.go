/*
File: detection_cache.go
Version: 1.1.0
Description: Frame decision cache and recent-detection history.
             Single-writer: only the frame-processing stream touches this state,
             so no locking is needed (see service.go).
*/

package main

import (
	"time"
)

type cacheEntry struct {
	when       time.Time
	shouldBlur bool
}

type recentDetection struct {
	when          time.Time
	inappropriate bool
}

// CacheLookup is the result of a shouldProcess check.
type CacheLookup struct {
	Cached   bool
	Decision bool // valid only when Cached
}

// DetectionCache deduplicates visually-identical consecutive frames and keeps
// the short rolling detection history. Entry counts stay small: they are
// bounded by frames-per-TTL-window, so O(n) sweeps per frame are fine.
type DetectionCache struct {
	entries map[string]cacheEntry
	recent  []recentDetection

	hits   uint64
	misses uint64
}

func NewDetectionCache() *DetectionCache {
	return &DetectionCache{
		entries: make(map[string]cacheEntry),
	}
}

// ShouldProcess sweeps expired state, then reports whether a cached decision
// exists for the frame. A hit means the classifier must not run again.
func (dc *DetectionCache) ShouldProcess(hash string, now time.Time) CacheLookup {
	dc.sweep(now)

	if e, ok := dc.entries[hash]; ok {
		dc.hits++
		if IsDebugEnabled() {
			LogDebug("[CACHE] Hit %s -> blur=%v", hash, e.shouldBlur)
		}
		return CacheLookup{Cached: true, Decision: e.shouldBlur}
	}
	dc.misses++
	return CacheLookup{}
}

// Store records the final blur decision for a frame hash. At most one entry
// per hash; a re-store refreshes the timestamp.
func (dc *DetectionCache) Store(hash string, shouldBlur bool, now time.Time) {
	dc.entries[hash] = cacheEntry{when: now, shouldBlur: shouldBlur}
}

// RecordDetection appends to the recent-detections list.
func (dc *DetectionCache) RecordDetection(inappropriate bool, now time.Time) {
	dc.recent = append(dc.recent, recentDetection{when: now, inappropriate: inappropriate})
}

// RecentInappropriate counts inappropriate detections still inside the 10s window.
func (dc *DetectionCache) RecentInappropriate(now time.Time) int {
	n := 0
	for _, d := range dc.recent {
		if d.inappropriate && now.Sub(d.when) <= recentDetectionTTL {
			n++
		}
	}
	return n
}

func (dc *DetectionCache) sweep(now time.Time) {
	for k, e := range dc.entries {
		if now.Sub(e.when) > decisionCacheTTL {
			delete(dc.entries, k)
		}
	}

	if len(dc.recent) > 0 {
		keep := dc.recent[:0]
		for _, d := range dc.recent {
			if now.Sub(d.when) <= recentDetectionTTL {
				keep = append(keep, d)
			}
		}
		dc.recent = keep
	}
}

// Flush drops everything. Used by the emergency reset path.
func (dc *DetectionCache) Flush() {
	dc.entries = make(map[string]cacheEntry)
	dc.recent = nil
}

// Stats returns cumulative hit/miss counters.
func (dc *DetectionCache) Stats() (hits, misses uint64) {
	return dc.hits, dc.misses
}
