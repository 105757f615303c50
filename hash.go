/*
File: hash.go
Version: 1.0.1
Description: Cheap perceptual frame hashing for cache deduplication.
             Collisions are an accepted tradeoff; only visually-identical
             consecutive frames need to collide reliably.
*/

package main

import (
	"strconv"
)

const (
	// Sample grid dimensions. 64 probes is enough to tell consecutive
	// frames apart without touching every pixel.
	hashGridCols = 8
	hashGridRows = 8

	// Frames hashed inside the same coarse bucket compare equal on the time
	// component. Must cover the decision cache TTL or identical frames
	// captured a few seconds apart would never hit cache.
	hashTimeBucketSec = 10
)

// FrameHash computes the cache key for a frame: dimensions, a coarse grid of
// sampled pixels, and a coarse time bucket, folded through FNV-1a.
func FrameHash(f *Frame) string {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	var h uint64 = offset64
	mix := func(v uint64) {
		for i := 0; i < 8; i++ {
			h ^= v & 0xff
			h *= prime64
			v >>= 8
		}
	}

	mix(uint64(f.Width))
	mix(uint64(f.Height))

	if f.Width > 0 && f.Height > 0 && len(f.Pixels) >= f.Width*f.Height {
		for gy := 0; gy < hashGridRows; gy++ {
			y := (f.Height - 1) * gy / (hashGridRows - 1)
			for gx := 0; gx < hashGridCols; gx++ {
				x := (f.Width - 1) * gx / (hashGridCols - 1)
				mix(uint64(f.Pixels[y*f.Width+x]))
			}
		}
	}

	mix(uint64(f.Captured.Unix() / hashTimeBucketSec))

	return strconv.FormatUint(h, 16)
}
