package main

import (
	"testing"
	"time"
)

func solidFrame(w, h int, fill uint32, captured time.Time) *Frame {
	px := make([]uint32, w*h)
	for i := range px {
		px[i] = fill
	}
	return &Frame{Width: w, Height: h, Pixels: px, Captured: captured}
}

func TestFrameHashStableForIdenticalFrames(t *testing.T) {
	at := time.Unix(1000, 0)
	a := solidFrame(64, 64, 0xFF112233, at)
	b := solidFrame(64, 64, 0xFF112233, at)

	if FrameHash(a) != FrameHash(b) {
		t.Fatal("identical frames must hash equal")
	}
}

func TestFrameHashChangesWithContent(t *testing.T) {
	at := time.Unix(1000, 0)
	a := solidFrame(64, 64, 0xFF112233, at)
	b := solidFrame(64, 64, 0xFF112234, at)

	if FrameHash(a) == FrameHash(b) {
		t.Fatal("different pixel content must change the hash")
	}
}

func TestFrameHashChangesWithDimensions(t *testing.T) {
	at := time.Unix(1000, 0)
	a := solidFrame(64, 64, 0xFF112233, at)
	b := solidFrame(32, 128, 0xFF112233, at)

	if FrameHash(a) == FrameHash(b) {
		t.Fatal("different dimensions must change the hash")
	}
}

func TestFrameHashTimeBucketing(t *testing.T) {
	a := solidFrame(64, 64, 0xFF112233, time.Unix(1000, 0))
	b := solidFrame(64, 64, 0xFF112233, time.Unix(1009, 0)) // same bucket
	c := solidFrame(64, 64, 0xFF112233, time.Unix(1010, 0)) // next bucket

	if FrameHash(a) != FrameHash(b) {
		t.Fatal("frames inside one time bucket must hash equal")
	}
	if FrameHash(a) == FrameHash(c) {
		t.Fatal("frames in different time buckets must hash differently")
	}
}
