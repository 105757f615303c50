/*
File: overlay_effects.go
Version: 1.2.0
Description: Render plans for the overlay backends. Pure geometry and effect
             parameters; the window backend turns plans into actual draws.
*/

package main

import (
	"math/rand"
)

type PlanKind int

const (
	PlanBlur PlanKind = iota
	PlanFullScreen
	PlanBlockedSite
)

// NoiseDot is one random speckle drawn over a blurred region.
type NoiseDot struct {
	X      int
	Y      int
	Radius int
}

// RegionEffect is the per-region draw recipe for one intensity tier.
type RegionEffect struct {
	Region     Rect
	TintAlpha  uint8 // 0..255 over the base fill
	PixelSize  int   // 0 disables pixelation
	Noise      []NoiseDot
	DrawBorder bool
	OpaqueFill bool
}

// RenderPlan is what a WindowBackend receives.
type RenderPlan struct {
	Kind    PlanKind
	Style   BlurStyle
	Regions []RegionEffect

	// Full-screen / blocked-site fields
	BaseAlpha      uint8
	WarningLines   int // directional warning-line pattern density
	PatternDensity int // decorative geometric pattern density
	Severe         bool
	Category       string
	Guidance       string

	ScreenW int
	ScreenH int
}

// ValidateRegions clamps every rectangle to the screen and drops degenerate
// ones. Output regions are always fully contained in [0,w]x[0,h].
func ValidateRegions(regions []Rect, w, h int) []Rect {
	out := make([]Rect, 0, len(regions))
	for _, r := range regions {
		if c, ok := r.Clamp(w, h); ok {
			out = append(out, c)
		}
	}
	return out
}

// BuildBlurPlan produces the selective-blur plan. Returns false when no region
// survives validation; the caller should hide instead of drawing nothing.
func BuildBlurPlan(regions []Rect, intensity Intensity, style BlurStyle, w, h int) (RenderPlan, bool) {
	valid := ValidateRegions(regions, w, h)
	if len(valid) == 0 {
		return RenderPlan{}, false
	}

	plan := RenderPlan{
		Kind:    PlanBlur,
		Style:   style,
		ScreenW: w,
		ScreenH: h,
	}
	for _, r := range valid {
		plan.Regions = append(plan.Regions, regionEffect(r, intensity))
	}
	return plan, true
}

// regionEffect maps the intensity tier onto concrete draw parameters:
// LIGHT is a flat low-alpha tint, MEDIUM adds coarse pixelation, STRONG adds
// random noise dots, MAXIMUM is an opaque fill with dense pixelation, noise,
// and a border.
func regionEffect(r Rect, intensity Intensity) RegionEffect {
	switch intensity {
	case IntensityLight:
		return RegionEffect{Region: r, TintAlpha: 110}
	case IntensityMedium:
		return RegionEffect{Region: r, TintAlpha: 160, PixelSize: 24}
	case IntensityStrong:
		return RegionEffect{Region: r, TintAlpha: 200, PixelSize: 16, Noise: noiseDots(r, 40)}
	default: // MAXIMUM
		return RegionEffect{
			Region:     r,
			TintAlpha:  255,
			PixelSize:  8,
			Noise:      noiseDots(r, 120),
			DrawBorder: true,
			OpaqueFill: true,
		}
	}
}

func noiseDots(r Rect, count int) []NoiseDot {
	dots := make([]NoiseDot, 0, count)
	for i := 0; i < count; i++ {
		dots = append(dots, NoiseDot{
			X:      r.Left + rand.Intn(maxI(r.Width(), 1)),
			Y:      r.Top + rand.Intn(maxI(r.Height(), 1)),
			Radius: 1 + rand.Intn(3),
		})
	}
	return dots
}

// BuildFullScreenPlan produces the warning overlay plan. Region-density
// triggers get the more severe visual treatment: darker base, denser warning
// lines and pattern.
func BuildFullScreenPlan(category string, regionDense bool, w, h int) RenderPlan {
	plan := RenderPlan{
		Kind:           PlanFullScreen,
		ScreenW:        w,
		ScreenH:        h,
		Category:       category,
		Severe:         regionDense,
		BaseAlpha:      230,
		WarningLines:   12,
		PatternDensity: 24,
	}
	if regionDense {
		plan.BaseAlpha = 250
		plan.WarningLines = 24
		plan.PatternDensity = 48
	}
	return plan
}

// BuildBlockedSitePlan produces the blocked-site overlay plan. Severity scales
// the base dim.
func BuildBlockedSitePlan(verdict BlockVerdict, guidance string, w, h int) RenderPlan {
	alpha := uint8(200)
	if verdict.Severity >= 3 {
		alpha = 245
	} else if verdict.Severity == 2 {
		alpha = 225
	}
	return RenderPlan{
		Kind:      PlanBlockedSite,
		ScreenW:   w,
		ScreenH:   h,
		Category:  verdict.Category,
		Guidance:  guidance,
		BaseAlpha: alpha,
		Severe:    verdict.Severity >= 3,
	}
}

func maxI(a, b int) int {
	if a > b {
		return a
	}
	return b
}
