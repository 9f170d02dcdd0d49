package renderer

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/integrator"
)

func TestCalculateAverageLuminance(t *testing.T) {
	// Red 0.2126, green 0.7152, blue 0.0722, black 0: mean 0.25
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 0, color.RGBA{0, 255, 0, 255})
	img.Set(0, 1, color.RGBA{0, 0, 255, 255})
	img.Set(1, 1, color.RGBA{0, 0, 0, 255})

	avgLum := CalculateAverageLuminance(img)
	expected := 0.25
	tolerance := 0.0001

	if avgLum < expected-tolerance || avgLum > expected+tolerance {
		t.Errorf("Expected average luminosity %f, got %f", expected, avgLum)
	}
}

func TestCalculateAverageLuminance_White(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{255, 255, 255, 255})

	avgLum := CalculateAverageLuminance(img)
	if math.Abs(avgLum-1) > 0.0001 {
		t.Errorf("Expected average luminosity 1, got %f", avgLum)
	}
}

func TestCollectStats(t *testing.T) {
	accum := []integrator.Accumulation{
		{Color: core.Splat(1), Count: 2},
		{Color: core.Splat(0), Count: 4},
		{Color: core.Splat(0.5), Count: 3},
	}
	stats := collectStats(accum, 5, 2, 6)

	if stats.FrameIndex != 5 || stats.TotalPixels != 3 || stats.TotalSamples != 6 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.MinSamples != 4 || stats.MaxSamplesUsed != 8 {
		t.Errorf("min/max = %d/%d, want 4/8", stats.MinSamples, stats.MaxSamplesUsed)
	}
	if math.Abs(stats.AverageSamples-6) > 1e-12 {
		t.Errorf("AverageSamples = %v, want 6", stats.AverageSamples)
	}
	if math.Abs(stats.MeanLuminance-0.5) > 1e-12 {
		t.Errorf("MeanLuminance = %v, want 0.5", stats.MeanLuminance)
	}

	if empty := collectStats(nil, 0, 1, 0); empty.TotalPixels != 0 || empty.AverageSamples != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}
