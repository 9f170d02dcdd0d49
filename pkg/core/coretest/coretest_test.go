package coretest

import (
	"math"
	"testing"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

func TestUniformDirection(t *testing.T) {
	sampler := NewSampler(42)

	var sum core.Vec3
	const numSamples = 20000
	upper := 0
	for i := 0; i < numSamples; i++ {
		dir := UniformDirection(sampler.Get2D())
		if math.Abs(dir.Length()-1) > 1e-9 {
			t.Fatalf("direction not normalized: %v", dir)
		}
		if dir.Z > 0 {
			upper++
		}
		sum = sum.Add(dir)
	}

	// Uniform directions average to the origin and split evenly across hemispheres
	if mean := sum.Multiply(1.0 / numSamples); mean.Length() > 0.02 {
		t.Errorf("mean direction = %v, want ~0", mean)
	}
	if frac := float64(upper) / numSamples; math.Abs(frac-0.5) > 0.02 {
		t.Errorf("upper hemisphere fraction = %f, want 0.5", frac)
	}
}

func TestSampler_Deterministic(t *testing.T) {
	a, b := NewSampler(7), NewSampler(7)
	for i := 0; i < 100; i++ {
		x, y := a.Get3D(), b.Get3D()
		if x != y {
			t.Fatalf("draw %d differs: %v vs %v", i, x, y)
		}
		if x.X < 0 || x.X >= 1 || x.Y < 0 || x.Y >= 1 || x.Z < 0 || x.Z >= 1 {
			t.Fatalf("draw %d out of [0, 1): %v", i, x)
		}
	}
}
