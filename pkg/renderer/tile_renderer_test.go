package renderer

import (
	"image"
	"math"
	"testing"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

// badIntegrator returns non-finite radiance for the left half of the image
type badIntegrator struct{}

func (badIntegrator) Trace(ray core.Ray, sampler core.Sampler) core.Vec3 {
	if ray.Direction.X < 0 {
		return core.NewVec3(math.NaN(), math.Inf(1), -1)
	}
	return core.Splat(5000)
}

func TestTileRenderer_RenderTileBounds(t *testing.T) {
	tracer := &constantIntegrator{color: core.NewVec3(0.2, 0.4, 0.6)}
	tr := NewTileRenderer(tracer, 1000)
	buffers := NewFrameBuffers(10, 10)
	bounds := image.Rect(2, 3, 6, 5)

	stats := tr.RenderTileBounds(bounds, testCamera(10, 10), buffers, 0, 3)

	if stats.Pixels != 8 || stats.Samples != 24 {
		t.Errorf("stats = %+v, want 8 pixels and 24 samples", stats)
	}
	if got := tracer.calls.Load(); got != 24 {
		t.Errorf("Trace calls = %d, want 24", got)
	}

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			i := y*10 + x
			inside := image.Pt(x, y).In(bounds)
			a := buffers.Accumulation[i]
			if inside {
				if a.Count != 1 || math.Abs(a.Color.Y-0.4) > 1e-12 {
					t.Errorf("pixel (%d,%d) = %+v, want (0.2,0.4,0.6) x1", x, y, a)
				}
				if math.Abs(buffers.Radiance[i].Z-0.6) > 1e-12 {
					t.Errorf("pixel (%d,%d) radiance = %v", x, y, buffers.Radiance[i])
				}
			} else if a.Count != 0 {
				t.Errorf("pixel (%d,%d) outside the tile was written", x, y)
			}
		}
	}
}

func TestTileRenderer_SanitizesSamples(t *testing.T) {
	tr := NewTileRenderer(badIntegrator{}, 100)
	buffers := NewFrameBuffers(4, 1)

	tr.RenderTileBounds(image.Rect(0, 0, 4, 1), testCamera(4, 1), buffers, 0, 1)

	left, right := buffers.Radiance[0], buffers.Radiance[3]
	if !left.IsZero() {
		t.Errorf("non-finite sample = %v, want zero", left)
	}
	if right != core.Splat(100) {
		t.Errorf("bright sample = %v, want clamp at 100", right)
	}
}

func TestTileRenderer_Deterministic(t *testing.T) {
	render := func() []core.Vec3 {
		buffers := NewFrameBuffers(6, 6)
		NewTileRenderer(frameIntegrator{}, 0).RenderTileBounds(image.Rect(0, 0, 6, 6), testCamera(6, 6), buffers, 3, 2)
		return buffers.Radiance
	}
	a, b := render(), render()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pixel %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}
}
