package texture

import (
	"math"
	"testing"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

func checkerImage() *Image {
	img := NewImage(2, 2)
	img.Set(0, 0, RGBA{1, 0, 0, 1}) // top-left
	img.Set(1, 0, RGBA{0, 1, 0, 1}) // top-right
	img.Set(0, 1, RGBA{0, 0, 1, 1}) // bottom-left
	img.Set(1, 1, RGBA{1, 1, 1, 1}) // bottom-right
	return img
}

func TestImage_SampleTexelCenters(t *testing.T) {
	img := checkerImage()

	tests := []struct {
		name     string
		uv       core.Vec2
		expected RGBA
	}{
		{"top-left", core.NewVec2(0.25, 0.75), RGBA{1, 0, 0, 1}},
		{"top-right", core.NewVec2(0.75, 0.75), RGBA{0, 1, 0, 1}},
		{"bottom-left", core.NewVec2(0.25, 0.25), RGBA{0, 0, 1, 1}},
		{"bottom-right", core.NewVec2(0.75, 0.25), RGBA{1, 1, 1, 1}},
		{"wrapped", core.NewVec2(1.25, -0.75), RGBA{0, 0, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := img.Sample(tt.uv)
			if math.Abs(got.R-tt.expected.R) > 1e-9 ||
				math.Abs(got.G-tt.expected.G) > 1e-9 ||
				math.Abs(got.B-tt.expected.B) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestImage_BilinearMidpoint(t *testing.T) {
	img := NewImage(2, 1)
	img.Set(0, 0, RGBA{0, 0, 0, 1})
	img.Set(1, 0, RGBA{1, 1, 1, 1})

	got := img.Sample(core.NewVec2(0.5, 0.5))
	if math.Abs(got.R-0.5) > 1e-9 {
		t.Errorf("expected halfway blend, got %v", got)
	}
}

func TestStore_FallbackIsOpaqueWhite(t *testing.T) {
	store := NewStore()
	idx := store.Add("checker", checkerImage())

	if idx != 0 {
		t.Fatalf("expected first index 0, got %d", idx)
	}
	for _, bad := range []int32{-1, 1, 42} {
		if got := store.Sample(bad, core.NewVec2(0.3, 0.3)); got != White {
			t.Errorf("index %d: expected opaque white, got %v", bad, got)
		}
	}

	var nilStore *Store
	if got := nilStore.Sample(0, core.NewVec2(0, 0)); got != White {
		t.Errorf("nil store: expected opaque white, got %v", got)
	}
	if store.Len() != 1 || store.Name(0) != "checker" {
		t.Errorf("unexpected store contents: len=%d", store.Len())
	}
}

func TestEquirectUV(t *testing.T) {
	tests := []struct {
		name string
		dir  core.Vec3
		u, v float64
	}{
		{"forward", core.NewVec3(0, 0, 1), 0.5, 0.5},
		{"up", core.NewVec3(0, 1, 0), 0.5, 1.0},
		{"down", core.NewVec3(0, -1, 0), 0.5, 0.0},
		{"right", core.NewVec3(1, 0, 0), 0.75, 0.5},
		{"left", core.NewVec3(-1, 0, 0), 0.25, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uv := EquirectUV(tt.dir)
			if math.Abs(uv.X-tt.u) > 1e-9 || math.Abs(uv.Y-tt.v) > 1e-9 {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.u, tt.v, uv.X, uv.Y)
			}
		})
	}

	// Slightly out-of-range y is clamped instead of producing NaN
	uv := EquirectUV(core.NewVec3(0, 1.0000001, 0))
	if math.IsNaN(uv.Y) {
		t.Error("expected clamped latitude")
	}
}

func TestEnvironment_Radiance(t *testing.T) {
	top := core.NewVec3(0.5, 0.7, 1.0)
	bottom := core.NewVec3(1, 1, 1)

	sky := NewGradientEnvironment(top, bottom)
	if got := sky.Radiance(core.NewVec3(0, 1, 0)); got.Subtract(top).Length() > 1e-9 {
		t.Errorf("zenith: expected %v, got %v", top, got)
	}
	if got := sky.Radiance(core.NewVec3(0, -1, 0)); got.Subtract(bottom).Length() > 1e-9 {
		t.Errorf("nadir: expected %v, got %v", bottom, got)
	}

	uniform := NewUniformEnvironment(core.NewVec3(0.2, 0.2, 0.2))
	if got := uniform.Radiance(core.NewVec3(0.3, 0.1, -0.9)); math.Abs(got.X-0.2) > 1e-9 {
		t.Errorf("expected constant radiance, got %v", got)
	}

	img := NewImage(4, 2)
	for i := range img.Texels {
		img.Texels[i] = RGBA{0.5, 0.25, 0.125, 1}
	}
	mapped := NewMapEnvironment(img, 2)
	got := mapped.Radiance(core.NewVec3(0.2, 0.5, 0.3))
	if math.Abs(got.X-1) > 1e-9 || math.Abs(got.Z-0.25) > 1e-9 {
		t.Errorf("expected map radiance scaled by intensity, got %v", got)
	}

	var none *Environment
	if !none.Radiance(core.NewVec3(0, 1, 0)).IsZero() {
		t.Error("nil environment should be black")
	}
}
