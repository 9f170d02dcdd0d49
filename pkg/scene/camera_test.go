package scene

import (
	"math"
	"testing"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
)

func testCamera(width, height int, vfov float64) *Camera {
	return NewCamera(CameraConfig{
		Center: core.NewVec3(0, 0, 0),
		LookAt: core.NewVec3(0, 0, -1),
		Up:     core.NewVec3(0, 1, 0),
		Width:  width,
		Height: height,
		VFov:   vfov,
	})
}

func TestCamera_GenerateRay(t *testing.T) {
	camera := testCamera(101, 101, 60)

	center := camera.GenerateRay(50, 50, core.NewVec2(0.5, 0.5))
	if !vecClose(center.Direction, core.NewVec3(0, 0, -1), 1e-9) {
		t.Errorf("center ray = %v, want (0,0,-1)", center.Direction)
	}
	if center.Origin != camera.Position() {
		t.Errorf("ray origin = %v, want camera position", center.Origin)
	}

	top := camera.GenerateRay(50, 0, core.NewVec2(0.5, 0.5))
	if top.Direction.Y <= 0 {
		t.Errorf("row 0 should point up, got %v", top.Direction)
	}
	left := camera.GenerateRay(0, 50, core.NewVec2(0.5, 0.5))
	if left.Direction.X >= 0 {
		t.Errorf("column 0 should point left, got %v", left.Direction)
	}

	// The top edge of the image lies at half the vertical field of view
	edge := camera.GenerateRay(50, 0, core.NewVec2(0.5, 0))
	angle := math.Acos(edge.Direction.Dot(camera.Forward())) * 180 / math.Pi
	if math.Abs(angle-30) > 1e-6 {
		t.Errorf("edge angle = %v, want 30", angle)
	}

	if l := edge.Direction.Length(); math.Abs(l-1) > 1e-9 {
		t.Errorf("direction length = %v, want 1", l)
	}
}

func TestCamera_ParallelUp(t *testing.T) {
	camera := NewCamera(CameraConfig{
		Center: core.NewVec3(0, 5, 0),
		LookAt: core.NewVec3(0, 0, 0),
		Up:     core.NewVec3(0, 1, 0),
		Width:  16,
		Height: 16,
		VFov:   45,
	})
	ray := camera.GenerateRay(8, 8, core.NewVec2(0, 0))
	if !ray.Direction.IsFinite() {
		t.Fatalf("direction not finite: %v", ray.Direction)
	}
	if ray.Direction.Y > -0.9 {
		t.Errorf("center ray should look down, got %v", ray.Direction)
	}
}

func TestCamera_Resize(t *testing.T) {
	camera := testCamera(100, 50, 40)
	resized := camera.Resize(200, 100)

	cfg := resized.Config()
	if cfg.Width != 200 || cfg.Height != 100 {
		t.Errorf("size = %dx%d, want 200x100", cfg.Width, cfg.Height)
	}
	if cfg.VFov != 40 {
		t.Errorf("VFov = %v, want 40", cfg.VFov)
	}
	if camera.Config().Width != 100 {
		t.Error("Resize() modified the original camera")
	}
}

func TestVerticalFOV(t *testing.T) {
	tests := []struct {
		name   string
		fov    float64
		axis   string
		aspect float64
		want   float64
	}{
		{"y axis unchanged", 45, "y", 2, 45},
		{"x axis square", 60, "x", 1, 60},
		{"x axis wide", 90, "x", 2, 2 * math.Atan(0.5) * 180 / math.Pi},
		{"x axis tall", 90, "x", 0.5, 2 * math.Atan(2) * 180 / math.Pi},
		{"invalid aspect", 50, "x", 0, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerticalFOV(tt.fov, tt.axis, tt.aspect)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("VerticalFOV(%v, %q, %v) = %v, want %v", tt.fov, tt.axis, tt.aspect, got, tt.want)
			}
		})
	}
}
