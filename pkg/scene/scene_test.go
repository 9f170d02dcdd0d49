package scene

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/loaders"
	"github.com/df07/go-mitsuba-pathtracer/pkg/material"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Logger = zap.NewNop()
	return opts
}

func singleQuadDescription() *loaders.SceneDescription {
	return &loaders.SceneDescription{
		Path:      "test",
		Materials: material.Table{material.NewDiffuse(core.Splat(0.5))},
		Shapes: []loaders.ShapeDesc{
			{Type: "rectangle", Mesh: loaders.NewRectangleMesh(), Material: 0},
		},
		Sensor: loaders.SensorDesc{
			Position: core.NewVec3(0, 0, 5),
			Target:   core.NewVec3(0, 0, 0),
			Up:       core.NewVec3(0, 1, 0),
			FOV:      45,
			FOVAxis:  "y",
			Width:    32,
			Height:   32,
		},
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.NRGBA{R: 255, G: 128, B: 0, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func TestBuild_Cornell(t *testing.T) {
	s, err := Build(NewCornellDescription(), testOptions())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if len(s.Instances) != 8 {
		t.Errorf("instances = %d, want 8", len(s.Instances))
	}
	if got := s.EmitterCount(); got != 1 {
		t.Errorf("EmitterCount() = %d, want 1", got)
	}
	// 6 quads of 2 triangles plus 2 blocks of 12
	if got := s.TriangleCount(); got != 36 {
		t.Errorf("TriangleCount() = %d, want 36", got)
	}
	if len(s.Materials) != 5 {
		t.Errorf("materials = %d, want 5", len(s.Materials))
	}
	counts := s.MaterialCounts()
	if counts[material.Diffuse] != 3 || counts[material.RoughConductor] != 1 || counts[material.Dielectric] != 1 {
		t.Errorf("MaterialCounts() = %v", counts)
	}
	if bg := s.Environment.Radiance(core.NewVec3(0, 0, -1)); !bg.IsZero() {
		t.Errorf("background = %v, want black", bg)
	}
	if s.Report != nil {
		t.Errorf("unexpected report: %v", s.Report)
	}

	// Above both blocks the view ray reaches the back wall
	ray := core.NewRay(core.NewVec3(278, 500, -800), core.NewVec3(0, 0, 1))
	hit, ok := s.Intersect(ray, 0.001, math.Inf(1))
	if !ok {
		t.Fatal("expected the back wall to be hit")
	}
	if math.Abs(hit.T-1355) > 1e-6 {
		t.Errorf("hit.T = %v, want 1355", hit.T)
	}
	if hit.Instance != 2 {
		t.Errorf("hit.Instance = %d, want 2 (back wall)", hit.Instance)
	}
	if inst := s.Instance(hit.Instance); inst.Material != 0 || inst.Emitter {
		t.Errorf("back wall instance = %+v", inst)
	}
}

func TestBuild_InstanceTable(t *testing.T) {
	desc := singleQuadDescription()
	desc.Shapes = append(desc.Shapes,
		loaders.ShapeDesc{Type: "rectangle", Mesh: loaders.NewRectangleMesh(), Material: 99},
		loaders.ShapeDesc{Type: "obj", Mesh: nil, Material: 0},
		loaders.ShapeDesc{Type: "cube", Mesh: loaders.NewCubeMesh(), Material: 0, Emission: core.Splat(3)},
		loaders.ShapeDesc{Type: "rectangle", Mesh: loaders.NewRectangleMesh(), Material: 0, Emitter: true, Emission: core.Splat(5)},
	)

	s, err := Build(desc, testOptions())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(s.Instances) != 4 {
		t.Fatalf("instances = %d, want 4 (nil mesh skipped)", len(s.Instances))
	}

	tests := []struct {
		name         string
		index        int
		material     int32
		emission     core.Vec3
		vertexOffset int
		indexOffset  int
		triangles    int
	}{
		{"first quad", 0, 0, core.Vec3{}, 0, 0, 2},
		{"out of range material", 1, 0, core.Vec3{}, 4, 6, 2},
		{"non-emitter ignores emission", 2, 0, core.Vec3{}, 8, 12, 12},
		{"emitter", 3, 0, core.Splat(5), 32, 48, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := s.Instances[tt.index]
			if inst.Material != tt.material {
				t.Errorf("Material = %d, want %d", inst.Material, tt.material)
			}
			if inst.Emission != tt.emission {
				t.Errorf("Emission = %v, want %v", inst.Emission, tt.emission)
			}
			if inst.VertexOffset != tt.vertexOffset || inst.IndexOffset != tt.indexOffset {
				t.Errorf("offsets = (%d, %d), want (%d, %d)", inst.VertexOffset, inst.IndexOffset, tt.vertexOffset, tt.indexOffset)
			}
			if inst.TriangleCount != tt.triangles {
				t.Errorf("TriangleCount = %d, want %d", inst.TriangleCount, tt.triangles)
			}
		})
	}

	if got := s.Instance(-1); got != (Instance{}) {
		t.Errorf("Instance(-1) = %+v, want zero", got)
	}
}

func TestBuild_EmptyScene(t *testing.T) {
	tests := []struct {
		name string
		desc *loaders.SceneDescription
	}{
		{"nil description", nil},
		{"no shapes", &loaders.SceneDescription{}},
		{"empty mesh", &loaders.SceneDescription{Shapes: []loaders.ShapeDesc{{Mesh: &loaders.MeshData{}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.desc, testOptions())
			if !errors.Is(err, ErrEmptyScene) {
				t.Errorf("Build() error = %v, want ErrEmptyScene", err)
			}
		})
	}
}

func TestBuild_Textures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "albedo.png")
	writePNG(t, good)

	desc := singleQuadDescription()
	desc.Textures = []loaders.TextureRef{
		{Path: filepath.Join(dir, "missing.png"), Space: loaders.SRGB},
		{Path: good, Space: loaders.SRGB},
	}
	broken := material.NewDiffuse(core.Splat(0.5))
	broken.BaseColorTexture = 0
	textured := material.NewDiffuse(core.Splat(0.5))
	textured.BaseColorTexture = 1
	textured.RoughnessTexture = 7 // out of range
	desc.Materials = append(desc.Materials, broken, textured)

	s, err := Build(desc, testOptions())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if s.Textures.Len() != 1 {
		t.Errorf("texture store size = %d, want 1", s.Textures.Len())
	}
	if got := s.Materials[1].BaseColorTexture; got != material.NoTexture {
		t.Errorf("missing texture slot = %d, want NoTexture", got)
	}
	if got := s.Materials[2].BaseColorTexture; got != 0 {
		t.Errorf("loaded texture slot = %d, want 0", got)
	}
	if got := s.Materials[2].RoughnessTexture; got != material.NoTexture {
		t.Errorf("out of range slot = %d, want NoTexture", got)
	}
	if n := len(multierr.Errors(s.Report)); n != 1 {
		t.Errorf("report has %d errors, want 1: %v", n, s.Report)
	}
	// The description's table is not modified
	if desc.Materials[2].BaseColorTexture != 1 {
		t.Error("Build() modified the description's materials")
	}
}

func TestBuild_Environment(t *testing.T) {
	t.Run("missing map falls back to gradient", func(t *testing.T) {
		desc := singleQuadDescription()
		desc.Environment = loaders.EnvironmentDesc{
			Kind:      loaders.EnvironmentMap,
			Filename:  filepath.Join(t.TempDir(), "sky.hdr"),
			Intensity: 1,
		}
		s, err := Build(desc, testOptions())
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		if s.Environment.Map != nil {
			t.Error("expected no environment map")
		}
		if s.Report == nil {
			t.Error("expected the missing map to be reported")
		}
		up := s.Environment.Radiance(core.NewVec3(0, 1, 0))
		if !vecClose(up, core.NewVec3(0.5, 0.7, 1.0), 1e-9) {
			t.Errorf("zenith = %v, want sky top", up)
		}
	})

	t.Run("constant emitter", func(t *testing.T) {
		desc := singleQuadDescription()
		desc.Environment = loaders.EnvironmentDesc{
			Kind:      loaders.ConstantEnvironment,
			Intensity: 2,
			Radiance:  core.NewVec3(0.1, 0.2, 0.3),
		}
		s, err := Build(desc, testOptions())
		if err != nil {
			t.Fatalf("Build() error: %v", err)
		}
		got := s.Environment.Radiance(core.NewVec3(1, 0, 0))
		if !vecClose(got, core.NewVec3(0.2, 0.4, 0.6), 1e-9) {
			t.Errorf("radiance = %v, want (0.2, 0.4, 0.6)", got)
		}
	})
}

func TestBuild_SizeOverride(t *testing.T) {
	opts := testOptions()
	opts.Width, opts.Height = 64, 32

	s, err := Build(singleQuadDescription(), opts)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	cfg := s.Camera.Config()
	if cfg.Width != 64 || cfg.Height != 32 {
		t.Errorf("camera size = %dx%d, want 64x32", cfg.Width, cfg.Height)
	}
	if math.Abs(cfg.VFov-45) > 1e-9 {
		t.Errorf("VFov = %v, want 45", cfg.VFov)
	}
}

func vecClose(a, b core.Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}
