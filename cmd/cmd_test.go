package cmd

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-mitsuba-pathtracer/pkg/config"
	"github.com/df07/go-mitsuba-pathtracer/pkg/renderer"
)

// runApp runs the application with an isolated config file and returns its output
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(configPath, []byte("logging:\n  level: error\nrender:\n  tile_size: 8\n  workers: 2\n  max_bounces: 4\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	err := app.Run(append([]string{"pathtracer", "--config", configPath}, args...))
	return out.String(), err
}

func TestRenderCommand(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "nested", "cornell.png")

	out, err := runApp(t, "render", "--width", "16", "--height", "12", "--frames", "2", "--out", outPath)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 12 {
		t.Errorf("image size = %dx%d, want 16x12", b.Dx(), b.Dy())
	}

	if !strings.Contains(out, "frame statistics") || !strings.Contains(out, "TOTAL") {
		t.Errorf("missing statistics table:\n%s", out)
	}
	// 2 frames of 192 pixels at one sample each
	if !strings.Contains(out, "384") {
		t.Errorf("total samples not reported:\n%s", out)
	}
}

func TestRenderCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing scene file", []string{"render", "--frames", "1", filepath.Join(t.TempDir(), "missing.xml")}},
		{"two scene files", []string{"render", "a.xml", "b.xml"}},
		{"invalid samples", []string{"render", "--spp", "0"}},
		{"unknown tone mapper", []string{"render", "--tone-mapper", "filmic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runApp(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestInfoCommand(t *testing.T) {
	out, err := runApp(t, "info")
	if err != nil {
		t.Fatalf("info error: %v", err)
	}
	for _, want := range []string{"scene information", "Triangles", "36", "400x400", "diffuse", "roughconductor", "dielectric"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScenesCommand(t *testing.T) {
	dir := t.TempDir()
	xml := "<!-- Scene: Veach Ajar -->\n<scene version=\"3.0.0\"/>\n"
	if err := os.WriteFile(filepath.Join(dir, "veach-ajar.xml"), []byte(xml), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "scenes", "--scenes-dir", dir)
	if err != nil {
		t.Fatalf("scenes error: %v", err)
	}
	for _, want := range []string{"cornell-box", "mitsuba:veach-ajar", "Veach Ajar", "Mitsuba Scenes"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effective.yaml")

	if _, err := runApp(t, "config", "--spp", "8", "--tone-mapper", "reinhard", path); err != nil {
		t.Fatalf("config error: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Render.SamplesPerPixel != 8 || cfg.Display.ToneMapper != "reinhard" {
		t.Errorf("saved config = %+v / %+v", cfg.Render, cfg.Display)
	}
	// Values from the config file survive
	if cfg.Render.TileSize != 8 || cfg.Logging.Level != "error" {
		t.Errorf("file values lost: tile %d, level %q", cfg.Render.TileSize, cfg.Logging.Level)
	}
}

func TestDisplayFrameStats(t *testing.T) {
	var buf bytes.Buffer
	history := []renderer.RenderStats{
		{FrameIndex: 0, TotalSamples: 100, AverageSamples: 1},
		{FrameIndex: 1, TotalSamples: 100, AverageSamples: 2},
	}
	if err := displayFrameStats(&buf, history); err != nil {
		t.Fatalf("displayFrameStats() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "200") || !strings.Contains(out, "Avg spp") {
		t.Errorf("unexpected table:\n%s", out)
	}
}
