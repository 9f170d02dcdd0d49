package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/config"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Server.ScenesDir = t.TempDir()
	cfg.Render.TileSize = 8
	cfg.Render.Workers = 2
	cfg.Render.MaxBounces = 4
	return NewServer(cfg, zap.NewNop())
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandleHealth(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestHandleScenes(t *testing.T) {
	s := newTestServer(t)
	xml := "<!-- Scene: Glass Sphere -->\n<!-- Group: Showcase -->\n<scene version=\"3.0.0\"/>\n"
	if err := os.WriteFile(filepath.Join(s.config.Server.ScenesDir, "glass.xml"), []byte(xml), 0644); err != nil {
		t.Fatal(err)
	}

	rec := get(t, s, "/api/scenes")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body scene.ScenesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Groups) != 2 {
		t.Fatalf("groups = %+v, want built-in and Showcase", body.Groups)
	}
	if got := body.Groups[1].Scenes[0].ID; got != "mitsuba:glass" {
		t.Errorf("scene ID = %q, want mitsuba:glass", got)
	}
}

func TestResolveScene(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{"cornell-box", scene.CornellName, false},
		{"mitsuba:glass", filepath.Join(s.config.Server.ScenesDir, "glass.xml"), false},
		{"mitsuba:../secret", "", true},
		{"mitsuba:a/b", "", true},
		{"mitsuba:", "", true},
		{"basic", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := s.resolveScene(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveScene(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveScene(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestHandleSceneConfig(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/scene-config?scene=cornell-box")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Defaults map[string]any `json:"defaults"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Defaults["maxBounces"] != float64(4) {
		t.Errorf("maxBounces = %v, want 4", body.Defaults["maxBounces"])
	}

	if rec := get(t, s, "/api/scene-config?scene=nope"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown scene status = %d, want 400", rec.Code)
	}
}

func TestParseRenderRequest(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"defaults", "", false},
		{"overrides", "scene=mitsuba:glass&width=64&height=48&frames=3&toneMapper=reinhard", false},
		{"width too small", "width=4", true},
		{"bad integer", "frames=many", true},
		{"unknown tone mapper", "toneMapper=filmic", true},
		{"negative exposure", "exposure=-1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/render?"+tt.query, nil)
			req, err := s.parseRenderRequest(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseRenderRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			cfg := s.requestConfig(req)
			if err := cfg.Validate(); err != nil {
				t.Errorf("request config invalid: %v", err)
			}
		})
	}

	r := httptest.NewRequest(http.MethodGet, "/api/render", nil)
	req, _ := s.parseRenderRequest(r)
	if req.Scene != "cornell-box" || req.Frames != 64 || req.Width != 0 {
		t.Errorf("default request = %+v", req)
	}
}

func TestHandleRender(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/render?scene=cornell-box&width=16&height=16&frames=2")
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	if n := strings.Count(body, "event: frame\n"); n != 2 {
		t.Errorf("frame events = %d, want 2\n%s", n, body)
	}
	if !strings.Contains(body, "event: complete\n") {
		t.Error("missing complete event")
	}

	// The last frame is flagged complete and carries the scene totals
	var last FrameUpdate
	for _, line := range strings.Split(body, "\n") {
		if data, ok := strings.CutPrefix(line, "data: {\"frameIndex\""); ok {
			if err := json.Unmarshal([]byte("{\"frameIndex\""+data), &last); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
		}
	}
	if !last.IsComplete || last.FrameIndex != 1 || last.TotalFrames != 2 {
		t.Errorf("last frame = index %d of %d, complete %v", last.FrameIndex, last.TotalFrames, last.IsComplete)
	}
	if last.Scene.Triangles != 36 || last.Stats.TotalPixels != 256 {
		t.Errorf("last frame totals = %+v, stats = %+v", last.Scene, last.Stats)
	}
	if last.ImageData == "" {
		t.Error("frame has no image")
	}
}

func TestHandleRender_Errors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"invalid request", "width=1", "Invalid request"},
		{"unknown scene", "scene=basic", "unknown scene"},
		{"missing file", "scene=mitsuba:missing", "failed to load scene"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := get(t, s, "/api/render?"+tt.query).Body.String()
			if !strings.Contains(body, "event: error\n") || !strings.Contains(body, tt.want) {
				t.Errorf("body = %q, want an error event containing %q", body, tt.want)
			}
		})
	}
}

func TestHandleInspect(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/api/inspect?scene=cornell-box&width=32&height=32&x=16&y=16")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp InspectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Hit || resp.Distance <= 0 || resp.MaterialType == "" {
		t.Errorf("inspect = %+v", resp)
	}

	for _, query := range []string{"x=16", "x=99&y=0&width=32&height=32", "scene=nope&x=0&y=0"} {
		if rec := get(t, s, "/api/inspect?"+query); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, rec.Code)
		}
	}
}
