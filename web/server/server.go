package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/config"
	"github.com/df07/go-mitsuba-pathtracer/pkg/renderer"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
)

// Limits applied to render and inspect requests
const (
	minImageSize = 16
	maxImageSize = 2000
	maxFrames    = 10000
)

// Server streams progressive renders of built-in and Mitsuba scenes
type Server struct {
	config *config.Config
	log    *zap.Logger
	mux    *http.ServeMux
}

// NewServer creates a new web server. Render defaults come from cfg.
func NewServer(cfg *config.Config, log *zap.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{config: cfg, log: log, mux: http.NewServeMux()}

	s.mux.HandleFunc("/api/render", s.handleRender)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/scenes", s.handleScenes)
	s.mux.HandleFunc("/api/scene-config", s.handleSceneConfig)
	s.mux.HandleFunc("/api/inspect", s.handleInspect)
	return s
}

// Handler returns the server's request multiplexer
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting web server", zap.String("addr", "http://localhost"+addr))
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("Shutting down web server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errChan; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScenes lists the built-in scenes and every scene file in the scenes directory
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	response, err := scene.ListAllScenes(s.config.Server.ScenesDir, s.log)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleSceneConfig returns the render defaults and request limits
func (s *Server) handleSceneConfig(w http.ResponseWriter, r *http.Request) {
	sceneID := r.URL.Query().Get("scene")
	if sceneID == "" {
		sceneID = defaultSceneID
	}
	if _, err := s.resolveScene(sceneID); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	cfg := s.config
	response := map[string]any{
		"scene": sceneID,
		"defaults": map[string]any{
			"samplesPerPixel": cfg.Render.SamplesPerPixel,
			"frames":          cfg.Render.Frames,
			"maxBounces":      cfg.Render.MaxBounces,
			"rrMinBounces":    cfg.Render.RRMinBounces,
			"exposure":        cfg.Display.Exposure,
			"toneMapper":      cfg.Display.ToneMapper,
		},
		"limits": map[string]any{
			"width":           map[string]int{"min": minImageSize, "max": maxImageSize},
			"height":          map[string]int{"min": minImageSize, "max": maxImageSize},
			"samplesPerPixel": map[string]int{"min": 1, "max": 256},
			"frames":          map[string]int{"min": 1, "max": maxFrames},
			"maxBounces":      map[string]int{"min": 1, "max": 1000},
			"rrMinBounces":    map[string]int{"min": 0, "max": 1000},
			"exposure":        map[string]float64{"min": 0, "max": 100},
		},
	}
	s.writeJSON(w, http.StatusOK, response)
}

const defaultSceneID = "cornell-box"

// resolveScene maps a scene ID from /api/scenes to a path scene.Load accepts
func (s *Server) resolveScene(id string) (string, error) {
	if id == defaultSceneID {
		return scene.CornellName, nil
	}
	name, ok := strings.CutPrefix(id, "mitsuba:")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("unknown scene: %s", id)
	}
	return filepath.Join(s.config.Server.ScenesDir, name+".xml"), nil
}

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Scene           string  `json:"scene"`           // Scene ID from /api/scenes
	Width           int     `json:"width"`           // 0 keeps the scene's film size
	Height          int     `json:"height"`          // 0 keeps the scene's film size
	SamplesPerPixel int     `json:"samplesPerPixel"` // Paths per pixel per frame
	Frames          int     `json:"frames"`          // Number of progressive frames
	MaxBounces      int     `json:"maxBounces"`
	RRMinBounces    int     `json:"rrMinBounces"`
	Exposure        float64 `json:"exposure"`
	ToneMapper      string  `json:"toneMapper"`
}

// parseRenderRequest parses request parameters, defaulting to the server config
func (s *Server) parseRenderRequest(r *http.Request) (*RenderRequest, error) {
	q := r.URL.Query()
	cfg := s.config
	req := &RenderRequest{Scene: defaultSceneID, ToneMapper: cfg.Display.ToneMapper}
	if id := q.Get("scene"); id != "" {
		req.Scene = id
	}
	if tm := q.Get("toneMapper"); tm != "" {
		if _, err := renderer.ParseToneMapper(tm); err != nil {
			return nil, err
		}
		req.ToneMapper = tm
	}

	var err error
	if err = s.parseSize(q, req); err != nil {
		return nil, err
	}
	if req.SamplesPerPixel, err = parseIntParam(q, "samplesPerPixel", cfg.Render.SamplesPerPixel, 1, 256); err != nil {
		return nil, err
	}
	if req.Frames, err = parseIntParam(q, "frames", cfg.Render.Frames, 1, maxFrames); err != nil {
		return nil, err
	}
	if req.MaxBounces, err = parseIntParam(q, "maxBounces", cfg.Render.MaxBounces, 1, 1000); err != nil {
		return nil, err
	}
	if req.RRMinBounces, err = parseIntParam(q, "rrMinBounces", cfg.Render.RRMinBounces, 0, 1000); err != nil {
		return nil, err
	}
	if req.Exposure, err = parseFloatParam(q, "exposure", cfg.Display.Exposure, 0, 100); err != nil {
		return nil, err
	}

	// Performance warning
	if req.Width*req.Height > 800*600 && req.SamplesPerPixel*req.Frames > 1000 {
		s.log.Warn("Large image with high samples may render slowly",
			zap.Int("width", req.Width), zap.Int("height", req.Height))
	}
	return req, nil
}

// parseSize reads the optional width and height overrides
func (s *Server) parseSize(q url.Values, req *RenderRequest) error {
	var err error
	if req.Width, err = parseIntParam(q, "width", s.config.Render.Width, minImageSize, maxImageSize); err != nil {
		return err
	}
	if req.Height, err = parseIntParam(q, "height", s.config.Render.Height, minImageSize, maxImageSize); err != nil {
		return err
	}
	return nil
}

// requestConfig returns a copy of the server config with the request's overrides
func (s *Server) requestConfig(req *RenderRequest) *config.Config {
	cfg := *s.config
	cfg.Render.Width = req.Width
	cfg.Render.Height = req.Height
	cfg.Render.SamplesPerPixel = req.SamplesPerPixel
	cfg.Render.Frames = req.Frames
	cfg.Render.MaxBounces = req.MaxBounces
	cfg.Render.RRMinBounces = req.RRMinBounces
	cfg.Display.Exposure = req.Exposure
	cfg.Display.ToneMapper = req.ToneMapper
	return &cfg
}

// parseIntParam parses an integer parameter from URL query with validation.
// A zero default is returned as is so "unset" survives.
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %f and %f, got: %f", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to write response", zap.Error(err))
	}
}
