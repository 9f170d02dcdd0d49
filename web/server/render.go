package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/integrator"
	"github.com/df07/go-mitsuba-pathtracer/pkg/renderer"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
)

// FrameUpdate is sent for every finished progressive frame
type FrameUpdate struct {
	FrameIndex  int         `json:"frameIndex"`
	TotalFrames int         `json:"totalFrames"`
	ImageData   string      `json:"imageData"` // Base64 encoded PNG
	Stats       FrameStats  `json:"stats"`
	IsComplete  bool        `json:"isComplete"`
	ElapsedMs   int64       `json:"elapsedMs"`
	Scene       SceneTotals `json:"scene"`
}

// FrameStats mirrors renderer.RenderStats for the client
type FrameStats struct {
	TotalPixels     int     `json:"totalPixels"`
	TotalSamples    int     `json:"totalSamples"`
	SamplesPerPixel int     `json:"samplesPerPixel"`
	AverageSamples  float64 `json:"averageSamples"`
	MinSamples      int     `json:"minSamples"`
	MaxSamplesUsed  int     `json:"maxSamplesUsed"`
	MeanLuminance   float64 `json:"meanLuminance"`
	ImageLuminance  float64 `json:"imageLuminance"`
	FrameMs         int64   `json:"frameMs"`
}

// SceneTotals summarizes the scene being rendered
type SceneTotals struct {
	Triangles int `json:"triangles"`
	Instances int `json:"instances"`
	Emitters  int `json:"emitters"`
	Materials int `json:"materials"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "frame", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// RenderingPipeline contains the loaded scene and its progressive renderer
type RenderingPipeline struct {
	Scene       *scene.Scene
	Progressive *renderer.Progressive
}

// handleRender streams progressive frames via SSE until the requested frame
// count is reached or the client disconnects
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)

	ctx := r.Context()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(ctx, w, sseEventChan)
	}()

	// The console streamer must stop before the event channel closes
	consoleCtx, stopConsole := context.WithCancel(ctx)
	var consoleWG sync.WaitGroup
	defer func() {
		stopConsole()
		consoleWG.Wait()
		close(sseEventChan)
		<-writerDone
	}()

	req, err := s.parseRenderRequest(r)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	// Setup console logging and streaming
	consoleChan := make(chan ConsoleMessage, 50)
	renderID := fmt.Sprintf("render-%d", time.Now().UnixNano())
	renderLog := NewConsoleLogger(s.log, consoleChan).With(zap.String("render", renderID))
	consoleWG.Add(1)
	go func() {
		defer consoleWG.Done()
		s.streamConsoleMessages(consoleCtx, consoleChan, sseEventChan)
	}()

	pipeline, err := s.setupRenderingPipeline(req, renderLog)
	if err != nil {
		s.handleError(ctx, sseEventChan, err.Error())
		return
	}
	defer pipeline.Progressive.Close()

	startTime := time.Now()
	frameChan, errChan := pipeline.Progressive.Run(ctx, req.Frames)
	s.handleRenderingEvents(ctx, sseEventChan, frameChan, errChan, pipeline.Scene, req, startTime)
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents handles writing all SSE events in a single goroutine (thread-safe)
func (s *Server) writeSSEEvents(ctx context.Context, w http.ResponseWriter, sseEventChan <-chan SSEEvent) {
	flusher, _ := w.(http.Flusher)
	for event := range sseEventChan {
		// Drain without writing once the client is gone
		if ctx.Err() != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// streamConsoleMessages forwards log entries of one render to the SSE channel
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, sseEventChan chan<- SSEEvent) {
	for {
		select {
		case consoleMsg := <-consoleChan:
			data, err := json.Marshal(consoleMsg)
			if err != nil {
				s.log.Warn("Error marshaling console message", zap.Error(err))
				continue
			}
			select {
			case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
			case <-ctx.Done():
				return
			default:
				// Channel full, skip message to avoid blocking
			}
		case <-ctx.Done():
			return
		}
	}
}

// setupRenderingPipeline loads the scene and creates its progressive renderer
func (s *Server) setupRenderingPipeline(req *RenderRequest, log *zap.Logger) (*RenderingPipeline, error) {
	path, err := s.resolveScene(req.Scene)
	if err != nil {
		return nil, err
	}

	cfg := s.requestConfig(req)
	sceneObj, err := scene.Load(path, cfg.SceneOptions(log))
	if err != nil {
		return nil, fmt.Errorf("failed to load scene %s: %w", req.Scene, err)
	}

	progressiveConfig, err := cfg.ProgressiveConfig()
	if err != nil {
		return nil, err
	}
	tracer := integrator.NewPathTracer(sceneObj, cfg.IntegratorConfig(sceneObj), cfg.Plastic)
	return &RenderingPipeline{
		Scene:       sceneObj,
		Progressive: renderer.NewProgressive(sceneObj.Camera, tracer, progressiveConfig, log),
	}, nil
}

// handleRenderingEvents processes the main rendering event loop
func (s *Server) handleRenderingEvents(ctx context.Context, sseEventChan chan<- SSEEvent,
	frameChan <-chan renderer.FrameResult, errChan <-chan error,
	sceneObj *scene.Scene, req *RenderRequest, startTime time.Time) {

	totals := SceneTotals{
		Triangles: sceneObj.TriangleCount(),
		Instances: len(sceneObj.Instances),
		Emitters:  sceneObj.EmitterCount(),
		Materials: len(sceneObj.Materials),
	}

	for frameChan != nil || errChan != nil {
		select {
		case result, ok := <-frameChan:
			if !ok {
				frameChan = nil
				continue
			}
			s.handleFrameComplete(ctx, sseEventChan, result, req, totals, startTime)

		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if ctx.Err() == nil {
				s.handleError(ctx, sseEventChan, fmt.Sprintf("Rendering failed: %v", err))
			}
			return

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}

	select {
	case sseEventChan <- SSEEvent{Type: "complete", Data: "Rendering completed"}:
	case <-ctx.Done():
	}
}

// handleFrameComplete encodes a finished frame and sends it
func (s *Server) handleFrameComplete(ctx context.Context, sseEventChan chan<- SSEEvent, result renderer.FrameResult,
	req *RenderRequest, totals SceneTotals, startTime time.Time) {

	imageData, err := imageToBase64PNG(result.Image)
	if err != nil {
		s.log.Warn("Error encoding frame image", zap.Int("frame", result.FrameIndex), zap.Error(err))
		return
	}

	update := FrameUpdate{
		FrameIndex:  result.FrameIndex,
		TotalFrames: req.Frames,
		ImageData:   imageData,
		Stats: FrameStats{
			TotalPixels:     result.Stats.TotalPixels,
			TotalSamples:    result.Stats.TotalSamples,
			SamplesPerPixel: result.Stats.SamplesPerPixel,
			AverageSamples:  result.Stats.AverageSamples,
			MinSamples:      result.Stats.MinSamples,
			MaxSamplesUsed:  result.Stats.MaxSamplesUsed,
			MeanLuminance:   result.Stats.MeanLuminance,
			ImageLuminance:  result.Stats.ImageLuminance,
			FrameMs:         result.Stats.Duration.Milliseconds(),
		},
		IsComplete: result.IsLast,
		ElapsedMs:  time.Since(startTime).Milliseconds(),
		Scene:      totals,
	}

	data, err := json.Marshal(update)
	if err != nil {
		s.log.Warn("Error marshaling frame update", zap.Error(err))
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: "frame", Data: string(data)}:
	case <-ctx.Done():
	}
}

// imageToBase64PNG converts an image to base64-encoded PNG
func imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan<- SSEEvent, message string) {
	s.log.Warn("Render request failed", zap.String("error", message))
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}
