package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/integrator"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
)

// ErrClosed is returned when rendering after Close
var ErrClosed = errors.New("renderer is closed")

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	TileSize        int          // Size of each tile (64x64 recommended)
	SamplesPerPixel int          // Paths per pixel per frame
	MaxFrames       int          // Frames Run renders when asked for none
	NumWorkers      int          // Number of parallel workers (0 = use CPU count)
	MaxRadiance     float64      // Per-sample radiance clamp
	Tone            ToneSettings // Display conversion for frame images
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		TileSize:        64,
		SamplesPerPixel: 1,
		MaxFrames:       64,
		NumWorkers:      0, // Auto-detect CPU count
		MaxRadiance:     integrator.DefaultConfig().MaxRadiance,
		Tone:            DefaultToneSettings(),
	}
}

// FrameResult is one finished frame
type FrameResult struct {
	FrameIndex int
	Image      *image.RGBA
	Stats      RenderStats
	IsLast     bool // set by Run on its final frame
}

// Progressive drives frame-by-frame refinement of one view. Frame 0 restarts
// every pixel's running mean; later frames fold into it.
type Progressive struct {
	mu      sync.Mutex
	camera  *scene.Camera
	config  ProgressiveConfig
	buffers *FrameBuffers
	tiles   []*Tile
	frame   int // index of the next frame
	pool    *WorkerPool
	closed  bool
	log     *zap.Logger
}

// NewProgressive creates a progressive renderer for camera's image size
func NewProgressive(camera *scene.Camera, tracer integrator.Integrator, config ProgressiveConfig, log *zap.Logger) *Progressive {
	if log == nil {
		log = zap.NewNop()
	}
	if config.TileSize <= 0 {
		config.TileSize = DefaultProgressiveConfig().TileSize
	}
	if config.SamplesPerPixel <= 0 {
		config.SamplesPerPixel = 1
	}

	cfg := camera.Config()
	p := &Progressive{
		camera:  camera,
		config:  config,
		buffers: NewFrameBuffers(cfg.Width, cfg.Height),
		tiles:   NewTileGrid(cfg.Width, cfg.Height, config.TileSize),
		pool:    NewWorkerPool(NewTileRenderer(tracer, config.MaxRadiance), config.NumWorkers),
		log:     log,
	}
	return p
}

// Size returns the image dimensions
func (p *Progressive) Size() (width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffers.Width, p.buffers.Height
}

// FrameIndex returns the index the next frame will render with
func (p *Progressive) FrameIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// SetCamera switches the view; the next frame restarts accumulation
func (p *Progressive) SetCamera(camera *scene.Camera) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg := camera.Config()
	if cfg.Width != p.buffers.Width || cfg.Height != p.buffers.Height {
		p.reallocate(cfg.Width, cfg.Height)
	}
	p.camera = camera
	p.frame = 0
}

// Resize changes the image size keeping the view; the next frame restarts accumulation
func (p *Progressive) Resize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.camera = p.camera.Resize(width, height)
	cfg := p.camera.Config()
	p.reallocate(cfg.Width, cfg.Height)
	p.frame = 0
}

func (p *Progressive) reallocate(width, height int) {
	p.buffers = NewFrameBuffers(width, height)
	p.tiles = NewTileGrid(width, height, p.config.TileSize)
}

// NextFrame renders the frame after the last one
func (p *Progressive) NextFrame(ctx context.Context) (FrameResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderFrame(ctx, p.frame)
}

// RenderFrame renders frameIndex with every tile dispatched to the worker pool
func (p *Progressive) RenderFrame(ctx context.Context, frameIndex int) (FrameResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderFrame(ctx, frameIndex)
}

func (p *Progressive) renderFrame(ctx context.Context, frameIndex int) (FrameResult, error) {
	if p.closed {
		return FrameResult{}, ErrClosed
	}
	if frameIndex < 0 {
		frameIndex = 0
	}
	start := time.Now()
	p.pool.Start()

	camera, buffers, tiles := p.camera, p.buffers, p.tiles
	go func() {
		for i, tile := range tiles {
			p.pool.SubmitTask(TileTask{
				Ctx:             ctx,
				Tile:            tile,
				Camera:          camera,
				Buffers:         buffers,
				FrameIndex:      frameIndex,
				SamplesPerPixel: p.config.SamplesPerPixel,
				TaskID:          i,
			})
		}
	}()

	// Every submitted tile reports back, even when cancelled
	var firstErr error
	traced, completed := 0, 0
	for range tiles {
		result, ok := p.pool.GetResult()
		if !ok {
			return FrameResult{}, fmt.Errorf("worker pool closed unexpectedly")
		}
		if result.Error != nil {
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}
		tiles[result.TaskID].PassesCompleted++
		traced += result.Stats.Samples
		completed++
	}
	if firstErr != nil {
		// Finished tiles already hold this frame's samples, so a resume must
		// not trace the same frame index again
		if completed > 0 && frameIndex >= p.frame {
			p.frame = frameIndex + 1
		}
		p.log.Debug("Frame cancelled",
			zap.Int("frame", frameIndex),
			zap.Int("completedTiles", completed),
			zap.Error(firstErr))
		return FrameResult{}, firstErr
	}

	stats := collectStats(buffers.Accumulation, frameIndex, p.config.SamplesPerPixel, traced)
	stats.Duration = time.Since(start)
	img := ToImage(buffers.Colors(), buffers.Width, buffers.Height, p.config.Tone)
	stats.ImageLuminance = CalculateAverageLuminance(img)
	p.frame = frameIndex + 1

	p.log.Debug("Frame rendered",
		zap.Int("frame", frameIndex),
		zap.Int("samples", traced),
		zap.Duration("duration", stats.Duration))

	return FrameResult{FrameIndex: frameIndex, Image: img, Stats: stats}, nil
}

// Accumulation returns a copy of every pixel's running mean in row-major order
func (p *Progressive) Accumulation() []integrator.Accumulation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]integrator.Accumulation(nil), p.buffers.Accumulation...)
}

// Run renders frames in the background and streams them over a channel. A
// non-positive frames value uses MaxFrames. Both channels are closed when
// rendering stops.
func (p *Progressive) Run(ctx context.Context, frames int) (<-chan FrameResult, <-chan error) {
	if frames <= 0 {
		frames = p.config.MaxFrames
	}
	frameChan := make(chan FrameResult, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(frameChan)
		defer close(errChan)

		p.log.Info("Starting progressive rendering",
			zap.Int("frames", frames),
			zap.Int("workers", p.pool.GetNumWorkers()))

		for i := 0; i < frames; i++ {
			// Check if client disconnected before starting this frame
			select {
			case <-ctx.Done():
				p.log.Info("Rendering cancelled", zap.Int("completed", i))
				errChan <- ctx.Err()
				return
			default:
			}

			result, err := p.NextFrame(ctx)
			if err != nil {
				errChan <- err
				return
			}
			result.IsLast = i == frames-1

			select {
			case frameChan <- result:
			case <-ctx.Done():
				return
			}
		}
	}()

	return frameChan, errChan
}

// Close stops the worker pool
func (p *Progressive) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.pool.Stop()
	}
}

// Tile represents a rectangular region of the image to be rendered
type Tile struct {
	ID              int             // Unique tile identifier
	Bounds          image.Rectangle // Pixel bounds (x0,y0,x1,y1)
	PassesCompleted int             // Number of frames completed for this tile
}

// NewTile creates a new tile with the specified bounds
func NewTile(id int, bounds image.Rectangle) *Tile {
	return &Tile{ID: id, Bounds: bounds}
}

// NewTileGrid creates a grid of tiles covering the entire image
func NewTileGrid(width, height, tileSize int) []*Tile {
	var tiles []*Tile
	tileID := 0

	// Calculate number of tiles in each dimension
	tilesX := (width + tileSize - 1) / tileSize // Ceiling division
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width) // Don't exceed image bounds
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, NewTile(tileID, image.Rect(x0, y0, x1, y1)))
			tileID++
		}
	}

	return tiles
}
