package renderer

import (
	"image"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/integrator"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
)

// FrameBuffers are the per-pixel arrays a frame writes. Tiles never overlap,
// so workers write them without locking.
type FrameBuffers struct {
	Width        int
	Height       int
	Accumulation []integrator.Accumulation
	Radiance     []core.Vec3 // this frame's sanitized estimate per pixel
}

// NewFrameBuffers allocates buffers for a width x height image
func NewFrameBuffers(width, height int) *FrameBuffers {
	return &FrameBuffers{
		Width:        width,
		Height:       height,
		Accumulation: make([]integrator.Accumulation, width*height),
		Radiance:     make([]core.Vec3, width*height),
	}
}

// Colors returns the accumulated mean of every pixel in row-major order
func (fb *FrameBuffers) Colors() []core.Vec3 {
	colors := make([]core.Vec3, len(fb.Accumulation))
	for i := range fb.Accumulation {
		colors[i] = fb.Accumulation[i].Color
	}
	return colors
}

// TileRenderer traces the pixels of one tile with an integrator
type TileRenderer struct {
	integrator  integrator.Integrator
	maxRadiance float64
}

// NewTileRenderer creates a new tile renderer with the given integrator
func NewTileRenderer(integratorInst integrator.Integrator, maxRadiance float64) *TileRenderer {
	return &TileRenderer{
		integrator:  integratorInst,
		maxRadiance: maxRadiance,
	}
}

// RenderTileBounds traces samplesPerPixel paths for every pixel in bounds,
// averages them and folds the estimate into the pixel's accumulation
func (tr *TileRenderer) RenderTileBounds(bounds image.Rectangle, camera *scene.Camera, buffers *FrameBuffers, frameIndex, samplesPerPixel int) TileStats {
	samplesPerPixel = max(samplesPerPixel, 1)
	stats := TileStats{}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			radiance := tr.renderPixel(camera, x, y, frameIndex, samplesPerPixel)

			i := y*buffers.Width + x
			buffers.Radiance[i] = radiance
			buffers.Accumulation[i].Update(radiance, frameIndex)

			stats.Pixels++
			stats.Samples += samplesPerPixel
		}
	}
	return stats
}

func (tr *TileRenderer) renderPixel(camera *scene.Camera, x, y, frameIndex, samplesPerPixel int) core.Vec3 {
	sum := core.Vec3{}
	for s := 0; s < samplesPerPixel; s++ {
		sampler := core.NewHashSampler(x, y, uint32(frameIndex), uint32(s))
		ray := camera.GenerateRay(x, y, sampler.Get2D())
		sum = sum.Add(integrator.Sanitize(tr.integrator.Trace(ray, sampler), tr.maxRadiance))
	}
	return sum.Multiply(1 / float64(samplesPerPixel))
}
