package renderer

import (
	"image"
	"time"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/integrator"
)

// RenderStats contains statistics about one rendered frame
type RenderStats struct {
	FrameIndex      int           // Frame counter since the last reset
	TotalPixels     int           // Total number of pixels rendered
	TotalSamples    int           // Samples traced during this frame
	SamplesPerPixel int           // Samples per pixel per frame
	AverageSamples  float64       // Average accumulated samples per pixel
	MinSamples      int           // Fewest accumulated samples of any pixel
	MaxSamplesUsed  int           // Most accumulated samples of any pixel
	MeanLuminance   float64       // Mean accumulated radiance luminance
	ImageLuminance  float64       // Mean luminance of the tone mapped frame
	Duration        time.Duration // Wall time of the frame
}

// TileStats is what a worker reports for one tile
type TileStats struct {
	Pixels  int
	Samples int
}

// collectStats summarizes the accumulation buffer after a frame
func collectStats(accum []integrator.Accumulation, frameIndex, samplesPerPixel, tracedSamples int) RenderStats {
	stats := RenderStats{
		FrameIndex:      frameIndex,
		TotalPixels:     len(accum),
		TotalSamples:    tracedSamples,
		SamplesPerPixel: samplesPerPixel,
	}
	if len(accum) == 0 {
		return stats
	}

	stats.MinSamples = accum[0].Count * samplesPerPixel
	totalAccumulated := 0
	luminance := 0.0
	for i := range accum {
		n := accum[i].Count * samplesPerPixel
		totalAccumulated += n
		stats.MinSamples = min(stats.MinSamples, n)
		stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, n)
		luminance += accum[i].Color.Luminance()
	}
	stats.AverageSamples = float64(totalAccumulated) / float64(len(accum))
	stats.MeanLuminance = luminance / float64(len(accum))
	return stats
}

// CalculateAverageLuminance returns the mean Rec. 709 luminance of an
// 8-bit image with channels mapped to [0, 1]
func CalculateAverageLuminance(img *image.RGBA) float64 {
	bounds := img.Bounds()
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return 0
	}
	total := 0.0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.RGBAAt(x, y)
			total += core.NewVec3(float64(c.R), float64(c.G), float64(c.B)).Multiply(1.0 / 255).Luminance()
		}
	}
	return total / float64(pixels)
}
