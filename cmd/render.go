package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/integrator"
	"github.com/df07/go-mitsuba-pathtracer/pkg/logger"
	"github.com/df07/go-mitsuba-pathtracer/pkg/renderer"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
)

// RenderScene renders a scene to a PNG file.
func RenderScene(ctx *cli.Context) error {
	path, err := scenePath(ctx)
	if err != nil {
		return err
	}
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	start := time.Now()
	sc, err := scene.Load(path, cfg.SceneOptions(log))
	if err != nil {
		return err
	}
	if sc.Report != nil {
		log.Warn("Scene loaded with problems", zap.Int("problems", len(multierr.Errors(sc.Report))))
	}
	log.Info("Loaded scene",
		zap.String("scene", sc.Name),
		zap.Int("triangles", sc.TriangleCount()),
		zap.Duration("elapsed", time.Since(start)))

	progressiveConfig, err := cfg.ProgressiveConfig()
	if err != nil {
		return err
	}
	frames := cfg.Render.Frames
	// The scene's sample count becomes a frame count unless frames was given
	if !ctx.IsSet("frames") && sc.SamplesPerPixel > 0 {
		frames = (sc.SamplesPerPixel + progressiveConfig.SamplesPerPixel - 1) / progressiveConfig.SamplesPerPixel
	}

	tracer := integrator.NewPathTracer(sc, cfg.IntegratorConfig(sc), cfg.Plastic)
	prog := renderer.NewProgressive(sc.Camera, tracer, progressiveConfig, log)
	defer prog.Close()

	runCtx, stop := interruptContext()
	defer stop()

	last, history, err := collectFrames(runCtx, prog, frames)
	if err != nil {
		if !errors.Is(err, context.Canceled) || last.Image == nil {
			return err
		}
		log.Warn("Rendering interrupted, saving the last finished frame", zap.Int("frames", len(history)))
	}

	if err := savePNG(cfg.Output.Path, last.Image); err != nil {
		return err
	}
	log.Info("Wrote frame", zap.String("path", cfg.Output.Path), zap.Duration("elapsed", time.Since(start)))

	return displayFrameStats(ctx.App.Writer, history)
}

// collectFrames runs the progressive renderer and keeps the latest frame and
// every frame's statistics
func collectFrames(ctx context.Context, prog *renderer.Progressive, frames int) (renderer.FrameResult, []renderer.RenderStats, error) {
	var last renderer.FrameResult
	var history []renderer.RenderStats

	frameChan, errChan := prog.Run(ctx, frames)
	for result := range frameChan {
		last = result
		history = append(history, result.Stats)
	}
	if err := <-errChan; err != nil {
		return last, history, err
	}
	return last, history, nil
}

// savePNG writes img to path, creating parent directories
func savePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding png file: %w", err)
	}
	return f.Close()
}

func displayFrameStats(w io.Writer, history []renderer.RenderStats) error {
	var buf bytes.Buffer
	table := newTable(&buf, "Frame", "Samples", "Avg spp", "Mean luminance", "Image luminance", "Render time")

	var total time.Duration
	var samples int
	for _, stats := range history {
		total += stats.Duration
		samples += stats.TotalSamples
		table.Append([]string{
			fmt.Sprintf("%d", stats.FrameIndex),
			fmt.Sprintf("%d", stats.TotalSamples),
			fmt.Sprintf("%.1f", stats.AverageSamples),
			fmt.Sprintf("%.4f", stats.MeanLuminance),
			fmt.Sprintf("%.3f", stats.ImageLuminance),
			stats.Duration.Round(time.Microsecond).String(),
		})
	}
	table.SetFooter([]string{"TOTAL", fmt.Sprintf("%d", samples), "", "", "", total.Round(time.Microsecond).String()})
	table.Render()

	_, err := fmt.Fprintf(w, "frame statistics\n%s", buf.String())
	return err
}
