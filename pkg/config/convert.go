package config

import (
	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/core"
	"github.com/df07/go-mitsuba-pathtracer/pkg/integrator"
	"github.com/df07/go-mitsuba-pathtracer/pkg/renderer"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
)

// SceneOptions returns the scene assembly options for these settings.
func (c *Config) SceneOptions(log *zap.Logger) scene.Options {
	return scene.Options{
		Logger:               log,
		Width:                c.Render.Width,
		Height:               c.Render.Height,
		EnvironmentIntensity: c.Environment.Intensity,
		SkyTop:               toVec3(c.Environment.SkyTop),
		SkyBottom:            toVec3(c.Environment.SkyBottom),
	}
}

// IntegratorConfig returns the path tracer settings. A positive max_depth hint
// from the scene file wins over max_bounces.
func (c *Config) IntegratorConfig(s *scene.Scene) integrator.Config {
	cfg := integrator.Config{
		MaxBounces:   c.Render.MaxBounces,
		RRMinBounces: c.Render.RRMinBounces,
		FireflyClamp: c.Render.FireflyClamp,
		MaxRadiance:  c.Render.MaxRadiance,
		RayEpsilon:   c.Render.RayEpsilon,
	}
	if s != nil && s.MaxDepth > 0 {
		cfg.MaxBounces = s.MaxDepth
	}
	return cfg
}

// ProgressiveConfig returns the frame driver settings.
func (c *Config) ProgressiveConfig() (renderer.ProgressiveConfig, error) {
	mapper, err := renderer.ParseToneMapper(c.Display.ToneMapper)
	if err != nil {
		return renderer.ProgressiveConfig{}, err
	}
	return renderer.ProgressiveConfig{
		TileSize:        c.Render.TileSize,
		SamplesPerPixel: c.Render.SamplesPerPixel,
		MaxFrames:       c.Render.Frames,
		NumWorkers:      c.Render.Workers,
		MaxRadiance:     c.Render.MaxRadiance,
		Tone: renderer.ToneSettings{
			Exposure: c.Display.Exposure,
			Mapper:   mapper,
			Gamma:    c.Display.Gamma,
		},
	}, nil
}

func toVec3(v [3]float64) core.Vec3 {
	return core.NewVec3(v[0], v[1], v[2])
}
