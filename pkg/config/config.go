// Package config handles renderer configuration loading and management.
package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/df07/go-mitsuba-pathtracer/pkg/material"
	"github.com/df07/go-mitsuba-pathtracer/pkg/renderer"
)

// Config holds all renderer settings.
type Config struct {
	Render      RenderConfig           `yaml:"render"`
	Display     DisplayConfig          `yaml:"display"`
	Environment EnvironmentConfig      `yaml:"environment"`
	Plastic     material.PlasticTuning `yaml:"plastic"`
	Output      OutputConfig           `yaml:"output"`
	Server      ServerConfig           `yaml:"server"`
	Logging     LoggingConfig          `yaml:"logging"`
}

// RenderConfig holds path tracing and scheduling settings.
type RenderConfig struct {
	Width           int     `yaml:"width"`  // 0 keeps the scene's film size
	Height          int     `yaml:"height"` // 0 keeps the scene's film size
	SamplesPerPixel int     `yaml:"samples_per_pixel"`
	MaxBounces      int     `yaml:"max_bounces"`
	Frames          int     `yaml:"frames"`
	TileSize        int     `yaml:"tile_size"`
	Workers         int     `yaml:"workers"` // 0 uses every CPU
	RRMinBounces    int     `yaml:"rr_min_bounces"`
	FireflyClamp    float64 `yaml:"firefly_clamp"`
	MaxRadiance     float64 `yaml:"max_radiance"`
	RayEpsilon      float64 `yaml:"ray_epsilon"`
}

// DisplayConfig holds tone mapping settings.
type DisplayConfig struct {
	Exposure   float64 `yaml:"exposure"`
	ToneMapper string  `yaml:"tone_mapper"` // aces or reinhard
	Gamma      float64 `yaml:"gamma"`
}

// EnvironmentConfig holds background settings.
type EnvironmentConfig struct {
	Intensity float64    `yaml:"intensity"` // 0 keeps the scene's envmap scale
	SkyTop    [3]float64 `yaml:"sky_top"`
	SkyBottom [3]float64 `yaml:"sky_bottom"`
}

// OutputConfig holds output file settings.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds the preview server settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	ScenesDir string `yaml:"scenes_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			SamplesPerPixel: 1,
			MaxBounces:      8,
			Frames:          64,
			TileSize:        64,
			Workers:         0,
			RRMinBounces:    3,
			FireflyClamp:    100,
			MaxRadiance:     1000,
			RayEpsilon:      1e-4,
		},
		Display: DisplayConfig{
			Exposure:   1,
			ToneMapper: "aces",
			Gamma:      2.2,
		},
		Environment: EnvironmentConfig{
			SkyTop:    [3]float64{0.5, 0.7, 1.0},
			SkyBottom: [3]float64{1.0, 1.0, 1.0},
		},
		Plastic: material.DefaultPlasticTuning(),
		Output: OutputConfig{
			Path: "output/render.png",
		},
		Server: ServerConfig{
			Port:      8080,
			ScenesDir: "scenes",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate reports every setting that cannot be rendered with.
func (c *Config) Validate() error {
	var errs error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	r := c.Render
	check(r.Width >= 0 && r.Height >= 0, "negative image size %dx%d", r.Width, r.Height)
	check(r.SamplesPerPixel > 0, "samples_per_pixel must be positive, got %d", r.SamplesPerPixel)
	check(r.MaxBounces > 0, "max_bounces must be positive, got %d", r.MaxBounces)
	check(r.Frames > 0, "frames must be positive, got %d", r.Frames)
	check(r.TileSize > 0, "tile_size must be positive, got %d", r.TileSize)
	check(r.Workers >= 0, "workers must not be negative, got %d", r.Workers)
	check(r.RRMinBounces >= 0, "rr_min_bounces must not be negative, got %d", r.RRMinBounces)
	check(r.RayEpsilon > 0, "ray_epsilon must be positive, got %g", r.RayEpsilon)

	d := c.Display
	_, err := renderer.ParseToneMapper(d.ToneMapper)
	check(err == nil, "unknown tone_mapper %q", d.ToneMapper)
	check(d.Gamma > 0, "gamma must be positive, got %g", d.Gamma)
	check(d.Exposure >= 0, "exposure must not be negative, got %g", d.Exposure)

	p := c.Plastic
	check(p.MinSpecularProbability >= 0 && p.MinSpecularProbability <= p.MaxSpecularProbability && p.MaxSpecularProbability <= 1,
		"plastic specular probabilities must satisfy 0 <= min <= max <= 1, got %g..%g", p.MinSpecularProbability, p.MaxSpecularProbability)

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server port out of range: %d", c.Server.Port)
	return errs
}
