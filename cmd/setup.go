package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/df07/go-mitsuba-pathtracer/pkg/config"
	"github.com/df07/go-mitsuba-pathtracer/pkg/logger"
	"github.com/df07/go-mitsuba-pathtracer/pkg/scene"
)

// loadConfig reads the configuration file, applies the command's flags on
// top and validates the result.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	applyFlags(ctx, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies every flag the user set into cfg. Flags a command does
// not define are never set.
func applyFlags(ctx *cli.Context, cfg *config.Config) {
	intFlags := map[string]*int{
		"width":       &cfg.Render.Width,
		"height":      &cfg.Render.Height,
		"spp":         &cfg.Render.SamplesPerPixel,
		"frames":      &cfg.Render.Frames,
		"num-bounces": &cfg.Render.MaxBounces,
		"rr-bounces":  &cfg.Render.RRMinBounces,
		"workers":     &cfg.Render.Workers,
		"tile-size":   &cfg.Render.TileSize,
		"port":        &cfg.Server.Port,
	}
	for name, dst := range intFlags {
		if ctx.IsSet(name) {
			*dst = ctx.Int(name)
		}
	}
	if ctx.IsSet("exposure") {
		cfg.Display.Exposure = ctx.Float64("exposure")
	}
	if ctx.IsSet("tone-mapper") {
		cfg.Display.ToneMapper = ctx.String("tone-mapper")
	}
	if ctx.IsSet("out") {
		cfg.Output.Path = ctx.String("out")
	}
	if ctx.IsSet("scenes-dir") {
		cfg.Server.ScenesDir = ctx.String("scenes-dir")
	}
	if ctx.GlobalIsSet("log-file") {
		cfg.Logging.LogFile = ctx.GlobalString("log-file")
	}
	switch {
	case ctx.GlobalBool("v"):
		cfg.Logging.Level = "debug"
	case ctx.GlobalBool("q"):
		cfg.Logging.Level = "warn"
	}
}

// setupLogging builds the logger for a command: colored console output on
// stderr plus the optional rotating file.
func setupLogging(cfg *config.Config) (*zap.Logger, error) {
	opts := logger.Options{Level: cfg.Logging.Level, Console: os.Stderr}
	if cfg.Logging.LogFile != "" {
		opts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	return logger.New(opts)
}

// setup loads the configuration and the logger every action starts with
func setup(ctx *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	log, err := setupLogging(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// scenePath returns the scene argument, or the built-in Cornell box
func scenePath(ctx *cli.Context) (string, error) {
	if ctx.NArg() > 1 {
		return "", errors.New("expected at most one scene file argument")
	}
	if ctx.NArg() == 0 {
		return scene.CornellName, nil
	}
	return ctx.Args().First(), nil
}

// interruptContext is cancelled on SIGINT or SIGTERM
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
