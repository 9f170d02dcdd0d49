package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/df07/go-mitsuba-pathtracer/pkg/config"
)

// WriteConfig saves the effective configuration to the given path or the
// user config directory.
func WriteConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	path := ctx.Args().First()
	if path == "" {
		path = filepath.Join(config.ConfigDir(), config.FileName)
		err = cfg.Save()
	} else {
		err = cfg.SaveTo(path)
	}
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	_, err = fmt.Fprintf(ctx.App.Writer, "wrote configuration to %s\n", path)
	return err
}
