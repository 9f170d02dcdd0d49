// Package cmd implements the command line actions of the path tracer.
package cmd

import (
	"github.com/urfave/cli"
)

// NewApp returns the command line application
func NewApp() *cli.App {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "pathtracer"
	app.Usage = "progressively render Mitsuba scenes with a unidirectional path tracer"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "configuration file (default: ./pathtracer.yaml, then the user config dir)",
		},
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "q",
			Usage: "only log warnings and errors",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "also write JSON logs to this rotating file",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render a scene to a PNG file",
			Description: `
Load a Mitsuba XML scene (or the built-in Cornell box when no file is given),
render the requested number of progressive frames and save the final frame.

Pressing Ctrl-C stops after the current frame and saves what has been
accumulated so far.`,
			ArgsUsage: "[scene.xml]",
			Flags:     append(renderFlags(), displayFlags()...),
			Action:    RenderScene,
		},
		{
			Name:      "info",
			Usage:     "display scene statistics",
			ArgsUsage: "[scene.xml]",
			Flags:     sizeFlags(),
			Action:    ShowSceneInfo,
		},
		{
			Name:  "scenes",
			Usage: "list built-in scenes and the scene files in a directory",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "scenes-dir",
					Usage: "directory containing Mitsuba scene files",
				},
			},
			Action: ListScenes,
		},
		{
			Name:  "serve",
			Usage: "serve progressive renders over HTTP",
			Description: `
Start an HTTP server that streams progressive frames as server-sent events.
GET /api/scenes lists the renderable scenes and /api/render?scene=<id> streams one.`,
			Flags: append([]cli.Flag{
				cli.IntFlag{
					Name:  "port, p",
					Usage: "port to serve on",
				},
				cli.StringFlag{
					Name:  "scenes-dir",
					Usage: "directory containing Mitsuba scene files",
				},
			}, append(renderFlags(), displayFlags()...)...),
			Action: Serve,
		},
		{
			Name:      "config",
			Usage:     "write the effective configuration as YAML",
			ArgsUsage: "[path]",
			Description: `
Write the configuration that results from the defaults, the configuration file
and the flags. Without a path the file goes to the user config directory.`,
			Flags:  append(renderFlags(), displayFlags()...),
			Action: WriteConfig,
		},
	}
	return app
}

func sizeFlags() []cli.Flag {
	return []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Usage: "frame width (default: the scene's film width)",
		},
		cli.IntFlag{
			Name:  "height",
			Usage: "frame height (default: the scene's film height)",
		},
	}
}

func renderFlags() []cli.Flag {
	return append(sizeFlags(),
		cli.IntFlag{
			Name:  "spp",
			Usage: "samples per pixel per frame",
		},
		cli.IntFlag{
			Name:  "frames, f",
			Usage: "number of progressive frames",
		},
		cli.IntFlag{
			Name:  "num-bounces",
			Usage: "maximum path length",
		},
		cli.IntFlag{
			Name:  "rr-bounces",
			Usage: "bounces before russian roulette starts",
		},
		cli.IntFlag{
			Name:  "workers",
			Usage: "render goroutines (0 uses every CPU)",
		},
		cli.IntFlag{
			Name:  "tile-size",
			Usage: "tile edge in pixels",
		},
	)
}

func displayFlags() []cli.Flag {
	return []cli.Flag{
		cli.Float64Flag{
			Name:  "exposure",
			Usage: "camera exposure for tone-mapping",
		},
		cli.StringFlag{
			Name:  "tone-mapper",
			Usage: "aces or reinhard",
		},
		cli.StringFlag{
			Name:  "out, o",
			Usage: "image filename for the rendered frame",
		},
	}
}
