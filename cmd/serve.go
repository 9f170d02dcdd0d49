package cmd

import (
	"github.com/urfave/cli"

	"github.com/df07/go-mitsuba-pathtracer/pkg/logger"
	"github.com/df07/go-mitsuba-pathtracer/web/server"
)

// Serve starts the progressive preview server and blocks until interrupted.
func Serve(ctx *cli.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	runCtx, stop := interruptContext()
	defer stop()

	return server.NewServer(cfg, log).Start(runCtx)
}
