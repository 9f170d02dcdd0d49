package main

import (
	"fmt"
	"os"

	"github.com/df07/go-mitsuba-pathtracer/cmd"
)

func main() {
	if err := cmd.NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
