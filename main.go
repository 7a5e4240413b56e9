package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pteich/configstruct"

	"github.com/pteich/esxport/export"
	"github.com/pteich/esxport/flags"
)

var Version string

func main() {
	conf := flags.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := configstruct.NewCommand(
		"",
		"CLI tool to export data from ElasticSearch into a CSV or JSON file. Version "+Version,
		&conf,
		func(c *configstruct.Command, cfg interface{}) error {
			return export.Run(ctx, cfg.(*flags.Flags))
		},
	)

	// failures are logged where they happen
	if err := cmd.ParseAndRun(os.Args); err != nil {
		stop()
		os.Exit(1)
	}
}
