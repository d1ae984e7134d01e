// Package main is the folio terminal client.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/aristath/folio/internal/cli"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/di"
	"github.com/aristath/folio/pkg/logger"
)

var (
	configPath = flag.String("config", "folio.toml", "path to an optional TOML config file")
	verbose    = flag.Bool("v", false, "log to stderr")
	plain      = flag.Bool("plain", false, "print raw markdown")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	wire := func(ctx context.Context) (*di.Container, error) {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		var out io.Writer = io.Discard
		if *verbose {
			out = os.Stderr
		}
		log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true, Output: out})
		container, _, err := di.Wire(ctx, cfg, log)
		return container, err
	}

	var opts []cli.Option
	flag.Parse()
	if *plain {
		opts = append(opts, cli.WithPlainOutput())
	}
	app := cli.NewApp(wire, os.Stdout, os.Stderr, opts...)
	cli.Register(commander, app)

	status := commander.Execute(context.Background())
	app.Close()
	os.Exit(int(status))
}
