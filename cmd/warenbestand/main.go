package main

import (
	"context"
	"fmt"
	"os"

	"github.com/andresuchdata/warenbestand/internal/app"
	"github.com/andresuchdata/warenbestand/internal/config"
	"github.com/andresuchdata/warenbestand/pkg/logger"
	"github.com/urfave/cli/v2"
)

type appKey struct{}

func initApp(c *cli.Context) error {
	cfg := config.Load()
	if c.Bool("memory") {
		cfg.Ledger.Backend = app.LedgerBackendMemory
	}
	level := cfg.Server.LogLevel
	if c.Bool("verbose") {
		level = "debug"
	}
	// stdout is reserved for command output
	logger.Setup(os.Stderr, level, cfg.Server.LogFormat)

	application, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}

	// Store the application in the context
	c.Context = context.WithValue(c.Context, appKey{}, application)
	return nil
}

func closeApp(c *cli.Context) error {
	if a, ok := c.Context.Value(appKey{}).(*app.App); ok && a != nil {
		a.Close()
	}
	return nil
}

func appFrom(c *cli.Context) *app.App {
	return c.Context.Value(appKey{}).(*app.App)
}

func main() {
	cliApp := &cli.App{
		Name:  "warenbestand",
		Usage: "Reconcile sales exports against the stock ledger and project coverage",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "memory",
				Usage: "Use an in-memory ledger instead of Postgres",
			},
		},
		Before: initApp,
		After:  closeApp,
		Commands: []*cli.Command{
			runCommand(),
			ledgerCommand(),
			{
				Name:   "migrate",
				Usage:  "Create the ledger and run history tables",
				Action: runMigrate,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
