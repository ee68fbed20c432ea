package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/marmos91/dittolpd/internal/logger"
	"github.com/marmos91/dittolpd/pkg/config"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to the configuration file (default: $XDG_CONFIG_HOME/dittolpd/config.yaml)",
	EnvVars: []string{"DITTOLPD_CONFIG"},
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the line printer daemon",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override logging.level (DEBUG, INFO, WARN, ERROR)",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load configuration: %v", err), 1)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	if err := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to configure logging: %v", err), 1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("dittolpd %s starting", version)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := config.Build(ctx, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to build server: %v", err), 1)
	}

	if err := rt.Server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server stopped: %v", err)
		return cli.Exit("", 1)
	}
	return nil
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a default configuration file",
		Flags: []cli.Flag{
			configFlag,
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			if path == "" {
				path = config.GetDefaultConfigPath()
			}
			if err := config.InitConfigToPath(path, c.Bool("force")); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Fprintf(c.App.Writer, "Configuration written to %s\n", path)
			return nil
		},
	}
}
