package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/coldstart/internal/app"
	"github.com/dshills/coldstart/internal/config"
	"github.com/dshills/coldstart/internal/logging"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "coldstart",
		Short: "Chunk, embed and search source trees",
		Long: `coldstart splits source files into retrieval-sized chunks, embeds them
into a local SQLite collection and searches that collection by meaning,
by keyword or both.

Chunks can be written straight to stdout ('coldstart chunk'), stored
for search ('coldstart index', 'coldstart search'), or served over HTTP
('coldstart serve') and the Model Context Protocol ('coldstart mcp').

Configuration comes from defaults, an optional YAML file (--config or
$COLDSTART_CONFIG), a .env file and the environment, in that order.`,
		Version:      app.Version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&g.configFile, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(
		newChunkCmd(g),
		newIndexCmd(g),
		newSearchCmd(g),
		newServeCmd(g),
		newMCPCmd(g),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and builds a logger writing to the
// command's stderr, leaving stdout for results
func (g *globalFlags) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		if _, err := logging.ParseLevel(g.logLevel); err != nil {
			return nil, nil, err
		}
		cfg.LogLevel = g.logLevel
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openApp loads the configuration and opens the full pipeline
func (g *globalFlags) openApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, logger, err := g.setup(cmd)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, nil
}
