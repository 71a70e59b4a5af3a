package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/coldstart/internal/api"
	"github.com/dshills/coldstart/internal/app"
	"github.com/dshills/coldstart/internal/mcp"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API on API_HOST:API_PORT (default 127.0.0.1:8000).

Routes live under /api/v1: chunks, collections, index-jobs and search.
GET /healthz answers liveness checks. The chunk and index routes read
host paths only under ALLOWED_ROOTS; without it they accept inline
content only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if addr == "" {
				addr = a.Config.Addr()
			}

			srv := api.New(api.Deps{
				Chunker:  a.Chunker,
				Indexer:  a.Indexer,
				Searcher: a.Searcher,
				Store:    a.Store,
				Discover: a.DiscoverOptions,
				Logger:   a.Logger,
			}, api.Options{
				AppName:           a.Config.AppName,
				Version:           app.Version,
				CORSOrigins:       a.Config.CORSOrigins,
				DefaultCollection: a.Config.CollectionName,
				AllowedRoots:      a.Config.AllowedRoots,
			})
			return srv.Listen(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default API_HOST:API_PORT)")
	return cmd
}

func newMCPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		Long: `Run the Model Context Protocol server on stdin/stdout.

Tools: chunk_file, index_path, search_chunks, get_status. Logs go to
stderr; stdout carries only protocol messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := g.openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			a.Logger.Info("mcp server ready", "version", app.Version, "collection", a.Config.CollectionName)
			if err := mcp.NewServer(a).Serve(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		},
	}
}
