package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dshills/coldstart/internal/app"
	"github.com/dshills/coldstart/internal/embedder"
	"github.com/dshills/coldstart/internal/storage"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "coldstart %s\n", app.Version)
			fmt.Fprintf(w, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(w, "SQLite driver: %s\n", storage.DriverName)
			fmt.Fprintf(w, "Schema version: %s\n", storage.CurrentSchemaVersion)
			fmt.Fprintf(w, "Local embedding dimension: %d\n", embedder.LocalDimension)
		},
	}
}
