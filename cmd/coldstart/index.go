package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/coldstart/internal/chunker"
	"github.com/dshills/coldstart/internal/indexer"
)

type indexFlags struct {
	collection string
	recursive  bool
	extensions []string
	force      bool
	watch      bool
}

func newIndexCmd(g *globalFlags) *cobra.Command {
	f := &indexFlags{}

	cmd := &cobra.Command{
		Use:   "index PATH...",
		Short: "Chunk, embed and store files in a collection",
		Long: `Chunk, embed and store files in a collection.

Files whose chunks have not changed since the last run are skipped unless
--force is given. Files that are now empty or missing are removed from the
collection.

With --watch, a single directory is indexed and then kept in sync until
interrupted.`,
		Example: `  coldstart index -r ./src
  coldstart index -r --collection docs --ext .md ./docs --watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, g, f, args)
		},
	}

	cmd.Flags().StringVar(&f.collection, "collection", "", "Collection name (default from config)")
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", false, "Descend into subdirectories")
	cmd.Flags().StringSliceVar(&f.extensions, "ext", chunker.KnownExtensions(), "File extensions to include (repeatable)")
	cmd.Flags().BoolVar(&f.force, "force", false, "Re-embed files even when unchanged")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "Keep the collection in sync with the directory")

	return cmd
}

func runIndex(cmd *cobra.Command, g *globalFlags, f *indexFlags, args []string) error {
	if f.watch && len(args) != 1 {
		return errors.New("--watch takes exactly one directory")
	}

	ctx := cmd.Context()
	a, err := g.openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	collection := f.collection
	if collection == "" {
		collection = a.Config.CollectionName
	}
	discover := a.DiscoverOptions(f.recursive, f.extensions)

	stats, err := a.Indexer.Index(ctx, indexer.Request{
		Collection: collection,
		Paths:      args,
		Discover:   discover,
		Force:      f.force,
	})
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), stats)

	if !f.watch {
		return nil
	}

	return a.Indexer.Watch(ctx, collection, args[0], indexer.WatchOptions{
		Discover: discover,
		Flushed: func(s *indexer.Statistics) {
			printStats(cmd.OutOrStdout(), s)
		},
	})
}

func printStats(w io.Writer, s *indexer.Statistics) {
	fmt.Fprintf(w, "%s: indexed %d file(s), skipped %d, empty %d, failed %d; %d chunk(s), %d embedding(s) in %s\n",
		s.Collection, s.FilesIndexed, s.FilesSkipped, s.FilesEmpty, s.FilesFailed,
		s.ChunksCreated, s.EmbeddingsGenerated, s.Duration.Round(time.Millisecond))
	for _, msg := range s.ErrorMessages {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
}
