package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/coldstart/internal/searcher"
	"github.com/dshills/coldstart/internal/storage"
)

type searchFlags struct {
	collection string
	mode       string
	limit      int
	languages  []string
	jsonOutput bool
}

func newSearchCmd(g *globalFlags) *cobra.Command {
	f := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search an indexed collection",
		Long: `Search an indexed collection.

Modes:
  hybrid   - vector and keyword results fused by reciprocal rank (default)
  vector   - embedding similarity only
  keyword  - full-text BM25 only`,
		Example: `  coldstart search "open a database connection"
  coldstart search --mode keyword --language python retry backoff`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, g, f, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&f.collection, "collection", "", "Collection name (default from config)")
	cmd.Flags().StringVar(&f.mode, "mode", string(searcher.SearchModeHybrid), "Search mode: hybrid, vector, keyword")
	cmd.Flags().IntVar(&f.limit, "limit", searcher.DefaultLimit, "Maximum number of results (1-100)")
	cmd.Flags().StringSliceVar(&f.languages, "language", nil, "Only return chunks in these languages (repeatable)")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output the full response as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, g *globalFlags, f *searchFlags, query string) error {
	mode, err := searcher.ParseMode(f.mode)
	if err != nil {
		return err
	}
	if f.limit < 1 || f.limit > searcher.MaxLimit {
		return fmt.Errorf("--limit must be between 1 and %d", searcher.MaxLimit)
	}

	ctx := cmd.Context()
	a, err := g.openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	req := searcher.Request{
		Collection: f.collection,
		Query:      query,
		Limit:      f.limit,
		Mode:       mode,
	}
	if req.Collection == "" {
		req.Collection = a.Config.CollectionName
	}
	if len(f.languages) > 0 {
		req.Filters = &storage.SearchFilters{Languages: f.languages}
	}

	resp, err := a.Searcher.Search(ctx, req)
	if err != nil {
		return err
	}

	if f.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(resp)
	}
	printResults(cmd.OutOrStdout(), resp)
	return nil
}

func printResults(w io.Writer, resp *searcher.Response) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results")
		return
	}
	for _, r := range resp.Results {
		c := r.Chunk
		fmt.Fprintf(w, "%d. %s:%d-%d [%s, %s] score=%.4f\n",
			r.Rank, c.FilePath, c.StartLine, c.EndLine, c.Language, c.Type(), r.Score)
		fmt.Fprintf(w, "   %s\n", firstLine(c.Content))
	}
	fmt.Fprintf(w, "\n%d result(s), %s mode\n", resp.TotalResults, resp.Mode)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 100
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
