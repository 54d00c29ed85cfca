package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amanmcp-core/amanmcp-core/internal/config"
	"github.com/amanmcp-core/amanmcp-core/internal/search"
)

func newSearchCmd() *cobra.Command {
	var limit int
	var semantic bool
	var path string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one hybrid search query against the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, path, args[0], limit, semantic)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "Maximum number of results")
	cmd.Flags().BoolVar(&semantic, "semantic", true, "Include the embedding model fan-out (false = lexical only)")
	cmd.Flags().StringVar(&path, "path", ".", "Project path to search")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, path, query string, limit int, semantic bool) error {
	root, err := config.FindProjectRoot(path)
	if err != nil {
		return fmt.Errorf("amanmcpcore: find project root: %w", err)
	}

	bundle, err := newProjectBundle(root)
	if err != nil {
		return fmt.Errorf("amanmcpcore: build search engine: %w", err)
	}
	if _, err := bundle.indexer.Reconcile(ctx); err != nil {
		return fmt.Errorf("amanmcpcore: reconcile before search: %w", err)
	}

	results, err := bundle.engine.Search(ctx, search.Request{Query: query, Limit: limit, Semantic: semantic})
	if err != nil {
		return fmt.Errorf("amanmcpcore: search: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		_, _ = fmt.Fprintln(out, "no results")
		return nil
	}

	for i, r := range results {
		if r.Chunk == nil {
			continue
		}
		kind := "lexical"
		if r.Semantic {
			kind = "semantic"
		}
		_, _ = fmt.Fprintf(out, "%d. %s:%d-%d  score=%.3f  %s\n",
			i+1, r.Chunk.FilePath, r.Chunk.StartLine, r.Chunk.EndLine, r.Score, kind)
	}
	return nil
}
