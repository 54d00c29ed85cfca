package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/amanmcp-core/amanmcp-core/internal/config"
	"github.com/amanmcp-core/amanmcp-core/internal/embed"
	"github.com/amanmcp-core/amanmcp-core/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var noTUI bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or refresh the hybrid search index",
		Long: `Index scans the project, chunks its files, embeds anything
new or changed, and persists the chunk corpus and every active model's
vector snapshot to .amanmcp-core.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runIndex(cmd.Context(), cmd, path, noTUI)
		},
	}

	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Force plain text progress output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, noTUI bool) error {
	root, err := config.FindProjectRoot(path)
	if err != nil {
		abs, aerr := filepath.Abs(path)
		if aerr != nil {
			return fmt.Errorf("amanmcpcore: resolve %s: %w", path, aerr)
		}
		root = abs
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithProjectDir(root),
	))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("amanmcpcore: start renderer: %w", err)
	}
	defer func() { _ = renderer.Stop() }()

	start := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "scanning " + root})

	bundle, err := newProjectBundle(root)
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageReconciling, Message: "reconciling chunk corpus"})
	result, err := bundle.indexer.Reconcile(ctx)
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return fmt.Errorf("amanmcpcore: reconcile: %w", err)
	}

	if err := bundle.saveCorpus(); err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return fmt.Errorf("amanmcpcore: save corpus: %w", err)
	}

	info := embed.GetInfo(ctx, bundle.embedder)
	stats := ui.CompletionStats{
		Files:  bundle.indexer.Corpus.FileCount(),
		Chunks: len(bundle.indexer.Corpus.AllChunks()),
		Duration: time.Since(start),
		Embedder: ui.EmbedderInfo{
			Backend:    info.Provider.String(),
			Model:      info.Model,
			Dimensions: info.Dimensions,
		},
	}
	renderer.Complete(stats)

	_, _ = fmt.Fprintf(os.Stderr, "index reconciled: %s (%d model(s) refreshed)\n", result.Status, len(result.ChangedModels))
	return nil
}
