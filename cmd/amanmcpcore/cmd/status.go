package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amanmcp-core/amanmcp-core/internal/config"
	"github.com/amanmcp-core/amanmcp-core/internal/daemon"
	"github.com/amanmcp-core/amanmcp-core/internal/modelindex"
)

// statusInfo is the status command's report shape.
type statusInfo struct {
	ProjectRoot   string   `json:"project_root"`
	Files         int      `json:"files"`
	Chunks        int      `json:"chunks"`
	ActiveModels  []string `json:"active_models"`
	CorpusBytes   int64    `json:"corpus_bytes"`
	IndexBytes    int64    `json:"index_bytes"`
	DaemonRunning bool     `json:"daemon_running"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool
	var path string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, path, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&path, "path", ".", "Project path to report status for")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, path string, jsonOutput bool) error {
	root, err := config.FindProjectRoot(path)
	if err != nil {
		cwd, _ := os.Getwd()
		root = cwd
	}

	dataDir := filepath.Join(root, dataDirName)
	corpusPath := filepath.Join(dataDir, "corpus.json")
	if !fileExists(corpusPath) {
		return fmt.Errorf("no index found under %s\nrun 'amanmcpcore index' to create one", root)
	}

	info := statusInfo{ProjectRoot: root, CorpusBytes: fileSize(corpusPath)}

	bundle, err := newProjectBundle(root)
	if err != nil {
		return fmt.Errorf("amanmcpcore: load project: %w", err)
	}
	info.Files = bundle.indexer.Corpus.FileCount()
	info.Chunks = len(bundle.indexer.Corpus.AllChunks())
	info.ActiveModels = bundle.indexer.ActiveModels()
	for _, id := range info.ActiveModels {
		info.IndexBytes += fileSize(modelindex.SnapshotPath(dataDir, id))
	}

	client := daemon.NewClient(daemon.DefaultConfig())
	info.DaemonRunning = client.IsRunning()

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	_, _ = fmt.Fprintf(out, "project:  %s\n", info.ProjectRoot)
	_, _ = fmt.Fprintf(out, "files:    %d\n", info.Files)
	_, _ = fmt.Fprintf(out, "chunks:   %d\n", info.Chunks)
	_, _ = fmt.Fprintf(out, "models:   %v\n", info.ActiveModels)
	_, _ = fmt.Fprintf(out, "corpus:   %d bytes\n", info.CorpusBytes)
	_, _ = fmt.Fprintf(out, "indexes:  %d bytes\n", info.IndexBytes)
	_, _ = fmt.Fprintf(out, "daemon:   %v\n", info.DaemonRunning)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
