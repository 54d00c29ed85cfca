package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amanmcp-core/amanmcp-core/configs"
	"github.com/amanmcp-core/amanmcp-core/internal/config"
	"github.com/amanmcp-core/amanmcp-core/internal/output"
)

func newInitCmd() *cobra.Command {
	var (
		force      bool
		configOnly bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize amanmcp-core for a project",
		Long: `Init prepares the current project for amanmcp-core:

1. Writes a .amanmcp.yaml configuration template
2. Adds .amanmcp-core to .gitignore
3. Builds the initial index (unless --config-only)

After running, point your MCP client at 'amanmcpcore serve'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd, force, configOnly)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing project configuration")
	cmd.Flags().BoolVar(&configOnly, "config-only", false, "Write configuration only, skip indexing")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, force, configOnly bool) error {
	out := output.New(cmd.OutOrStdout())

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("amanmcpcore: getwd: %w", err)
	}
	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd
	}

	configPath := filepath.Join(root, ".amanmcp.yaml")
	if _, statErr := os.Stat(configPath); statErr == nil && !force {
		out.Warning("Project configuration already exists")
		out.Statusf("📁", "Location: %s", configPath)
		out.Status("💡", "Use --force to overwrite")
	} else {
		if writeErr := os.WriteFile(configPath, []byte(configs.ProjectConfigTemplate), 0o644); writeErr != nil {
			return fmt.Errorf("amanmcpcore: write project config: %w", writeErr)
		}
		out.Success("Created project configuration")
		out.Statusf("📁", "Location: %s", configPath)
	}

	added, err := ensureGitignore(root)
	if err != nil {
		out.Warningf("Could not update .gitignore: %v", err)
	} else if added {
		out.Success("Added .amanmcp-core/ to .gitignore")
	}

	if configOnly {
		out.Newline()
		out.Status("💡", "Run 'amanmcpcore index' when ready to build the search index")
		return nil
	}

	out.Newline()
	out.Statusf("🔍", "Indexing %s ...", root)
	start := time.Now()

	bundle, err := newProjectBundle(root)
	if err != nil {
		return fmt.Errorf("amanmcpcore: build project: %w", err)
	}
	result, err := bundle.indexer.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("amanmcpcore: reconcile: %w", err)
	}
	if err := bundle.saveCorpus(); err != nil {
		return fmt.Errorf("amanmcpcore: save corpus: %w", err)
	}

	out.Successf("Indexed %d file(s), %d chunk(s) in %s",
		bundle.indexer.Corpus.FileCount(), len(bundle.indexer.Corpus.AllChunks()), time.Since(start).Round(time.Millisecond))
	out.Statusf("🧠", "models refreshed: %v (status: %s)", result.ChangedModels, result.Status)
	out.Newline()
	out.Status("✅", "Ready. Point your MCP client at 'amanmcpcore serve'.")

	return nil
}

// ensureGitignore adds .amanmcp-core to .gitignore if not already present.
// Returns (true, nil) if the entry was added, (false, nil) if already present.
func ensureGitignore(projectRoot string) (bool, error) {
	gitignorePath := filepath.Join(projectRoot, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading .gitignore: %w", err)
	}

	if hasIgnoreEntry(string(content), dataDirName) {
		return false, nil
	}

	lineEnding := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		lineEnding = "\r\n"
	}

	entry := dataDirName + "/"
	var buf bytes.Buffer
	buf.Write(content)
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		buf.WriteString(lineEnding)
	}
	buf.WriteString(entry)
	buf.WriteString(lineEnding)

	if err := os.WriteFile(gitignorePath, buf.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("writing .gitignore: %w", err)
	}
	return true, nil
}

// hasIgnoreEntry reports whether content already ignores dir, tolerating the
// common leading/trailing slash variations.
func hasIgnoreEntry(content, dir string) bool {
	patterns := []string{dir, dir + "/", "/" + dir, "/" + dir + "/"}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, p := range patterns {
			if line == p {
				return true
			}
		}
	}
	return false
}
