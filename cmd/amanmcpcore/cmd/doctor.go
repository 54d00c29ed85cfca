package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amanmcp-core/amanmcp-core/internal/config"
	"github.com/amanmcp-core/amanmcp-core/internal/daemon"
	"github.com/amanmcp-core/amanmcp-core/internal/mcp"
	"github.com/amanmcp-core/amanmcp-core/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local setup",
		Long: `Doctor runs the system preflight checks, reports daemon
liveness, and detects the project type, the same diagnostics the
MCP "doctor" tool exposes to an AI client.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), cmd, path)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project path to diagnose")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, path string) error {
	root, err := config.FindProjectRoot(path)
	if err != nil {
		cwd, _ := os.Getwd()
		root = cwd
	}

	out := cmd.OutOrStdout()
	checker := preflight.New(preflight.WithOutput(out), preflight.WithVerbose(true))
	results := checker.RunAll(ctx, root)
	checker.PrintResults(results)

	client := daemon.NewClient(daemon.DefaultConfig())
	if client.IsRunning() {
		_, _ = fmt.Fprintln(out, "[PASS] daemon: running")
	} else {
		_, _ = fmt.Fprintln(out, "[WARN] daemon: not running (searches will cold-start each call)")
	}

	detector := mcp.NewProjectDetector(root, slog.Default())
	projectInfo := detector.Detect()
	_, _ = fmt.Fprintf(out, "[INFO] project: %s (%s)\n", projectInfo.Name, projectInfo.Type)

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("doctor found critical issues")
	}
	return nil
}
