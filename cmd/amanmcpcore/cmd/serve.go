package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amanmcp-core/amanmcp-core/internal/config"
	"github.com/amanmcp-core/amanmcp-core/internal/daemon"
	"github.com/amanmcp-core/amanmcp-core/internal/embed"
	"github.com/amanmcp-core/amanmcp-core/internal/mcp"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Serve starts the MCP server on stdio, the transport every
supported AI coding assistant speaks. The JSON-RPC protocol requires
stdout be reserved exclusively for protocol messages; nothing is written
there before the server takes over.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	return cmd
}

func runServe(ctx context.Context) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("amanmcpcore: getwd: %w", err)
	}

	daemonClient := newDaemonClient()
	resolver := NewResolver(daemonClient)

	srv, err := mcp.NewServer(resolver, daemonClient, config.NewConfig(), nil, cwd)
	if err != nil {
		return fmt.Errorf("amanmcpcore: new server: %w", err)
	}
	defer srv.Close()

	return srv.Serve(ctx, "stdio", "")
}

// newDaemonClient builds a daemon client that auto-spawns the warm-indexer
// daemon on first connect, unless stub-embedding is active: the stub is
// already instant, so a resident daemon buys nothing and is skipped
// entirely.
func newDaemonClient() *daemon.Client {
	if embed.StubEmbeddingEnabled() {
		return nil
	}
	client := daemon.NewClient(daemon.DefaultConfig())
	exe, err := os.Executable()
	if err != nil {
		return client
	}
	client.Spawn = daemon.DefaultSpawn(exe)
	return client
}

func newDaemonLoopCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:    "daemon-loop",
		Short:  "Run the warm-indexer daemon in the foreground",
		Hidden: true,
		Long: `daemon-loop is the daemon process entry point spawned by a
client's Connect call (internal/daemon.DefaultSpawn). It is not meant to
be invoked directly by a user.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonLoop(cmd.Context(), socketPath)
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "Unix socket path to listen on (default: from daemon.DefaultConfig)")

	return cmd
}

func runDaemonLoop(ctx context.Context, socketPath string) error {
	cfg := daemon.DefaultConfig()
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}

	appCfg := config.NewConfig()

	d, err := daemon.NewDaemon(cfg, newWorkerFactory(), appCfg.Compaction)
	if err != nil {
		return fmt.Errorf("amanmcpcore: new daemon: %w", err)
	}

	return d.Start(ctx)
}
