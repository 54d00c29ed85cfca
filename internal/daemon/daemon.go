package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amanmcp-core/amanmcp-core/internal/config"
)

// Daemon wires the Warm-Indexer Daemon's config, worker pool, background
// compaction, PID file, and Unix-socket server into one process lifecycle.
type Daemon struct {
	cfg        Config
	pool       *Pool
	server     *Server
	pidFile    *PIDFile
	compaction *CompactionManager

	mu      sync.Mutex
	started time.Time
}

// NewDaemon validates cfg and wires a Daemon around factory (how to build
// and bootstrap a project's indexer) and compactionCfg (the background
// compaction policy).
func NewDaemon(cfg Config, factory WorkerFactory, compactionCfg config.CompactionConfig) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("daemon: invalid config: %w", err)
	}

	pool := NewPool(factory, PoolOptions{CapacityOverride: cfg.MaxProjects})
	compaction := NewCompactionManager(pool, compactionCfg)
	pool.Compaction = compaction

	return &Daemon{
		cfg:        cfg,
		pool:       pool,
		server:     NewServer(cfg.SocketPath, pool),
		pidFile:    NewPIDFile(cfg.PIDPath),
		compaction: compaction,
	}, nil
}

// Pool exposes the worker pool, e.g. for a CLI's direct (non-socket) status
// queries when invoked from inside the daemon process itself.
func (d *Daemon) Pool() *Pool { return d.pool }

// Start binds the socket, writes the PID file, and serves until ctx is
// cancelled. A stale PID file from a process that's no longer running is
// silently reclaimed; a live one refuses to start a second instance.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return fmt.Errorf("daemon: prepare directories: %w", err)
	}

	acquired, err := d.pidFile.AcquireExclusive()
	if err != nil {
		return fmt.Errorf("daemon: acquire PID lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("daemon: already running per %s", d.pidFile.Path())
	}
	defer func() { _ = d.pidFile.Release() }()

	if d.pidFile.IsRunning() {
		return fmt.Errorf("daemon: already running per %s", d.pidFile.Path())
	}
	_ = d.pidFile.Remove()
	if err := d.pidFile.Write(); err != nil {
		return fmt.Errorf("daemon: write PID file: %w", err)
	}
	defer func() { _ = d.pidFile.Remove() }()

	d.mu.Lock()
	d.started = time.Now()
	d.mu.Unlock()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	d.compaction.Start(runCtx)
	defer d.compaction.Stop()

	go d.pool.RunCleanup(runCtx)

	go func() {
		select {
		case <-d.pool.IdleShutdown():
			slog.Info("daemon: idle shutdown threshold reached")
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	err := d.server.ListenAndServe(runCtx)
	if ctx.Err() == nil && runCtx.Err() != nil {
		// runCtx was cancelled by the idle-shutdown path, not the caller.
		return nil
	}
	return err
}

// Uptime reports how long the daemon has been running; zero if not started.
func (d *Daemon) Uptime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started.IsZero() {
		return 0
	}
	return time.Since(d.started)
}
