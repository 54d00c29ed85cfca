package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/amanmcp-core/amanmcp-core/internal/config"
)

// CompactionManager runs idle-triggered, cooldown-guarded tombstone
// compaction against a Pool's resident workers. A worker's HNSW graphs
// accumulate tombstones as files are edited and re-embedded; compaction
// rebuilds them once the dead fraction crosses modelindex's threshold.
//
// Compaction runs automatically when:
//  1. A project goes idle (no touch for IdleTimeout).
//  2. At least one active model reports a compaction candidate.
//  3. The cooldown period has elapsed since the project's last compaction.
//
// Compaction is interruptible: a touch during compaction cancels it so a
// resumed search never waits on a rebuild.
type CompactionManager struct {
	config config.CompactionConfig
	pool   *Pool

	mu       sync.Mutex
	projects map[string]*compactionState

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// compactionState tracks compaction eligibility for one project root.
type compactionState struct {
	root        string
	lastTouch   time.Time
	lastCompact time.Time

	idleTimer  *time.Timer
	compacting bool
	cancelFunc context.CancelFunc
}

// NewCompactionManager creates a compaction manager over pool.
func NewCompactionManager(pool *Pool, cfg config.CompactionConfig) *CompactionManager {
	return &CompactionManager{
		config:   cfg,
		pool:     pool,
		projects: make(map[string]*compactionState),
	}
}

// Start initializes the compaction manager.
func (m *CompactionManager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	slog.Debug("daemon: compaction manager started", slog.Bool("enabled", m.config.Enabled))
}

// Stop gracefully shuts down the compaction manager, waiting for any
// in-progress compaction to finish or cancel. Idempotent.
func (m *CompactionManager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}

		m.mu.Lock()
		for _, s := range m.projects {
			if s.idleTimer != nil {
				s.idleTimer.Stop()
			}
			if s.cancelFunc != nil {
				s.cancelFunc()
			}
		}
		m.mu.Unlock()

		m.wg.Wait()
	})
}

// OnTouch resets root's idle timer and interrupts any in-progress
// compaction; called by the pool whenever a ping touches the project.
func (m *CompactionManager) OnTouch(root string) {
	if !m.config.Enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.projects[root]
	if !ok {
		s = &compactionState{root: root}
		m.projects[root] = s
	}
	s.lastTouch = time.Now()

	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	idleTimeout, err := time.ParseDuration(m.config.IdleTimeout)
	if err != nil {
		idleTimeout = 30 * time.Second
	}
	s.idleTimer = time.AfterFunc(idleTimeout, func() { m.onIdle(root) })

	if s.compacting && s.cancelFunc != nil {
		slog.Debug("daemon: interrupting compaction for touch", slog.String("root", root))
		s.cancelFunc()
	}
}

func (m *CompactionManager) onIdle(root string) {
	if m.shouldCompact(root) {
		m.startCompaction(root)
	}
}

// shouldCompact determines if compaction should run for root.
func (m *CompactionManager) shouldCompact(root string) bool {
	if !m.config.Enabled {
		return false
	}

	select {
	case <-m.ctx.Done():
		return false
	default:
	}

	m.mu.Lock()
	s, ok := m.projects[root]
	if !ok || s.compacting {
		m.mu.Unlock()
		return false
	}
	cooldown, err := time.ParseDuration(m.config.Cooldown)
	if err != nil {
		cooldown = time.Hour
	}
	if time.Since(s.lastCompact) < cooldown {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	w, ok := m.pool.worker(root)
	if !ok {
		return false
	}
	return len(w.Indexer.CompactionCandidates()) > 0
}

func (m *CompactionManager) startCompaction(root string) {
	m.mu.Lock()
	s := m.projects[root]
	if s == nil || s.compacting {
		m.mu.Unlock()
		return
	}
	s.compacting = true
	ctx, cancel := context.WithCancel(m.ctx)
	s.cancelFunc = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			s.compacting = false
			s.cancelFunc = nil
			m.mu.Unlock()
		}()
		m.runCompaction(ctx, root)
	}()
}

// runCompaction rebuilds every model graph root reported as a compaction
// candidate, stopping early if ctx is cancelled by an interrupting touch.
func (m *CompactionManager) runCompaction(ctx context.Context, root string) {
	w, ok := m.pool.worker(root)
	if !ok {
		return
	}

	candidates := w.Indexer.CompactionCandidates()
	if len(candidates) == 0 {
		return
	}

	slog.Info("daemon: compaction starting", slog.String("root", root), slog.Int("models", len(candidates)))
	start := time.Now()

	compacted := 0
	for _, modelID := range candidates {
		select {
		case <-ctx.Done():
			slog.Debug("daemon: compaction interrupted", slog.String("root", root), slog.String("model", modelID))
			return
		default:
		}
		if err := w.Indexer.Compact(modelID); err != nil {
			slog.Warn("daemon: compaction failed",
				slog.String("root", root), slog.String("model", modelID), slog.Any("error", err))
			return
		}
		compacted++
	}

	m.mu.Lock()
	if s, ok := m.projects[root]; ok {
		s.lastCompact = time.Now()
	}
	m.mu.Unlock()

	slog.Info("daemon: compaction complete",
		slog.String("root", root), slog.Int("models_compacted", compacted), slog.Duration("duration", time.Since(start)))
}
