package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/amanmcp-core/amanmcp-core/internal/modelindex"
	"github.com/amanmcp-core/amanmcp-core/internal/streamindex"
)

// Worker holds one project's live indexing state: its streaming indexer,
// the model roster it currently serves, and the bookkeeping the pool needs
// for TTL/LRU eviction and the polite background upgrade.
type Worker struct {
	Root     string
	Indexer  *modelindex.MultiModelProjectIndexer
	Streamer *streamindex.StreamIndexer

	mu          sync.Mutex
	models      map[string]bool // full requested roster, not just active
	primaryOnly bool

	lastTouch   time.Time
	lastRefresh time.Time
	ttl         time.Duration

	upgrading atomic.Bool // CAS-guarded "upgrade in progress" flag
}

func (w *Worker) touch(now time.Time) {
	w.mu.Lock()
	w.lastTouch = now
	w.mu.Unlock()
}

func (w *Worker) expired(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.lastTouch) >= w.ttl
}

func (w *Worker) addModels(ids []string) (added []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range ids {
		if !w.models[id] {
			w.models[id] = true
			added = append(added, id)
		}
	}
	return added
}

func (w *Worker) modelRoster() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.models))
	for id := range w.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WorkerFactory builds the indexing stack for a newly-touched project. It
// is injected so the pool stays independent of embedder/chunker wiring.
type WorkerFactory struct {
	// NewIndexer builds the shared multi-model indexer for root.
	NewIndexer func(root string) (*modelindex.MultiModelProjectIndexer, error)
	// PrimaryModel names the model a worker is bootstrapped with before
	// its full roster is brought up via the polite upgrade.
	PrimaryModel func() modelindex.ModelIndexSpec
	// ModelNeedsRefresh reports whether model_id's on-disk snapshot is
	// missing or stale for root.
	ModelNeedsRefresh func(root, modelID string) bool
}

// PoolOptions configures capacity and TTL overrides; zero values trigger
// the RAM/CPU-derived defaults.
type PoolOptions struct {
	CapacityOverride int
	TTLOverride      time.Duration
	CleanupInterval  time.Duration
}

// Pool is the Warm-Indexer Daemon's project→Worker map: LRU eviction,
// TTL expiry, and the polite background upgrade scheduler.
type Pool struct {
	factory WorkerFactory
	opts    PoolOptions

	mu       sync.Mutex
	workers  map[string]*Worker
	lru      []string // most-recently-touched last
	starting singleflight.Group // dedups concurrent bootstraps for the same root

	lastActivity time.Time
	idleShutdown chan struct{}

	// Compaction, if set, is notified of every successful touch so it can
	// drive idle-triggered tombstone compaction. Nil disables the hook.
	Compaction *CompactionManager
}

// NewPool constructs an empty pool.
func NewPool(factory WorkerFactory, opts PoolOptions) *Pool {
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	return &Pool{
		factory:      factory,
		opts:         opts,
		workers:      make(map[string]*Worker),
		lastActivity: time.Now(),
		idleShutdown: make(chan struct{}, 1),
	}
}

// capacity returns the max resident worker count: the configured override,
// or a tier derived from total system memory.
func (p *Pool) capacity() int {
	if p.opts.CapacityOverride > 0 {
		return p.opts.CapacityOverride
	}
	switch gb := totalMemGB(); {
	case gb <= 8:
		return 2
	case gb <= 16:
		return 3
	case gb <= 32:
		return 5
	default:
		return 10
	}
}

// ttl returns the eviction TTL: the configured override, or a tier derived
// from capacity (larger pools can afford to hold workers longer).
func (p *Pool) ttl() time.Duration {
	if p.opts.TTLOverride > 0 {
		return p.opts.TTLOverride
	}
	switch tier := p.capacity(); {
	case tier <= 2:
		return 2 * time.Minute
	case tier <= 3:
		return 5 * time.Minute
	default:
		return 10 * time.Minute
	}
}

// Touch implements touch(root, profile, model_ids): refresh
// an existing worker's TTL and merge requested models, or bootstrap a new
// one against its primary model only.
func (p *Pool) Touch(ctx context.Context, root string, modelIDs []string) (*Worker, error) {
	now := time.Now()

	p.mu.Lock()
	p.pruneExpiredLocked(now)
	p.lastActivity = now

	if w, ok := p.workers[root]; ok {
		p.mu.Unlock()
		w.touch(now)
		if p.Compaction != nil {
			p.Compaction.OnTouch(root)
		}
		added := w.addModels(modelIDs)
		if len(added) > 0 {
			p.bringModelsOnline(ctx, w, added)
			if len(w.modelRoster()) > 1 {
				go p.politeUpgrade(w)
			}
		}
		return w, nil
	}

	p.mu.Unlock()

	// singleflight collapses concurrent Touch calls for the same root into
	// one bootstrap; every caller gets the worker the winner built.
	v, err, _ := p.starting.Do(root, func() (interface{}, error) {
		return p.bootstrap(ctx, root, modelIDs)
	})
	if err != nil {
		return nil, err
	}
	w := v.(*Worker)

	p.mu.Lock()
	if _, ok := p.workers[root]; !ok {
		p.workers[root] = w
		p.touchLRULocked(root)
		p.enforceCapacityLocked()
	}
	p.mu.Unlock()

	if p.Compaction != nil {
		p.Compaction.OnTouch(root)
	}
	if len(w.modelRoster()) > 1 {
		go p.politeUpgrade(w)
	}
	return w, nil
}

func (p *Pool) bootstrap(ctx context.Context, root string, modelIDs []string) (*Worker, error) {
	indexer, err := p.factory.NewIndexer(root)
	if err != nil {
		return nil, fmt.Errorf("daemon: build indexer for %s: %w", root, err)
	}

	primary := p.factory.PrimaryModel()
	if err := indexer.SetModels([]modelindex.ModelIndexSpec{primary}); err != nil {
		return nil, fmt.Errorf("daemon: set primary model: %w", err)
	}

	now := time.Now()
	w := &Worker{
		Root:        root,
		Indexer:     indexer,
		models:      map[string]bool{primary.ModelID: true},
		primaryOnly: true,
		lastTouch:   now,
		ttl:         p.ttl(),
	}
	w.Streamer = streamindex.New(indexer, streamindex.Options{})
	for _, id := range modelIDs {
		w.models[id] = true
	}

	if p.factory.ModelNeedsRefresh == nil || p.factory.ModelNeedsRefresh(root, primary.ModelID) {
		w.Streamer.Trigger("bootstrap")
	}
	return w, nil
}

// bringModelsOnline tells the streamer about a widened roster; the actual
// re-embedding of the new models happens through the polite upgrade path,
// not synchronously here.
func (p *Pool) bringModelsOnline(_ context.Context, w *Worker, _ []string) {
	w.mu.Lock()
	w.primaryOnly = false
	w.mu.Unlock()
}

// RequestRefresh implements request_refresh(root, reason, model_ids): a
// debounced, worker-scoped trigger encoding the reason for the refresh.
func (p *Pool) RequestRefresh(root, reason string, modelIDs []string) error {
	p.mu.Lock()
	w, ok := p.workers[root]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("daemon: no worker for %s", root)
	}
	ids := append([]string(nil), modelIDs...)
	sort.Strings(ids)
	w.Streamer.Trigger(fmt.Sprintf("refresh_models:%s:%s", strings.Join(ids, ","), reason))
	w.mu.Lock()
	w.lastRefresh = time.Now()
	w.mu.Unlock()
	return nil
}

func (p *Pool) touchLRULocked(root string) {
	for i, r := range p.lru {
		if r == root {
			p.lru = append(p.lru[:i], p.lru[i+1:]...)
			break
		}
	}
	p.lru = append(p.lru, root)
}

func (p *Pool) enforceCapacityLocked() {
	limit := p.capacity()
	for len(p.lru) > limit {
		oldest := p.lru[0]
		p.lru = p.lru[1:]
		if w, ok := p.workers[oldest]; ok {
			w.Streamer.Close()
			delete(p.workers, oldest)
			slog.Info("daemon: evicted worker over capacity", slog.String("root", oldest))
		}
	}
}

func (p *Pool) pruneExpiredLocked(now time.Time) {
	for root, w := range p.workers {
		if w.expired(now) {
			w.Streamer.Close()
			delete(p.workers, root)
			for i, r := range p.lru {
				if r == root {
					p.lru = append(p.lru[:i], p.lru[i+1:]...)
					break
				}
			}
			slog.Info("daemon: evicted idle worker", slog.String("root", root))
		}
	}
}

// RunCleanup blocks running periodic eviction until ctx is cancelled. If
// the worker map goes empty and stays that way for a full TTL window, it
// signals idle shutdown on IdleShutdown().
func (p *Pool) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(p.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			p.pruneExpiredLocked(time.Now())
			empty := len(p.workers) == 0
			idleFor := time.Since(p.lastActivity)
			p.mu.Unlock()

			if empty && idleFor >= p.ttl() {
				select {
				case p.idleShutdown <- struct{}{}:
				default:
				}
			}
		}
	}
}

// IdleShutdown signals when the pool has been empty for a full TTL window.
func (p *Pool) IdleShutdown() <-chan struct{} { return p.idleShutdown }

// worker returns the resident worker for root, if any.
func (p *Pool) worker(root string) (*Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[root]
	return w, ok
}

// ActiveProjectCount reports the number of resident workers, for status.
func (p *Pool) ActiveProjectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Snapshot returns one ProjectStatus per resident worker, sorted by root,
// for the status command.
func (p *Pool) Snapshot() []ProjectStatus {
	p.mu.Lock()
	roots := make([]string, 0, len(p.workers))
	for root := range p.workers {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	out := make([]ProjectStatus, 0, len(roots))
	for _, root := range roots {
		w := p.workers[root]
		w.mu.Lock()
		lastTouch := w.lastTouch
		w.mu.Unlock()
		out = append(out, ProjectStatus{
			Root:      root,
			Models:    w.modelRoster(),
			LastTouch: lastTouch.UnixMilli(),
		})
	}
	p.mu.Unlock()
	return out
}

// politeUpgrade implements the polite background upgrade: widen
// a primary-only worker to its full model roster without competing with
// foreground load, then warm each non-primary model in turn.
func (p *Pool) politeUpgrade(w *Worker) {
	if !w.upgrading.CompareAndSwap(false, true) {
		return // another upgrade is already coordinating
	}
	defer w.upgrading.Store(false)

	if w.primaryOnly {
		waitForBootstrap(w)
	}

	politeSleep()

	full := w.modelRoster()
	specs := make([]modelindex.ModelIndexSpec, 0, len(full))
	for _, id := range full {
		specs = append(specs, modelindex.ModelIndexSpec{ModelID: id})
	}
	if err := w.Indexer.SetModels(specs); err != nil {
		slog.Warn("daemon: polite upgrade set_models failed", slog.String("root", w.Root), slog.Any("error", err))
		return
	}

	primary := p.factory.PrimaryModel().ModelID
	for _, id := range full {
		if id == primary {
			continue
		}
		if p.factory.ModelNeedsRefresh != nil && !p.factory.ModelNeedsRefresh(w.Root, id) {
			continue
		}
		politeSleep()
		reason := fmt.Sprintf("refresh_models:%s:warmup", id)
		ch := w.Streamer.SubscribeUpdates()
		w.Streamer.Trigger(reason)
		waitForReason(ch, reason)
		w.Streamer.Unsubscribe(ch)
	}
}

func waitForBootstrap(w *Worker) {
	ch := w.Streamer.SubscribeUpdates()
	defer w.Streamer.Unsubscribe(ch)
	for u := range ch {
		if u.Reason == "bootstrap" {
			return
		}
	}
}

func waitForReason(ch <-chan streamindex.Update, reason string) {
	for u := range ch {
		if u.Reason == reason {
			return
		}
	}
}

// politeSleep implements the bounded, load-derived wait: an initial fixed
// delay, then load/memory-derived steps up to a 90s cap.
func politeSleep() {
	time.Sleep(2 * time.Second)
	waited := 2 * time.Second
	const cap = 90 * time.Second
	for waited < cap {
		hint := sampleLoad()
		step := politeStep(hint)
		if step == 0 {
			return
		}
		time.Sleep(step)
		waited += step
	}
}

func politeStep(h loadHint) time.Duration {
	memOK := !h.MemAvailableOK || h.MemAvailableMB >= 512
	switch {
	case h.LoadAvg1 < 0.7 && memOK:
		return 0
	case h.LoadAvg1 < 1.0:
		return 3 * time.Second
	case h.LoadAvg1 < 1.25:
		return 8 * time.Second
	default:
		return 15 * time.Second
	}
}
