// Package streamindex implements the Streaming Indexer: a single
// cooperative task per project that serializes reconciliation, modeled
// on the debounce/coalesce idiom in internal/watcher.
package streamindex

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/amanmcp-core/amanmcp-core/internal/modelindex"
)

// Reconciler is the one call a StreamIndexer needs from a project's
// MultiModelProjectIndexer.
type Reconciler interface {
	Reconcile(ctx context.Context) (modelindex.ReconcileResult, error)
}

// Update is delivered to subscribers after every completed cycle.
type Update struct {
	Reason      string
	Success     bool
	TimestampMs int64
}

type runState int

const (
	stateIdle runState = iota
	stateScheduled
	stateRunning
)

// Options configures debounce and batch-wait bounds.
type Options struct {
	// Debounce is how long a non-forced trigger waits for more triggers to
	// coalesce before a run starts. Default 2s.
	Debounce time.Duration
	// MaxBatchWait bounds how long any pending reason can be held before a
	// run must start regardless of further triggers. Default 10s.
	MaxBatchWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 2 * time.Second
	}
	if o.MaxBatchWait <= 0 {
		o.MaxBatchWait = 10 * time.Second
	}
	return o
}

// StreamIndexer serializes reconciliation for one project: at most one
// cycle runs at a time, and a trigger arriving mid-run schedules exactly
// one follow-up regardless of how many triggers arrived.
type StreamIndexer struct {
	reconciler Reconciler
	opts       Options
	nowFn      func() time.Time

	mu             sync.Mutex
	state          runState
	pendingReasons []string
	firstPendingAt time.Time
	timer          *time.Timer
	rerunRequested bool
	closed         bool

	subMu sync.Mutex
	subs  []chan Update
}

// New constructs a StreamIndexer over reconciler. reconciler.Reconcile is
// called with context.Background(); callers that need their own timeout
// should wrap reconciler (e.g. modelindex.IndexWithBudget).
func New(reconciler Reconciler, opts Options) *StreamIndexer {
	return &StreamIndexer{
		reconciler: reconciler,
		opts:       opts.withDefaults(),
		nowFn:      time.Now,
	}
}

// forceReasons bypass debounce entirely and run (almost) immediately.
func isForceReason(reason string) bool {
	if reason == "bootstrap" || reason == "upgrade_models" {
		return true
	}
	return strings.HasPrefix(reason, "refresh_models:")
}

// Trigger enqueues a run for reason. A short debounce window coalesces
// rapid triggers; "bootstrap", "upgrade_models", and
// "refresh_models:<ids>:<reason>" bypass it.
func (s *StreamIndexer) Trigger(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.pendingReasons = append(s.pendingReasons, reason)
	if s.firstPendingAt.IsZero() {
		s.firstPendingAt = s.nowFn()
	}

	if s.state == stateRunning {
		s.rerunRequested = true
		s.mu.Unlock()
		return
	}

	force := isForceReason(reason)
	waited := s.nowFn().Sub(s.firstPendingAt)
	if force || waited >= s.opts.MaxBatchWait {
		s.stopTimerLocked()
		s.mu.Unlock()
		s.runNow()
		return
	}

	s.state = stateScheduled
	s.scheduleLocked()
	s.mu.Unlock()
}

func (s *StreamIndexer) scheduleLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	remaining := s.opts.MaxBatchWait - s.nowFn().Sub(s.firstPendingAt)
	wait := s.opts.Debounce
	if remaining < wait {
		wait = remaining
	}
	if wait < 0 {
		wait = 0
	}
	s.timer = time.AfterFunc(wait, s.runNow)
}

func (s *StreamIndexer) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// runNow starts a reconciliation cycle, unless one is already in flight
// (in which case it just flags a follow-up).
func (s *StreamIndexer) runNow() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.state == stateRunning {
		s.rerunRequested = true
		s.mu.Unlock()
		return
	}
	reasons := s.pendingReasons
	s.pendingReasons = nil
	s.firstPendingAt = time.Time{}
	s.state = stateRunning
	s.mu.Unlock()

	go s.runCycle(joinReasons(reasons))
}

func (s *StreamIndexer) runCycle(reason string) {
	result, err := s.reconciler.Reconcile(context.Background())
	success := err == nil && result.Status == modelindex.ReconcileOK
	if err != nil {
		slog.Warn("streamindex: reconciliation failed", slog.String("reason", reason), slog.Any("error", err))
	}

	s.publish(Update{Reason: reason, Success: success, TimestampMs: s.nowFn().UnixMilli()})

	s.mu.Lock()
	s.state = stateIdle
	rerun := s.rerunRequested
	s.rerunRequested = false
	s.mu.Unlock()

	if rerun {
		s.runNow()
	}
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return strings.Join(reasons, ",")
}

// SubscribeUpdates returns a channel delivering one Update per completed
// cycle. Subscribers that fall behind have updates dropped for them
// rather than blocking the indexer; call Unsubscribe when done.
func (s *StreamIndexer) SubscribeUpdates() <-chan Update {
	ch := make(chan Update, 4)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

// Unsubscribe stops delivery to a channel obtained from SubscribeUpdates
// and closes it.
func (s *StreamIndexer) Unsubscribe(ch <-chan Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, c := range s.subs {
		if c == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			close(c)
			return
		}
	}
}

func (s *StreamIndexer) publish(u Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
			slog.Warn("streamindex: subscriber lagging, dropping update", slog.String("reason", u.Reason))
		}
	}
}

// Close prevents further triggers from scheduling new runs. A cycle
// already running is allowed to finish its current batch write; Close
// does not wait for it.
func (s *StreamIndexer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
}
