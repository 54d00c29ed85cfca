package streamindex

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanmcp-core/amanmcp-core/internal/modelindex"
)

type countingReconciler struct {
	calls  int32
	status modelindex.ReconcileStatus
	delay  time.Duration
}

func (c *countingReconciler) Reconcile(ctx context.Context) (modelindex.ReconcileResult, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	status := c.status
	if status == "" {
		status = modelindex.ReconcileOK
	}
	return modelindex.ReconcileResult{Status: status}, nil
}

func waitForUpdate(t *testing.T, ch <-chan Update, timeout time.Duration) Update {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(timeout):
		t.Fatal("timeout waiting for update")
		return Update{}
	}
}

func TestStreamIndexer_ForcedTriggerRunsImmediately(t *testing.T) {
	// Given: a stream indexer with a long debounce
	rec := &countingReconciler{}
	s := New(rec, Options{Debounce: time.Hour, MaxBatchWait: time.Hour})
	ch := s.SubscribeUpdates()
	defer s.Unsubscribe(ch)

	// When: a force-run reason is triggered
	s.Trigger("bootstrap")

	// Then: the cycle runs without waiting out the debounce window
	u := waitForUpdate(t, ch, time.Second)
	assert.Equal(t, "bootstrap", u.Reason)
	assert.True(t, u.Success)
	assert.EqualValues(t, 1, atomic.LoadInt32(&rec.calls))
}

func TestStreamIndexer_RapidTriggersCoalesceIntoOneRun(t *testing.T) {
	// Given: a stream indexer with a short debounce
	rec := &countingReconciler{}
	s := New(rec, Options{Debounce: 30 * time.Millisecond, MaxBatchWait: time.Second})
	ch := s.SubscribeUpdates()
	defer s.Unsubscribe(ch)

	// When: several non-forced triggers arrive within the debounce window
	for i := 0; i < 5; i++ {
		s.Trigger("watch_event")
		time.Sleep(5 * time.Millisecond)
	}

	// Then: exactly one reconciliation runs
	waitForUpdate(t, ch, time.Second)
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&rec.calls))
}

func TestStreamIndexer_TriggerDuringRunSchedulesOneFollowUp(t *testing.T) {
	// Given: a reconciler slow enough that a second trigger lands mid-run
	rec := &countingReconciler{delay: 60 * time.Millisecond}
	s := New(rec, Options{Debounce: time.Millisecond, MaxBatchWait: time.Second})
	ch := s.SubscribeUpdates()
	defer s.Unsubscribe(ch)

	// When: a trigger starts a run, and more triggers arrive while it's in flight
	s.Trigger("first")
	time.Sleep(10 * time.Millisecond)
	for i := 0; i < 4; i++ {
		s.Trigger("refresh_models:m1:upgrade")
	}

	// Then: the first run completes, then exactly one follow-up run happens
	waitForUpdate(t, ch, time.Second)
	waitForUpdate(t, ch, time.Second)
	time.Sleep(150 * time.Millisecond)
	assert.EqualValues(t, 2, atomic.LoadInt32(&rec.calls))
}

func TestStreamIndexer_MaxBatchWaitForcesRunEventually(t *testing.T) {
	// Given: a debounce longer than the max batch wait
	rec := &countingReconciler{}
	s := New(rec, Options{Debounce: time.Hour, MaxBatchWait: 30 * time.Millisecond})
	ch := s.SubscribeUpdates()
	defer s.Unsubscribe(ch)

	// When: a non-forced trigger is held past the batch-wait bound
	s.Trigger("watch_event")

	// Then: the run fires without waiting out the full debounce
	waitForUpdate(t, ch, time.Second)
}

func TestStreamIndexer_LaggingSubscriberIsDroppedNotBlocked(t *testing.T) {
	// Given: a subscriber that never reads its channel
	rec := &countingReconciler{}
	s := New(rec, Options{Debounce: time.Millisecond, MaxBatchWait: time.Second})
	_ = s.SubscribeUpdates() // never drained

	// When: several forced runs complete in a row
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			s.Trigger("bootstrap")
			time.Sleep(2 * time.Millisecond)
		}
	}()
	wg.Wait()

	// Then: the indexer itself never blocks on the slow subscriber
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&rec.calls) >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestStreamIndexer_CloseStopsScheduling(t *testing.T) {
	// Given: a closed stream indexer
	rec := &countingReconciler{}
	s := New(rec, Options{Debounce: 10 * time.Millisecond, MaxBatchWait: time.Second})
	s.Close()

	// When: a trigger arrives after close
	s.Trigger("watch_event")

	// Then: no reconciliation is scheduled
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&rec.calls))
}
