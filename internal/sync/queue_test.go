package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sp24/pos/internal/remote"
)

// recordingStore captures dispatched writes with their wall-clock times
// and can be primed to fail.
type recordingStore struct {
	mu    sync.Mutex
	calls []recordedCall
	errs  []error // consumed one per call, nil entries succeed
}

type recordedCall struct {
	collection string
	id         string
	deleted    bool
	at         time.Time
}

func (s *recordingStore) takeErr() error {
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *recordingStore) record(collection, id string, del bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return err
	}
	s.calls = append(s.calls, recordedCall{collection: collection, id: id, deleted: del, at: time.Now()})
	return nil
}

func (s *recordingStore) failWith(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

func (s *recordingStore) recorded() []recordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedCall(nil), s.calls...)
}

func (s *recordingStore) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	return remote.Document{}, remote.ErrNotFound
}

func (s *recordingStore) Set(ctx context.Context, collection, id string, doc any, merge bool) error {
	return s.record(collection, id, false)
}

func (s *recordingStore) Delete(ctx context.Context, collection, id string) error {
	return s.record(collection, id, true)
}

func (s *recordingStore) BatchCommit(ctx context.Context, writes []remote.Write) error {
	for _, w := range writes {
		if err := s.record(w.Collection, w.ID, w.Kind == remote.WriteDelete); err != nil {
			return err
		}
	}
	return nil
}

func (s *recordingStore) Query(ctx context.Context, collection string, q remote.Query) ([]remote.Document, error) {
	return nil, nil
}

func (s *recordingStore) Subscribe(ctx context.Context, collection string) (remote.Subscription, error) {
	return nil, remote.ErrUnavailable
}

func (s *recordingStore) SubscribeQuery(ctx context.Context, collection string, q remote.Query) (remote.QuerySubscription, error) {
	return nil, remote.ErrUnavailable
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func setOp(id string) Op {
	return Op{Collection: "products", DocID: id, Kind: OpSet, Doc: map[string]string{"id": id}}
}

func TestQueueDispatchesInBatches(t *testing.T) {
	store := &recordingStore{}
	delay := 30 * time.Millisecond
	q := NewQueue(store, QueueConfig{BatchSize: 5, BatchDelay: delay, Cooldown: time.Second}, testLogger())
	defer q.Close()

	const total = 23
	for i := 0; i < total; i++ {
		q.Enqueue(setOp(fmt.Sprintf("%d", i)))
	}

	require.Eventually(t, func() bool {
		return len(store.recorded()) == total
	}, 3*time.Second, 5*time.Millisecond)

	calls := store.recorded()
	for i, call := range calls {
		assert.Equal(t, fmt.Sprintf("%d", i), call.id, "operations must dispatch in enqueue order")
	}

	// Any BatchSize+1 consecutive dispatches span at least one batch
	// boundary, so they cannot land closer together than the spacing.
	for i := 0; i+5 < total; i++ {
		gap := calls[i+5].at.Sub(calls[i].at)
		assert.GreaterOrEqual(t, gap, delay-5*time.Millisecond,
			"ops %d..%d dispatched faster than the batch spacing allows", i, i+5)
	}
	assert.Zero(t, q.Pending())
}

func TestQueueRateLimitCooldown(t *testing.T) {
	store := &recordingStore{}
	cooldown := 80 * time.Millisecond
	q := NewQueue(store, QueueConfig{BatchSize: 5, BatchDelay: 5 * time.Millisecond, Cooldown: cooldown}, testLogger())
	defer q.Close()

	// Second dispatch hits the rate limit; everything from it onward
	// must wait out the cooldown and then arrive in order.
	store.failWith(nil, remote.ErrRateLimited)
	start := time.Now()
	for i := 0; i < 4; i++ {
		q.Enqueue(setOp(fmt.Sprintf("%d", i)))
	}

	require.Eventually(t, func() bool {
		return len(store.recorded()) == 4
	}, 3*time.Second, 5*time.Millisecond)

	calls := store.recorded()
	for i, call := range calls {
		assert.Equal(t, fmt.Sprintf("%d", i), call.id)
	}
	assert.GreaterOrEqual(t, calls[1].at.Sub(start), cooldown-5*time.Millisecond,
		"rate limited op must not be retried before the cooldown elapses")
}

func TestQueueRequeuesFailedOpBeforeNewerOnes(t *testing.T) {
	store := &recordingStore{}
	q := NewQueue(store, QueueConfig{BatchSize: 5, BatchDelay: 10 * time.Millisecond, Cooldown: time.Second}, testLogger())
	defer q.Close()

	store.failWith(fmt.Errorf("write rejected"))
	q.Enqueue(setOp("a"))
	q.Enqueue(setOp("b"))

	require.Eventually(t, func() bool {
		return len(store.recorded()) == 2
	}, 3*time.Second, 5*time.Millisecond)

	calls := store.recorded()
	// "a" failed on the first cycle but still lands before "b".
	assert.Equal(t, "a", calls[0].id)
	assert.Equal(t, "b", calls[1].id)
}

func TestQueueDispatchesDeletes(t *testing.T) {
	store := &recordingStore{}
	q := NewQueue(store, QueueConfig{BatchDelay: 5 * time.Millisecond}, testLogger())
	defer q.Close()

	q.Enqueue(Op{Collection: "members", DocID: "7", Kind: OpDelete})

	require.Eventually(t, func() bool {
		return len(store.recorded()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, store.recorded()[0].deleted)
	assert.Equal(t, "members", store.recorded()[0].collection)
}

func TestQueueEnqueueAfterCloseIsNoop(t *testing.T) {
	store := &recordingStore{}
	q := NewQueue(store, QueueConfig{}, testLogger())
	q.Close()

	q.Enqueue(setOp("1"))
	assert.Zero(t, q.Pending())

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, store.recorded())
}

func TestQueueCloseRetainsPendingOps(t *testing.T) {
	store := &recordingStore{}
	q := NewQueue(store, QueueConfig{Cooldown: time.Hour}, testLogger())

	store.failWith(remote.ErrRateLimited)
	q.Enqueue(setOp("1"))
	q.Enqueue(setOp("2"))

	// The rate limited cycle puts everything back and parks the queue
	// in cooldown.
	require.Eventually(t, func() bool {
		return q.Pending() == 2
	}, 2*time.Second, 5*time.Millisecond)

	q.Close()
	assert.Equal(t, 2, q.Pending())
	assert.Empty(t, store.recorded())
}

func TestQueueFlushDrainsEverything(t *testing.T) {
	store := &recordingStore{}
	// BatchSize 1 with an enormous spacing: the first op dispatches on
	// the immediate cycle, everything after waits for Flush.
	q := NewQueue(store, QueueConfig{BatchSize: 1, BatchDelay: time.Hour}, testLogger())
	defer q.Close()

	for i := 0; i < 4; i++ {
		q.Enqueue(setOp(fmt.Sprintf("%d", i)))
	}
	// A single Flush waits for the in-flight cycle, then drains the rest.
	require.NoError(t, q.Flush(context.Background()))

	calls := store.recorded()
	require.Len(t, calls, 4)
	for i, call := range calls {
		assert.Equal(t, fmt.Sprintf("%d", i), call.id)
	}
	assert.Zero(t, q.Pending())
}

func TestQueueFlushStopsOnRateLimit(t *testing.T) {
	store := &recordingStore{}
	q := NewQueue(store, QueueConfig{BatchSize: 1, BatchDelay: time.Hour, Cooldown: time.Hour}, testLogger())
	defer q.Close()

	// op0 dispatches on the immediate cycle; op1 rate limits the flush.
	store.failWith(nil, remote.ErrRateLimited)
	for i := 0; i < 3; i++ {
		q.Enqueue(setOp(fmt.Sprintf("%d", i)))
	}
	require.ErrorIs(t, q.Flush(context.Background()), remote.ErrRateLimited)

	// The rejected op went back to the front; nothing was lost.
	assert.Equal(t, 2, q.Pending())
	assert.Len(t, store.recorded(), 1)
}

// slowStore stretches each write so overlapping dispatch cycles would
// be visible as flight > 1.
type slowStore struct {
	recordingStore
	hold time.Duration

	flightMu  sync.Mutex
	flight    int
	maxFlight int
}

func (s *slowStore) Set(ctx context.Context, collection, id string, doc any, merge bool) error {
	s.flightMu.Lock()
	s.flight++
	if s.flight > s.maxFlight {
		s.maxFlight = s.flight
	}
	s.flightMu.Unlock()

	time.Sleep(s.hold)

	s.flightMu.Lock()
	s.flight--
	s.flightMu.Unlock()
	return s.record(collection, id, false)
}

func TestQueueFlushExcludesBackgroundDispatch(t *testing.T) {
	store := &slowStore{hold: 30 * time.Millisecond}
	q := NewQueue(store, QueueConfig{BatchSize: 1, BatchDelay: 40 * time.Millisecond}, testLogger())
	defer q.Close()

	q.Enqueue(setOp("0"))
	q.Enqueue(setOp("1"))

	done := make(chan error, 1)
	go func() { done <- q.Flush(context.Background()) }()

	// Land more work while the background cycle and the flush contend
	// for the dispatch guard.
	time.Sleep(10 * time.Millisecond)
	q.Enqueue(setOp("2"))
	q.Enqueue(setOp("3"))

	require.NoError(t, <-done)

	calls := store.recorded()
	require.Len(t, calls, 4)
	for i, call := range calls {
		assert.Equal(t, fmt.Sprintf("%d", i), call.id, "flush must not reorder queued operations")
	}

	store.flightMu.Lock()
	defer store.flightMu.Unlock()
	assert.Equal(t, 1, store.maxFlight, "only one dispatch cycle may be in flight")
}

func TestQueueFlushWaitsOutCooldown(t *testing.T) {
	store := &recordingStore{}
	cooldown := 60 * time.Millisecond
	q := NewQueue(store, QueueConfig{BatchSize: 5, BatchDelay: time.Hour, Cooldown: cooldown}, testLogger())
	defer q.Close()

	store.failWith(remote.ErrRateLimited)
	t0 := time.Now()
	q.Enqueue(setOp("0"))
	q.Enqueue(setOp("1"))
	require.Eventually(t, func() bool {
		return q.Pending() == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, q.Flush(context.Background()))

	calls := store.recorded()
	require.Len(t, calls, 2)
	assert.GreaterOrEqual(t, calls[0].at.Sub(t0), cooldown-5*time.Millisecond,
		"flush must park until the rate-limit cooldown expires")
	assert.Zero(t, q.Pending())
}

func TestQueuePendingByCollection(t *testing.T) {
	store := &recordingStore{}
	q := NewQueue(store, QueueConfig{BatchSize: 5, BatchDelay: time.Hour, Cooldown: time.Hour}, testLogger())
	defer q.Close()

	store.failWith(remote.ErrRateLimited)
	q.Enqueue(setOp("1"))
	q.Enqueue(setOp("2"))
	q.Enqueue(Op{Collection: "sales", DocID: "100", Kind: OpSet, Doc: map[string]string{"id": "100"}})

	require.Eventually(t, func() bool {
		return q.Pending() == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, map[string]int{"products": 2, "sales": 1}, q.PendingByCollection())
}
