// Package sync implements the synchronization engine: the rate-limited
// outbound write queue, the debounced settings writer, the change-feed
// reconciler and the coordinator that orchestrates them per tenant.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sp24/pos/internal/remote"
)

// OpKind classifies an outbound operation.
type OpKind string

const (
	OpSet    OpKind = "set"
	OpDelete OpKind = "delete"
)

// Op is one queued remote write.
type Op struct {
	Key        string // op id for log correlation
	Collection string
	DocID      string
	Kind       OpKind
	Doc        any
	Merge      bool
}

// QueueConfig tunes the dispatcher. Zero values fall back to the
// defaults the backend rate limit was measured against.
type QueueConfig struct {
	// BatchSize is the number of operations drained per dispatch cycle.
	BatchSize int
	// BatchDelay is the minimum time between successive batch starts,
	// enforced regardless of queue depth.
	BatchDelay time.Duration
	// Cooldown suppresses all dispatching after the remote signals a
	// rate-limit condition.
	Cooldown time.Duration
}

const (
	defaultBatchSize  = 5
	defaultBatchDelay = 2 * time.Second
	defaultCooldown   = 60 * time.Second
)

func (c QueueConfig) withDefaults() QueueConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = defaultBatchDelay
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	return c
}

// Queue converts repository mutations into remote writes under a strict
// rate ceiling. Operations are dispatched in enqueue order, a bounded
// batch at a time, with a minimum delay between batches. Only one drain
// cycle is ever in flight.
type Queue struct {
	store         remote.Store
	logger        *slog.Logger
	cfg           QueueConfig
	ops           []Op
	timer         *time.Timer
	lastBatch     time.Time
	cooldownUntil time.Time
	stopCh        chan struct{}
	processing    bool
	closed        bool
	wg            sync.WaitGroup
	mu            sync.Mutex
	// idle signals processing going false; Flush waits on it to take
	// over the dispatch guard from a background cycle.
	idle *sync.Cond
}

// NewQueue creates a queue dispatching into store.
func NewQueue(store remote.Store, cfg QueueConfig, logger *slog.Logger) *Queue {
	q := &Queue{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: logger,
		stopCh: make(chan struct{}),
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an operation and triggers dispatching. Never blocks
// and never fails: remote delivery is decoupled from local success.
func (q *Queue) Enqueue(op Op) {
	if op.Key == "" {
		op.Key = uuid.NewString()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.ops = append(q.ops, op)
	q.kickLocked()
	q.mu.Unlock()
}

// Pending returns the number of operations awaiting dispatch.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// PendingByCollection returns the queued operation count per collection.
func (q *Queue) PendingByCollection() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[string]int)
	for _, op := range q.ops {
		counts[op.Collection]++
	}
	return counts
}

// Close stops dispatching. Pending operations are left in place; the
// periodic local persistence has already captured the state they were
// derived from.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
	}
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()
}

// Flush synchronously dispatches everything still queued, bypassing the
// batch spacing but not the rate-limit cooldown. It waits for any
// in-flight background cycle and then holds the dispatch guard itself,
// so exactly one cycle runs at a time and per-id order is preserved.
// Returns once the queue is empty, or with the first dispatch error;
// a failed operation goes back to the front of the queue.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	for q.processing {
		q.idle.Wait()
	}
	q.processing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.processing = false
		q.idle.Broadcast()
		q.kickLocked()
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		if q.closed || len(q.ops) == 0 {
			q.mu.Unlock()
			return nil
		}
		if wait := time.Until(q.cooldownUntil); wait > 0 {
			q.mu.Unlock()
			select {
			case <-time.After(wait):
			case <-q.stopCh:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		op := q.ops[0]
		q.ops = q.ops[1:]
		q.mu.Unlock()

		if err := q.dispatch(ctx, op); err != nil {
			q.mu.Lock()
			q.ops = append([]Op{op}, q.ops...)
			if errors.Is(err, remote.ErrRateLimited) {
				q.cooldownUntil = time.Now().Add(q.cfg.Cooldown)
			}
			q.mu.Unlock()
			q.logger.Error("flush operation failed", "op", op.Key, "collection", op.Collection, "error", err)
			return err
		}
	}
}

// kickLocked starts a drain cycle unless one is running, the queue is
// empty, or the cooldown is active. Callers hold q.mu.
func (q *Queue) kickLocked() {
	if q.closed || q.processing || len(q.ops) == 0 {
		return
	}
	if wait := time.Until(q.cooldownUntil); wait > 0 {
		q.scheduleLocked(wait)
		return
	}
	q.processing = true
	q.wg.Add(1)
	go q.drain()
}

func (q *Queue) kick() {
	q.mu.Lock()
	q.kickLocked()
	q.mu.Unlock()
}

func (q *Queue) scheduleLocked(d time.Duration) {
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(d, q.kick)
}

// drain runs one dispatch cycle: wait out the batch spacing, take up to
// BatchSize operations, dispatch them in order, then schedule the next
// cycle if work remains.
func (q *Queue) drain() {
	defer q.wg.Done()

	q.mu.Lock()
	var wait time.Duration
	if !q.lastBatch.IsZero() {
		wait = q.cfg.BatchDelay - time.Since(q.lastBatch)
	}
	q.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-q.stopCh:
			q.mu.Lock()
			q.processing = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
	}

	q.mu.Lock()
	n := q.cfg.BatchSize
	if n > len(q.ops) {
		n = len(q.ops)
	}
	batch := make([]Op, n)
	copy(batch, q.ops[:n])
	q.ops = q.ops[n:]
	q.mu.Unlock()

	ctx := context.Background()
	var requeue []Op
	halted := false

	for i, op := range batch {
		select {
		case <-q.stopCh:
			requeue = append(requeue, batch[i:]...)
			halted = true
		default:
		}
		if halted {
			break
		}

		err := q.dispatch(ctx, op)
		if err == nil {
			continue
		}
		if errors.Is(err, remote.ErrRateLimited) {
			q.logger.Warn("remote rate limited, entering cooldown",
				"op", op.Key, "cooldown", q.cfg.Cooldown)
			q.mu.Lock()
			q.cooldownUntil = time.Now().Add(q.cfg.Cooldown)
			q.mu.Unlock()
			// Nothing was lost: the current op and the rest of the
			// batch go back to the front in order.
			requeue = append(requeue, batch[i:]...)
			halted = true
			break
		}
		// Any other failure is logged and retried on a later cycle,
		// before newer operations for the same documents.
		q.logger.Error("queue operation failed", "op", op.Key,
			"collection", op.Collection, "doc_id", op.DocID, "error", err)
		requeue = append(requeue, op)
	}

	q.mu.Lock()
	if len(requeue) > 0 {
		q.ops = append(requeue, q.ops...)
	}
	q.lastBatch = time.Now()
	q.processing = false
	q.idle.Broadcast()
	if !q.closed && len(q.ops) > 0 {
		delay := q.cfg.BatchDelay
		if wait := time.Until(q.cooldownUntil); wait > delay {
			delay = wait
		}
		q.scheduleLocked(delay)
	}
	q.mu.Unlock()
}

func (q *Queue) dispatch(ctx context.Context, op Op) error {
	switch op.Kind {
	case OpDelete:
		return q.store.Delete(ctx, op.Collection, op.DocID)
	default:
		return q.store.Set(ctx, op.Collection, op.DocID, op.Doc, op.Merge)
	}
}
