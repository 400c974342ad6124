package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sp24/pos/internal/remote"
)

const (
	defaultDebounceDelay = 5 * time.Second
)

// Debouncer collapses repeated settings-sync requests into one deferred
// write carrying the latest state. A new request during the window
// resets the window; the write function is invoked once per quiet
// period, never concurrently with itself.
type Debouncer struct {
	fn            func(context.Context) error
	logger        *slog.Logger
	timer         *time.Timer
	delay         time.Duration
	cooldown      time.Duration
	cooldownUntil time.Time
	closed        bool
	wg            sync.WaitGroup
	mu            sync.Mutex
}

// NewDebouncer creates a debouncer around fn. Zero durations fall back
// to the engine defaults.
func NewDebouncer(delay, cooldown time.Duration, fn func(context.Context) error, logger *slog.Logger) *Debouncer {
	if delay <= 0 {
		delay = defaultDebounceDelay
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	return &Debouncer{
		fn:       fn,
		delay:    delay,
		cooldown: cooldown,
		logger:   logger,
	}
}

// Trigger requests a write. Repeated triggers within the delay window
// collapse into a single one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Close cancels any pending write and waits for an in-flight one.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if wait := time.Until(d.cooldownUntil); wait > 0 {
		// Still rate limited: keep the write pending past the cooldown
		d.timer = time.AfterFunc(wait, d.fire)
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()
	defer d.wg.Done()

	err := d.fn(context.Background())
	if err == nil {
		return
	}

	if errors.Is(err, remote.ErrRateLimited) {
		d.mu.Lock()
		if !d.closed {
			d.cooldownUntil = time.Now().Add(d.cooldown)
			d.timer = time.AfterFunc(d.cooldown, d.fire)
		}
		d.mu.Unlock()
		d.logger.Warn("settings sync rate limited, retrying after cooldown", "cooldown", d.cooldown)
		return
	}

	// Background sync failures stay silent beyond the log; the next
	// local mutation re-arms the write.
	d.logger.Error("settings sync failed", "error", err)
}
