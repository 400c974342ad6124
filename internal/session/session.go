// Package session assembles the per-tenant engine: local snapshot,
// repositories, outbound queue, debounced settings writer, change-feed
// coordinator and the idle lock. One Session corresponds to one open
// store on one device.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sp24/pos/internal/clock"
	"github.com/sp24/pos/internal/crypto"
	"github.com/sp24/pos/internal/localstore"
	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/remote"
	"github.com/sp24/pos/internal/repo"
	possync "github.com/sp24/pos/internal/sync"
)

// ErrLocked is returned by operations that refuse to run while the
// session is idle-locked.
var ErrLocked = errors.New("session is locked")

// ErrInvalidPIN is returned when an unlock attempt fails.
var ErrInvalidPIN = errors.New("invalid pin")

const defaultLockCheckInterval = 60 * time.Second

// Config carries everything needed to open a tenant session.
type Config struct {
	TenantID string
	Local    localstore.Store
	Remote   remote.Store
	Logger   *slog.Logger

	Queue       possync.QueueConfig
	Coordinator possync.CoordinatorConfig

	// DebounceDelay and DebounceCooldown tune the settings writer. Zero
	// values use the engine defaults.
	DebounceDelay    time.Duration
	DebounceCooldown time.Duration

	// LockCheckInterval is how often idle time is evaluated against the
	// auto-lock threshold. Zero uses the default minute cadence.
	LockCheckInterval time.Duration
}

// Session is one open tenant store.
type Session struct {
	tenantID string
	store    *repo.Store
	local    localstore.Store
	queue    *possync.Queue
	debounce *possync.Debouncer
	coord    *possync.Coordinator
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	locked       bool
	lastActivity time.Time
}

// Open loads the tenant's local snapshot, wires the sync engine around
// it and starts synchronization. The returned session is usable
// immediately, before any remote round trip completes.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.TenantID == "" {
		return nil, fmt.Errorf("open session: tenant id is required")
	}
	if cfg.Local == nil || cfg.Remote == nil {
		return nil, fmt.Errorf("open session: local and remote stores are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LockCheckInterval <= 0 {
		cfg.LockCheckInterval = defaultLockCheckInterval
	}

	snap, err := cfg.Local.LoadSnapshot(ctx, cfg.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load local snapshot: %w", err)
	}

	s := &Session{
		tenantID:     cfg.TenantID,
		local:        cfg.Local,
		logger:       cfg.Logger,
		lastActivity: time.Now(),
	}

	s.queue = possync.NewQueue(cfg.Remote, cfg.Queue, cfg.Logger)
	s.debounce = possync.NewDebouncer(cfg.DebounceDelay, cfg.DebounceCooldown, s.writeSettings(cfg.Remote), cfg.Logger)

	outbox := &queueOutbox{queue: s.queue, debounce: s.debounce}
	s.store = repo.New(cfg.TenantID, snap, cfg.Local, outbox, clock.NewGenerator(), cfg.Logger)

	recon := possync.NewReconciler(s.store, possync.DefaultDenylist, cfg.Logger)
	s.coord = possync.NewCoordinator(s.store, s.queue, recon, cfg.Remote, cfg.Coordinator, cfg.Logger)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.coord.Start(runCtx)

	s.wg.Add(1)
	go s.lockLoop(runCtx, cfg.LockCheckInterval)

	return s, nil
}

// Store exposes the tenant repositories.
func (s *Session) Store() *repo.Store { return s.store }

// TenantID returns the tenant this session is bound to.
func (s *Session) TenantID() string { return s.tenantID }

// Status reports the sync engine state.
func (s *Session) Status() possync.Status { return s.coord.Status() }

// Flush synchronously pushes every pending outbound write.
func (s *Session) Flush(ctx context.Context) error { return s.queue.Flush(ctx) }

// writeSettings builds the debounced settings writer. Each invocation
// reads the latest local state, so collapsed triggers lose nothing.
func (s *Session) writeSettings(backend remote.Store) func(context.Context) error {
	return func(ctx context.Context) error {
		settings := s.store.Settings()
		doc := possync.SettingsDoc{
			Name:        settings.StoreName,
			Address:     settings.StoreAddress,
			Phone:       settings.StorePhone,
			Settings:    settings,
			LastUpdated: time.Now(),
		}
		return backend.Set(ctx, models.CollectionSettings, models.SettingsDocID, doc, true)
	}
}

// Touch records user activity for the idle lock.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Locked reports whether the session is idle-locked.
func (s *Session) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Lock locks the session immediately.
func (s *Session) Lock() {
	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()
}

// Unlock verifies the PIN against the stored hash and unlocks. A
// session without a configured PIN cannot lock and unlocks trivially.
func (s *Session) Unlock(pin string) error {
	hash := s.store.Settings().PINHash
	if hash != "" {
		if err := crypto.VerifyPIN(pin, hash); err != nil {
			return ErrInvalidPIN
		}
	}

	s.mu.Lock()
	s.locked = false
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return nil
}

// SetPIN hashes and stores a new lock PIN. An empty PIN disables the
// idle lock.
func (s *Session) SetPIN(ctx context.Context, pin string) error {
	var hash string
	if pin != "" {
		h, err := crypto.HashPIN(pin)
		if err != nil {
			return fmt.Errorf("hash pin: %w", err)
		}
		hash = h
	}
	s.store.UpdateSettings(ctx, func(settings *models.Settings) {
		settings.PINHash = hash
	})
	return nil
}

// lockLoop locks the session after the configured idle period. Sessions
// without a PIN never lock.
func (s *Session) lockLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkIdle()
		}
	}
}

func (s *Session) checkIdle() {
	settings := s.store.Settings()
	if settings.PINHash == "" || settings.AutoLockMinutes <= 0 {
		return
	}
	limit := time.Duration(settings.AutoLockMinutes) * time.Minute

	s.mu.Lock()
	idle := time.Since(s.lastActivity)
	if !s.locked && idle >= limit {
		s.locked = true
		s.logger.Info("session locked after inactivity", "tenant_id", s.tenantID, "idle", idle)
	}
	s.mu.Unlock()
}

// Close shuts the engine down in dependency order: stop inbound
// reconciliation, stop outbound writers, persist the final state, then
// release the local store.
func (s *Session) Close(ctx context.Context) error {
	s.cancel()
	s.coord.Stop()
	s.wg.Wait()
	s.debounce.Close()
	s.queue.Close()

	s.store.Persist(ctx)
	if err := s.local.Close(); err != nil {
		return fmt.Errorf("close local store: %w", err)
	}
	return nil
}

// queueOutbox adapts the queue and the debounced settings writer to the
// repository's outbox contract.
type queueOutbox struct {
	queue    *possync.Queue
	debounce *possync.Debouncer
}

func (o *queueOutbox) EnqueueSet(collection, id string, doc any, merge bool) {
	o.queue.Enqueue(possync.Op{Collection: collection, DocID: id, Kind: possync.OpSet, Doc: doc, Merge: merge})
}

func (o *queueOutbox) EnqueueDelete(collection, id string) {
	o.queue.Enqueue(possync.Op{Collection: collection, DocID: id, Kind: possync.OpDelete})
}

func (o *queueOutbox) ScheduleSettingsSync() {
	o.debounce.Trigger()
}
