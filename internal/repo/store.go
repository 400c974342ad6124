// Package repo holds the authoritative in-memory tenant state and the
// typed CRUD surface over each collection. Every local mutation is
// applied to memory and persisted to the local store synchronously
// before any remote write is scheduled.
package repo

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sp24/pos/internal/clock"
	"github.com/sp24/pos/internal/localstore"
	"github.com/sp24/pos/internal/models"
)

// Store owns one tenant's in-memory state.
type Store struct {
	snap     *models.Snapshot
	local    localstore.Store
	outbox   Outbox
	clock    *clock.Generator
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
	tenantID string
	mu       sync.Mutex
}

// New creates a store around an already-loaded snapshot.
func New(tenantID string, snap *models.Snapshot, local localstore.Store, outbox Outbox, gen *clock.Generator, logger *slog.Logger) *Store {
	snap.EnsureProtectedCategory()
	return &Store{
		tenantID: tenantID,
		snap:     snap,
		local:    local,
		outbox:   outbox,
		clock:    gen,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

// Collection accessors. Each value is a thin typed view over the shared
// state, one per entity collection.

func (s *Store) Products() Products     { return Products{s} }
func (s *Store) Categories() Categories { return Categories{s} }
func (s *Store) Members() Members       { return Members{s} }
func (s *Store) Sales() Sales           { return Sales{s} }

// Snapshot returns a copy of the current tenant state.
func (s *Store) Snapshot() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySnapshotLocked()
}

func (s *Store) copySnapshotLocked() *models.Snapshot {
	cp := &models.Snapshot{
		Products:   append([]models.Product(nil), s.snap.Products...),
		Categories: append([]models.Category(nil), s.snap.Categories...),
		Members:    append([]models.Member(nil), s.snap.Members...),
		Sales:      append([]models.Sale(nil), s.snap.Sales...),
		Settings:   s.snap.Settings,
	}
	return cp
}

// Settings returns the current tenant settings.
func (s *Store) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Settings
}

// UpdateSettings applies fn to the settings, persists locally and
// schedules the debounced remote settings write.
func (s *Store) UpdateSettings(ctx context.Context, fn func(*models.Settings)) {
	s.mu.Lock()
	fn(&s.snap.Settings)
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.outbox.ScheduleSettingsSync()
}

// ApplyRemoteSettings merges a remotely synchronized settings document
// and persists locally. No outbound write is scheduled: echoing the
// remote's own document back would loop.
func (s *Store) ApplyRemoteSettings(ctx context.Context, settings models.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Settings.MergeRemote(settings)
	s.persistLocked(ctx)
}

// ResetFromSnapshot replaces the whole in-memory state, used by the sync
// coordinator after a successful bootstrap pull.
func (s *Store) ResetFromSnapshot(ctx context.Context, snap *models.Snapshot) {
	snap.EnsureProtectedCategory()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.persistLocked(ctx)
}

// Persist writes the current state to the local store. Called on the
// periodic autosave cadence as a safety net on top of the per-mutation
// persistence.
func (s *Store) Persist(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked(ctx)
}

// persistLocked writes the snapshot synchronously. A write failure is
// logged and swallowed: the in-memory state remains the source of truth
// for the rest of the session.
func (s *Store) persistLocked(ctx context.Context) {
	if err := s.local.SaveSnapshot(ctx, s.tenantID, s.snap); err != nil {
		s.logger.Error("failed to persist snapshot", "tenant_id", s.tenantID, "error", err)
	}
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// stockPatch is the partial product document written back after a sale.
type stockPatch struct {
	Stock       int64     `json:"stock"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// pointsPatch is the partial member document written after earning points.
type pointsPatch struct {
	Points      int64     `json:"points"`
	LastUpdated time.Time `json:"lastUpdated"`
}
