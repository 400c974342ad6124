// Package localstore defines the durable snapshot store the engine
// persists tenant state into. Persistence is synchronous: a caller that
// returns from SaveSnapshot without error knows the state is on disk.
package localstore

import (
	"context"

	"github.com/sp24/pos/internal/models"
)

// Store persists the whole-tenant snapshot keyed by tenant id.
type Store interface {
	// SaveSnapshot serializes and writes the full snapshot, overwriting
	// any previous one. Either the whole write happens or none of it.
	SaveSnapshot(ctx context.Context, tenantID string, snap *models.Snapshot) error

	// LoadSnapshot returns the previously persisted snapshot. A missing
	// or unparsable snapshot degrades to models.DefaultSnapshot, never
	// to an error: the local store is not allowed to be fatal on read.
	LoadSnapshot(ctx context.Context, tenantID string) (*models.Snapshot, error)

	// DeleteSnapshot removes a tenant's snapshot (explicit data clear).
	DeleteSnapshot(ctx context.Context, tenantID string) error

	// Close releases the underlying storage.
	Close() error
}
