// Package boltdb implements the local snapshot store on BoltDB.
package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"

	"github.com/sp24/pos/internal/models"
)

// BoltDB bucket holding one JSON snapshot per tenant id.
var bucketSnapshots = []byte("snapshots")

// Storage is the BoltDB-backed snapshot store.
type Storage struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// New opens (or creates) the database file at dbPath.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db, logger: logger}

	if err := storage.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSnapshots); err != nil {
			return fmt.Errorf("failed to create snapshots bucket: %w", err)
		}
		return nil
	})
}

// SaveSnapshot writes the full tenant snapshot in one transaction.
func (s *Storage) SaveSnapshot(ctx context.Context, tenantID string, snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return fmt.Errorf("snapshots bucket not found")
		}
		if err := bucket.Put(snapshotKey(tenantID), data); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		return nil
	})
}

// LoadSnapshot reads the tenant snapshot. A missing or corrupt snapshot
// returns the default state; corruption is logged, not surfaced.
func (s *Storage) LoadSnapshot(ctx context.Context, tenantID string) (*models.Snapshot, error) {
	var data []byte

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return fmt.Errorf("snapshots bucket not found")
		}
		if v := bucket.Get(snapshotKey(tenantID)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to read snapshot, using defaults", "tenant_id", tenantID, "error", err)
		return models.DefaultSnapshot(), nil
	}

	if data == nil {
		return models.DefaultSnapshot(), nil
	}

	snap := &models.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		s.logger.Warn("snapshot is unparsable, using defaults", "tenant_id", tenantID, "error", err)
		return models.DefaultSnapshot(), nil
	}
	snap.EnsureProtectedCategory()

	return snap, nil
}

// DeleteSnapshot removes the tenant's snapshot.
func (s *Storage) DeleteSnapshot(ctx context.Context, tenantID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSnapshots)
		if bucket == nil {
			return fmt.Errorf("snapshots bucket not found")
		}
		return bucket.Delete(snapshotKey(tenantID))
	})
}

func snapshotKey(tenantID string) []byte {
	return []byte("posData_" + tenantID)
}
