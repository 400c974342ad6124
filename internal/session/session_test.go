package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sp24/pos/internal/localstore/boltdb"
	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/remote/memory"
	possync "github.com/sp24/pos/internal/sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig(tenantID string, local *boltdb.Storage, backend *memory.Store) Config {
	return Config{
		TenantID: tenantID,
		Local:    local,
		Remote:   backend,
		Logger:   testLogger(),
		Queue: possync.QueueConfig{
			BatchDelay: 5 * time.Millisecond,
		},
		Coordinator: possync.CoordinatorConfig{
			AutosaveInterval: time.Hour,
			RetryBase:        time.Millisecond,
			RetryCap:         5 * time.Millisecond,
		},
		DebounceDelay:     10 * time.Millisecond,
		LockCheckInterval: 10 * time.Millisecond,
	}
}

func openTestSession(t *testing.T, backend *memory.Store) *Session {
	t.Helper()
	local, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "pos.db"), testLogger())
	require.NoError(t, err)

	s, err := Open(context.Background(), fastConfig("tenant-1", local, backend))
	require.NoError(t, err)
	return s
}

func TestSessionSellFlowReachesRemote(t *testing.T) {
	backend := memory.NewStore()
	s := openTestSession(t, backend)
	ctx := context.Background()
	defer s.Close(ctx)

	product, err := s.Store().Products().Add(ctx, models.Product{
		Name: "Latte", Price: decimal.NewFromInt(65), Stock: 10, CategoryID: 2,
	})
	require.NoError(t, err)

	sale, err := s.Store().Sales().Add(ctx, models.Sale{
		Items: []models.SaleItem{{
			ProductID: product.ID, Name: product.Name, Quantity: 2, Price: product.Price,
		}},
		Subtotal: decimal.NewFromInt(130),
		Total:    decimal.NewFromInt(130),
		Payment:  "cash",
	})
	require.NoError(t, err)
	require.NotZero(t, sale.ID)

	got, ok := s.Store().Products().Get(product.ID)
	require.True(t, ok)
	assert.EqualValues(t, 8, got.Stock)

	// Everything the sale produced must eventually land remotely: the
	// product itself, the sale document, and the stock merge write.
	require.Eventually(t, func() bool {
		return backend.Len(models.CollectionProducts) == 1 &&
			backend.Len(models.CollectionSales) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, s.Status().PendingOps)
}

func TestSessionSurvivesRestart(t *testing.T) {
	backend := memory.NewStore()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "pos.db")
	ctx := context.Background()

	local, err := boltdb.New(ctx, dbPath, testLogger())
	require.NoError(t, err)
	s, err := Open(ctx, fastConfig("tenant-1", local, backend))
	require.NoError(t, err)

	product, err := s.Store().Products().Add(ctx, models.Product{Name: "Mocha", Price: decimal.NewFromInt(70), Stock: 4})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	// Remote unreachable on restart: the session must come back up from
	// the local snapshot alone.
	backend.SetError(context.DeadlineExceeded)

	local, err = boltdb.New(ctx, dbPath, testLogger())
	require.NoError(t, err)
	s, err = Open(ctx, fastConfig("tenant-1", local, backend))
	require.NoError(t, err)

	got, ok := s.Store().Products().Get(product.ID)
	require.True(t, ok)
	assert.Equal(t, "Mocha", got.Name)

	backend.SetError(nil)
	require.NoError(t, s.Close(ctx))
}

func TestSessionSettingsDebounceWritesRemoteDoc(t *testing.T) {
	backend := memory.NewStore()
	s := openTestSession(t, backend)
	ctx := context.Background()
	defer s.Close(ctx)

	// A burst of settings edits collapses to one remote document write.
	for i := 0; i < 5; i++ {
		s.Store().UpdateSettings(ctx, func(settings *models.Settings) {
			settings.TaxPercent = int64(i)
		})
	}

	require.Eventually(t, func() bool {
		return backend.Len(models.CollectionSettings) == 1
	}, 3*time.Second, 10*time.Millisecond)

	doc, err := backend.Get(ctx, models.CollectionSettings, models.SettingsDocID)
	require.NoError(t, err)
	var sd possync.SettingsDoc
	require.NoError(t, doc.Decode(&sd))
	assert.EqualValues(t, 4, sd.Settings.TaxPercent, "the deferred write carries the final state")
}

func TestSessionIdleLock(t *testing.T) {
	backend := memory.NewStore()
	s := openTestSession(t, backend)
	ctx := context.Background()
	defer s.Close(ctx)

	require.NoError(t, s.SetPIN(ctx, "1234"))
	assert.False(t, s.Locked())

	// Shrink the idle threshold to something a test can wait out.
	s.Store().UpdateSettings(ctx, func(settings *models.Settings) {
		settings.AutoLockMinutes = 1
	})
	s.mu.Lock()
	s.lastActivity = time.Now().Add(-2 * time.Minute)
	s.mu.Unlock()

	require.Eventually(t, s.Locked, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, s.Unlock("0000"), ErrInvalidPIN)
	assert.True(t, s.Locked())

	require.NoError(t, s.Unlock("1234"))
	assert.False(t, s.Locked())
}

func TestSessionWithoutPINNeverLocks(t *testing.T) {
	backend := memory.NewStore()
	s := openTestSession(t, backend)
	ctx := context.Background()
	defer s.Close(ctx)

	s.Store().UpdateSettings(ctx, func(settings *models.Settings) {
		settings.AutoLockMinutes = 1
	})
	s.mu.Lock()
	s.lastActivity = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, s.Locked())

	// Unlocking without a configured PIN succeeds with any input.
	require.NoError(t, s.Unlock("anything"))
}

func TestSessionOpenValidatesConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}

func TestSessionManualFlush(t *testing.T) {
	backend := memory.NewStore()
	s := openTestSession(t, backend)
	ctx := context.Background()
	defer s.Close(ctx)

	for i := 0; i < 3; i++ {
		_, err := s.Store().Members().Add(ctx, models.Member{Name: "Member", Phone: "08"})
		require.NoError(t, err)
	}

	require.NoError(t, s.Flush(ctx))
	assert.Zero(t, s.Status().PendingOps)
	assert.Equal(t, 3, backend.Len(models.CollectionMembers))
}
