package sync

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/remote"
	"github.com/sp24/pos/internal/remote/memory"
	"github.com/sp24/pos/internal/repo"
)

func newTestCoordinator(t *testing.T, backend remote.Store) (*Coordinator, *repo.Store) {
	t.Helper()
	store := newTestRepo(t)
	recon := NewReconciler(store, DefaultDenylist, testLogger())
	queue := NewQueue(backend, QueueConfig{BatchDelay: 5 * time.Millisecond}, testLogger())
	t.Cleanup(queue.Close)

	coord := NewCoordinator(store, queue, recon, backend, CoordinatorConfig{
		SalesWindow:      100,
		AutosaveInterval: time.Hour,
		RetryBase:        time.Millisecond,
		RetryCap:         5 * time.Millisecond,
	}, testLogger())
	return coord, store
}

func TestCoordinatorBootstrapPullsRemoteState(t *testing.T) {
	backend := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, models.CollectionCategories, "2", models.Category{ID: 2, Name: "Drinks"}, false))
	require.NoError(t, backend.Set(ctx, models.CollectionProducts, "100", models.Product{ID: 100, Name: "Latte", Price: decimal.NewFromInt(65), Stock: 10, CategoryID: 2}, false))
	require.NoError(t, backend.Set(ctx, models.CollectionProducts, "101", models.Product{ID: 101, Name: "Cappuccino", Price: decimal.NewFromInt(60)}, false))
	require.NoError(t, backend.Set(ctx, models.CollectionMembers, "55", models.Member{ID: 55, Name: "Nok", Points: 3}, false))

	coord, store := newTestCoordinator(t, backend)
	coord.Start(ctx)
	defer coord.Stop()

	_, ok := store.Products().Get(100)
	assert.True(t, ok)
	_, ok = store.Products().Get(101)
	assert.False(t, ok, "sample products never enter the working set")
	_, ok = store.Members().Get(55)
	assert.True(t, ok)
	_, ok = store.Categories().Get(models.ProtectedCategoryID)
	assert.True(t, ok, "the umbrella category exists even when the remote lacks it")

	assert.Equal(t, StateLive, coord.Status().State)
	assert.Empty(t, coord.Status().LastError)
}

func TestCoordinatorSeedsDefaultCategoriesIntoEmptyRemote(t *testing.T) {
	backend := memory.NewStore()
	coord, store := newTestCoordinator(t, backend)
	coord.Start(context.Background())
	defer coord.Stop()

	assert.Equal(t, len(models.DefaultCategories()), backend.Len(models.CollectionCategories))
	assert.Len(t, store.Categories().List(), len(models.DefaultCategories()))
}

func TestCoordinatorBootstrapFailureFallsBackToLocal(t *testing.T) {
	backend := memory.NewStore()
	backend.SetError(remote.ErrUnavailable)

	coord, store := newTestCoordinator(t, backend)

	// Local state exists before the (failing) bootstrap.
	store.UpdateSettings(context.Background(), func(s *models.Settings) { s.StoreName = "Offline Cafe" })

	coord.Start(context.Background())

	st := coord.Status()
	assert.Equal(t, StateLive, st.State, "a failed bootstrap still brings the engine up on local data")
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, "Offline Cafe", store.Settings().StoreName)

	backend.SetError(nil)
	coord.Stop()
}

func TestCoordinatorAppliesLiveEvents(t *testing.T) {
	backend := memory.NewStore()
	coord, store := newTestCoordinator(t, backend)
	ctx := context.Background()
	coord.Start(ctx)
	defer coord.Stop()

	mocha := models.Product{ID: 200, Name: "Mocha", Price: decimal.NewFromInt(70), Stock: 5}
	require.NoError(t, backend.Set(ctx, models.CollectionProducts, "200", mocha, false))

	require.Eventually(t, func() bool {
		_, ok := store.Products().Get(200)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, backend.Delete(ctx, models.CollectionProducts, "200"))
	require.Eventually(t, func() bool {
		_, ok := store.Products().Get(200)
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCoordinatorAppliesLiveSalesWindow(t *testing.T) {
	backend := memory.NewStore()
	coord, store := newTestCoordinator(t, backend)
	ctx := context.Background()
	coord.Start(ctx)
	defer coord.Stop()

	sale := models.Sale{
		ID:        3000,
		Timestamp: time.UnixMilli(3000),
		Items:     []models.SaleItem{{ProductID: 1, Name: "Latte", Quantity: 1, Price: decimal.NewFromInt(65)}},
		Total:     decimal.NewFromInt(65),
	}
	require.NoError(t, backend.Set(ctx, models.CollectionSales, "3000", sale, false))

	require.Eventually(t, func() bool {
		_, ok := store.Sales().Get(3000)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCoordinatorStopHaltsEventApplication(t *testing.T) {
	backend := memory.NewStore()
	coord, store := newTestCoordinator(t, backend)
	ctx := context.Background()
	coord.Start(ctx)
	coord.Stop()

	assert.Equal(t, StateStopped, coord.Status().State)

	mocha := models.Product{ID: 200, Name: "Mocha", Price: decimal.NewFromInt(70)}
	require.NoError(t, backend.Set(ctx, models.CollectionProducts, "200", mocha, false))

	time.Sleep(50 * time.Millisecond)
	_, ok := store.Products().Get(200)
	assert.False(t, ok, "nothing may be applied after Stop")
}

func TestCoordinatorStatusReportsQueueBacklog(t *testing.T) {
	backend := memory.NewStore()
	backend.SetError(remote.ErrRateLimited)

	store := newTestRepo(t)
	recon := NewReconciler(store, DefaultDenylist, testLogger())
	queue := NewQueue(backend, QueueConfig{BatchDelay: 5 * time.Millisecond, Cooldown: time.Hour}, testLogger())
	t.Cleanup(queue.Close)
	coord := NewCoordinator(store, queue, recon, backend, CoordinatorConfig{}, testLogger())

	queue.Enqueue(Op{Collection: models.CollectionProducts, DocID: "100", Kind: OpSet, Doc: models.Product{ID: 100, Name: "Latte"}})
	queue.Enqueue(Op{Collection: models.CollectionSales, DocID: "1", Kind: OpSet, Doc: models.Sale{ID: 1}})
	require.Eventually(t, func() bool {
		return queue.Pending() == 2
	}, 2*time.Second, 5*time.Millisecond)

	st := coord.Status()
	assert.Equal(t, 2, st.PendingOps)
	assert.Equal(t, map[string]int{
		models.CollectionProducts: 1,
		models.CollectionSales:    1,
	}, st.PendingByCollection)
}
