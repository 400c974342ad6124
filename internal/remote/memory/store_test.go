package memory

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sp24/pos/internal/remote"
)

type doc struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Set(ctx, "products", "1", doc{ID: 1, Name: "Latte"}, false))

	got, err := store.Get(ctx, "products", "1")
	require.NoError(t, err)

	var d doc
	require.NoError(t, got.Decode(&d))
	assert.Equal(t, "Latte", d.Name)

	require.NoError(t, store.Delete(ctx, "products", "1"))
	_, err = store.Get(ctx, "products", "1")
	assert.ErrorIs(t, err, remote.ErrNotFound)

	// Deleting again is a no-op
	assert.NoError(t, store.Delete(ctx, "products", "1"))
}

func TestSetMerge(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Set(ctx, "products", "1", doc{ID: 1, Name: "Latte", Timestamp: 5}, false))
	require.NoError(t, store.Set(ctx, "products", "1", map[string]any{"name": "Mocha"}, true))

	got, err := store.Get(ctx, "products", "1")
	require.NoError(t, err)

	var d doc
	require.NoError(t, got.Decode(&d))
	assert.Equal(t, "Mocha", d.Name)
	assert.Equal(t, int64(5), d.Timestamp, "merge must keep unpatched fields")
}

func TestQuery_OrderAndLimit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, store.Set(ctx, "sales", strconv.FormatInt(i, 10), doc{ID: i, Timestamp: i * 100}, false))
	}

	docs, err := store.Query(ctx, "sales", remote.Query{OrderBy: "timestamp", Desc: true, Limit: 3})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	var first doc
	require.NoError(t, docs[0].Decode(&first))
	assert.Equal(t, int64(5), first.ID)
}

func TestSubscribe_EventsInOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sub, err := store.Subscribe(ctx, "products")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, store.Set(ctx, "products", "1", doc{ID: 1, Name: "Latte"}, false))
	require.NoError(t, store.Set(ctx, "products", "1", doc{ID: 1, Name: "Iced Latte"}, false))
	require.NoError(t, store.Delete(ctx, "products", "1"))

	ev := <-sub.Events()
	assert.Equal(t, remote.EventAdded, ev.Type)
	ev = <-sub.Events()
	assert.Equal(t, remote.EventModified, ev.Type)
	ev = <-sub.Events()
	assert.Equal(t, remote.EventRemoved, ev.Type)
	assert.Equal(t, "1", ev.Doc.ID)
}

func TestSubscribeQuery_DeliversWindow(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Set(ctx, "sales", "1", doc{ID: 1, Timestamp: 100}, false))

	sub, err := store.SubscribeQuery(ctx, "sales", remote.Query{OrderBy: "timestamp", Desc: true, Limit: 2})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// Initial snapshot
	snap := <-sub.Snapshots()
	require.Len(t, snap, 1)

	require.NoError(t, store.Set(ctx, "sales", "2", doc{ID: 2, Timestamp: 200}, false))
	require.NoError(t, store.Set(ctx, "sales", "3", doc{ID: 3, Timestamp: 300}, false))

	<-sub.Snapshots()
	snap = <-sub.Snapshots()
	require.Len(t, snap, 2, "window is capped at the query limit")

	var newest doc
	require.NoError(t, snap[0].Decode(&newest))
	assert.Equal(t, int64(3), newest.ID)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sub, err := store.Subscribe(ctx, "products")
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, store.Set(ctx, "products", "1", doc{ID: 1}, false))

	_, open := <-sub.Events()
	assert.False(t, open, "channel must be closed after unsubscribe")
}

func TestFailureInjection(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	store.FailNext(remote.ErrRateLimited)
	err := store.Set(ctx, "products", "1", doc{ID: 1}, false)
	assert.ErrorIs(t, err, remote.ErrRateLimited)

	// Next call succeeds again
	assert.NoError(t, store.Set(ctx, "products", "1", doc{ID: 1}, false))

	store.SetError(remote.ErrUnavailable)
	_, err = store.Query(ctx, "products", remote.Query{})
	assert.ErrorIs(t, err, remote.ErrUnavailable)
	store.SetError(nil)
	_, err = store.Query(ctx, "products", remote.Query{})
	assert.NoError(t, err)
}

func TestBatchCommit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	writes := []remote.Write{
		{Kind: remote.WriteSet, Collection: "categories", ID: "1", Doc: doc{ID: 1, Name: "All"}},
		{Kind: remote.WriteSet, Collection: "categories", ID: "2", Doc: doc{ID: 2, Name: "Drinks"}},
		{Kind: remote.WriteDelete, Collection: "categories", ID: "99"},
	}
	require.NoError(t, store.BatchCommit(ctx, writes))
	assert.Equal(t, 2, store.Len("categories"))
}
