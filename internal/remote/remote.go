// Package remote defines the contract the sync engine requires from the
// authoritative document store. Every Store instance is already scoped
// to one tenant; implementations own the wire protocol.
package remote

import (
	"context"
	"encoding/json"
)

// Document is one stored record as the remote sees it.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// EventType classifies a change-feed notification.
type EventType string

const (
	EventAdded    EventType = "added"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

// Event is one change-feed notification for a collection. Events for the
// same collection are delivered in remote timeline order.
type Event struct {
	Type EventType
	Doc  Document
}

// Query selects and orders documents of a collection.
type Query struct {
	OrderBy string
	Desc    bool
	Limit   int
}

// WriteKind is the operation kind inside a batch commit.
type WriteKind string

const (
	WriteSet    WriteKind = "set"
	WriteDelete WriteKind = "delete"
)

// Write is one element of a batch commit.
type Write struct {
	Kind       WriteKind
	Collection string
	ID         string
	Doc        any
	Merge      bool
}

// Subscription is a live per-document change feed for one collection.
// The Events channel is closed on Unsubscribe or on a transport error;
// in the error case Err reports the cause.
type Subscription interface {
	Events() <-chan Event
	Err() error
	Unsubscribe()
}

// QuerySubscription is a live windowed feed: each delivery is the full
// current result of the query, not a delta. Used for collections whose
// window membership itself shifts (recent sales).
type QuerySubscription interface {
	Snapshots() <-chan []Document
	Err() error
	Unsubscribe()
}

// Store is a tenant-scoped collection store. All operations may fail
// with ErrRateLimited when the backend throttles, or ErrUnavailable for
// any other transport failure.
type Store interface {
	// Get fetches one document. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Set creates or overwrites a document. With merge, top-level fields
	// of doc are merged into the existing document instead.
	Set(ctx context.Context, collection, id string, doc any, merge bool) error

	// Delete removes a document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, collection, id string) error

	// BatchCommit applies a list of writes atomically.
	BatchCommit(ctx context.Context, writes []Write) error

	// Query returns the documents of a collection selected by q.
	Query(ctx context.Context, collection string, q Query) ([]Document, error)

	// Subscribe opens a per-document change feed for a collection.
	Subscribe(ctx context.Context, collection string) (Subscription, error)

	// SubscribeQuery opens a windowed feed delivering the full query
	// result on every change to it.
	SubscribeQuery(ctx context.Context, collection string, q Query) (QuerySubscription, error)
}
