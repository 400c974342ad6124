// Package memory implements the remote contract fully in process. It is
// the backend used by tests and by offline runs: documents live in maps,
// change feeds fan out synchronously with each commit, and failures can
// be injected to exercise the engine's degradation paths.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sp24/pos/internal/remote"
)

const eventBuffer = 256

// Store is an in-memory, tenant-scoped document store.
type Store struct {
	collections map[string]map[string]json.RawMessage
	subs        map[string][]*subscription
	querySubs   map[string][]*querySubscription
	nextErrs    []error
	stickyErr   error
	mu          sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]json.RawMessage),
		subs:        make(map[string][]*subscription),
		querySubs:   make(map[string][]*querySubscription),
	}
}

// FailNext makes the next operation return err. Multiple calls queue up.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextErrs = append(s.nextErrs, err)
}

// SetError makes every operation fail with err until reset with nil.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stickyErr = err
}

// Len returns the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

// takeErr must be called with the lock held.
func (s *Store) takeErr() error {
	if s.stickyErr != nil {
		return s.stickyErr
	}
	if len(s.nextErrs) > 0 {
		err := s.nextErrs[0]
		s.nextErrs = s.nextErrs[1:]
		return err
	}
	return nil
}

// Get fetches one document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeErr(); err != nil {
		return remote.Document{}, err
	}

	data, ok := s.collections[collection][id]
	if !ok {
		return remote.Document{}, remote.ErrNotFound
	}

	return remote.Document{ID: id, Data: data}, nil
}

// Set creates or overwrites a document and notifies subscribers.
func (s *Store) Set(ctx context.Context, collection, id string, doc any, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeErr(); err != nil {
		return err
	}

	return s.setLocked(collection, id, doc, merge)
}

func (s *Store) setLocked(collection, id string, doc any, merge bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	col := s.collections[collection]
	if col == nil {
		col = make(map[string]json.RawMessage)
		s.collections[collection] = col
	}

	existing, exists := col[id]
	if merge && exists {
		data, err = mergeTopLevel(existing, data)
		if err != nil {
			return err
		}
	}
	col[id] = data

	eventType := remote.EventAdded
	if exists {
		eventType = remote.EventModified
	}
	s.publishLocked(collection, remote.Event{
		Type: eventType,
		Doc:  remote.Document{ID: id, Data: data},
	})

	return nil
}

// Delete removes a document. Absent documents are a silent no-op.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeErr(); err != nil {
		return err
	}

	return s.deleteLocked(collection, id)
}

func (s *Store) deleteLocked(collection, id string) error {
	col := s.collections[collection]
	data, exists := col[id]
	if !exists {
		return nil
	}
	delete(col, id)

	s.publishLocked(collection, remote.Event{
		Type: remote.EventRemoved,
		Doc:  remote.Document{ID: id, Data: data},
	})

	return nil
}

// BatchCommit applies all writes under one lock acquisition.
func (s *Store) BatchCommit(ctx context.Context, writes []remote.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeErr(); err != nil {
		return err
	}

	for _, w := range writes {
		switch w.Kind {
		case remote.WriteSet:
			if err := s.setLocked(w.Collection, w.ID, w.Doc, w.Merge); err != nil {
				return err
			}
		case remote.WriteDelete:
			if err := s.deleteLocked(w.Collection, w.ID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown write kind: %s", w.Kind)
		}
	}

	return nil
}

// Query returns the documents of a collection ordered and limited by q.
func (s *Store) Query(ctx context.Context, collection string, q remote.Query) ([]remote.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeErr(); err != nil {
		return nil, err
	}

	return s.queryLocked(collection, q), nil
}

func (s *Store) queryLocked(collection string, q remote.Query) []remote.Document {
	col := s.collections[collection]
	docs := make([]remote.Document, 0, len(col))
	for id, data := range col {
		docs = append(docs, remote.Document{ID: id, Data: data})
	}

	if q.OrderBy != "" {
		sort.Slice(docs, func(i, j int) bool {
			if q.Desc {
				return fieldLess(docs[j].Data, docs[i].Data, q.OrderBy)
			}
			return fieldLess(docs[i].Data, docs[j].Data, q.OrderBy)
		})
	} else {
		// Deterministic order for unordered queries
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	return docs
}

// Subscribe opens a per-document change feed.
func (s *Store) Subscribe(ctx context.Context, collection string) (remote.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeErr(); err != nil {
		return nil, err
	}

	sub := &subscription{
		store:      s,
		collection: collection,
		ch:         make(chan remote.Event, eventBuffer),
	}
	s.subs[collection] = append(s.subs[collection], sub)

	return sub, nil
}

// SubscribeQuery opens a windowed feed. The current query result is
// delivered immediately, then again after every change to the window.
func (s *Store) SubscribeQuery(ctx context.Context, collection string, q remote.Query) (remote.QuerySubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeErr(); err != nil {
		return nil, err
	}

	sub := &querySubscription{
		store:      s,
		collection: collection,
		query:      q,
		ch:         make(chan []remote.Document, eventBuffer),
	}
	s.querySubs[collection] = append(s.querySubs[collection], sub)
	sub.send(s.queryLocked(collection, q))

	return sub, nil
}

// publishLocked fans an event out to every live subscription of the
// collection, and refreshes windowed feeds.
func (s *Store) publishLocked(collection string, ev remote.Event) {
	for _, sub := range s.subs[collection] {
		sub.send(ev)
	}
	for _, qsub := range s.querySubs[collection] {
		qsub.send(s.queryLocked(collection, qsub.query))
	}
}

type subscription struct {
	store      *Store
	collection string
	ch         chan remote.Event
	err        error
	closeOnce  sync.Once
}

func (s *subscription) Events() <-chan remote.Event { return s.ch }
func (s *subscription) Err() error                  { return s.err }

func (s *subscription) send(ev remote.Event) {
	select {
	case s.ch <- ev:
	default:
		// Subscriber stopped draining; feed order is preserved for the
		// events that do fit.
	}
}

func (s *subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.store.mu.Lock()
		subs := s.store.subs[s.collection]
		for i, sub := range subs {
			if sub == s {
				s.store.subs[s.collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		s.store.mu.Unlock()
		close(s.ch)
	})
}

type querySubscription struct {
	store      *Store
	collection string
	query      remote.Query
	ch         chan []remote.Document
	err        error
	closeOnce  sync.Once
}

func (s *querySubscription) Snapshots() <-chan []remote.Document { return s.ch }
func (s *querySubscription) Err() error                          { return s.err }

func (s *querySubscription) send(docs []remote.Document) {
	select {
	case s.ch <- docs:
	default:
	}
}

func (s *querySubscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.store.mu.Lock()
		subs := s.store.querySubs[s.collection]
		for i, sub := range subs {
			if sub == s {
				s.store.querySubs[s.collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		s.store.mu.Unlock()
		close(s.ch)
	})
}

// mergeTopLevel overlays the top-level fields of patch onto base.
func mergeTopLevel(base, patch json.RawMessage) (json.RawMessage, error) {
	var baseMap, patchMap map[string]json.RawMessage
	if err := json.Unmarshal(base, &baseMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal existing document: %w", err)
	}
	if err := json.Unmarshal(patch, &patchMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal merge patch: %w", err)
	}
	for k, v := range patchMap {
		baseMap[k] = v
	}
	merged, err := json.Marshal(baseMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merged document: %w", err)
	}
	return merged, nil
}

// fieldLess compares one top-level field of two documents. Numbers
// compare numerically, everything else by string representation.
func fieldLess(a, b json.RawMessage, field string) bool {
	av := extractField(a, field)
	bv := extractField(b, field)

	af, aok := av.(float64)
	bf, bok := bv.(float64)
	if aok && bok {
		return af < bf
	}

	return fmt.Sprint(av) < fmt.Sprint(bv)
}

func extractField(data json.RawMessage, field string) any {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m[field]
}
