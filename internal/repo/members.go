package repo

import (
	"context"
	"fmt"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/remote"
)

// Members is the typed repository over the members collection.
type Members struct {
	s *Store
}

// Add registers a new member.
func (m Members) Add(ctx context.Context, member models.Member) (models.Member, error) {
	if err := m.s.validate.Struct(member); err != nil {
		return models.Member{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	m.s.mu.Lock()
	member.ID = m.s.clock.NextID()
	member.LastUpdated = m.s.now()
	m.s.snap.Members = append(m.s.snap.Members, member)
	m.s.persistLocked(ctx)
	m.s.mu.Unlock()

	m.s.outbox.EnqueueSet(models.CollectionMembers, docID(member.ID), member, false)

	return member, nil
}

// Get returns the member with the given id.
func (m Members) Get(id int64) (models.Member, bool) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, mem := range m.s.snap.Members {
		if mem.ID == id {
			return mem, true
		}
	}
	return models.Member{}, false
}

// List returns all members.
func (m Members) List() []models.Member {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]models.Member(nil), m.s.snap.Members...)
}

// Update merges the patch into the member.
func (m Members) Update(ctx context.Context, id int64, patch models.MemberPatch) (models.Member, error) {
	m.s.mu.Lock()

	idx := -1
	for i := range m.s.snap.Members {
		if m.s.snap.Members[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.s.mu.Unlock()
		return models.Member{}, ErrNotFound
	}

	updated := m.s.snap.Members[idx]
	updated.Apply(patch, m.s.now())
	if err := m.s.validate.Struct(updated); err != nil {
		m.s.mu.Unlock()
		return models.Member{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	m.s.snap.Members[idx] = updated
	m.s.persistLocked(ctx)
	m.s.mu.Unlock()

	m.s.outbox.EnqueueSet(models.CollectionMembers, docID(id), updated, false)

	return updated, nil
}

// Remove deletes a member.
func (m Members) Remove(ctx context.Context, id int64) error {
	m.s.mu.Lock()

	idx := -1
	for i := range m.s.snap.Members {
		if m.s.snap.Members[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.s.mu.Unlock()
		return ErrNotFound
	}

	m.s.snap.Members = append(m.s.snap.Members[:idx], m.s.snap.Members[idx+1:]...)
	m.s.persistLocked(ctx)
	m.s.mu.Unlock()

	m.s.outbox.EnqueueDelete(models.CollectionMembers, docID(id))

	return nil
}

// ApplyChange merges one change-feed event.
func (m Members) ApplyChange(ctx context.Context, kind remote.EventType, member models.Member) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	idx := -1
	for i := range m.s.snap.Members {
		if m.s.snap.Members[i].ID == member.ID {
			idx = i
			break
		}
	}

	switch kind {
	case remote.EventAdded:
		if idx < 0 {
			m.s.snap.Members = append(m.s.snap.Members, member)
		}
	case remote.EventModified:
		if idx >= 0 {
			m.s.snap.Members[idx] = member
		}
	case remote.EventRemoved:
		if idx >= 0 {
			m.s.snap.Members = append(m.s.snap.Members[:idx], m.s.snap.Members[idx+1:]...)
		}
	}

	m.s.persistLocked(ctx)
}
