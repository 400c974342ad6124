package repo

import (
	"context"
	"fmt"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/remote"
)

// Categories is the typed repository over the categories collection.
// Unlike the other collections, categories use small sequential ids so
// the sentinel id 1 stays stable.
type Categories struct {
	s *Store
}

// Add assigns the next sequential id and persists the category.
func (c Categories) Add(ctx context.Context, category models.Category) (models.Category, error) {
	if err := c.s.validate.Struct(category); err != nil {
		return models.Category{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c.s.mu.Lock()
	var maxID int64
	for _, cat := range c.s.snap.Categories {
		if cat.ID > maxID {
			maxID = cat.ID
		}
	}
	category.ID = maxID + 1
	category.Protected = false
	category.LastUpdated = c.s.now()
	c.s.snap.Categories = append(c.s.snap.Categories, category)
	c.s.persistLocked(ctx)
	c.s.mu.Unlock()

	c.s.outbox.EnqueueSet(models.CollectionCategories, docID(category.ID), category, false)

	return category, nil
}

// Get returns the category with the given id.
func (c Categories) Get(id int64) (models.Category, bool) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	for _, cat := range c.s.snap.Categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return models.Category{}, false
}

// List returns all categories.
func (c Categories) List() []models.Category {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return append([]models.Category(nil), c.s.snap.Categories...)
}

// Update merges the patch into the category.
func (c Categories) Update(ctx context.Context, id int64, patch models.CategoryPatch) (models.Category, error) {
	c.s.mu.Lock()

	idx := -1
	for i := range c.s.snap.Categories {
		if c.s.snap.Categories[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.s.mu.Unlock()
		return models.Category{}, ErrNotFound
	}

	updated := c.s.snap.Categories[idx]
	updated.Apply(patch, c.s.now())
	if err := c.s.validate.Struct(updated); err != nil {
		c.s.mu.Unlock()
		return models.Category{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c.s.snap.Categories[idx] = updated
	c.s.persistLocked(ctx)
	c.s.mu.Unlock()

	c.s.outbox.EnqueueSet(models.CollectionCategories, docID(id), updated, false)

	return updated, nil
}

// Remove deletes a category. The sentinel "all items" category can
// never be removed; the attempt fails with ErrProtectedRecord and
// performs no mutation.
func (c Categories) Remove(ctx context.Context, id int64) error {
	c.s.mu.Lock()

	idx := -1
	for i := range c.s.snap.Categories {
		if c.s.snap.Categories[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.s.mu.Unlock()
		return ErrNotFound
	}
	if id == models.ProtectedCategoryID || c.s.snap.Categories[idx].Protected {
		c.s.mu.Unlock()
		return ErrProtectedRecord
	}

	c.s.snap.Categories = append(c.s.snap.Categories[:idx], c.s.snap.Categories[idx+1:]...)
	c.s.persistLocked(ctx)
	c.s.mu.Unlock()

	c.s.outbox.EnqueueDelete(models.CollectionCategories, docID(id))

	return nil
}

// ApplyChange merges one change-feed event. A remote removal of the
// sentinel category is refused: the protected invariant holds even
// against the remote.
func (c Categories) ApplyChange(ctx context.Context, kind remote.EventType, category models.Category) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	idx := -1
	for i := range c.s.snap.Categories {
		if c.s.snap.Categories[i].ID == category.ID {
			idx = i
			break
		}
	}

	switch kind {
	case remote.EventAdded:
		if idx < 0 {
			c.s.snap.Categories = append(c.s.snap.Categories, category)
		}
	case remote.EventModified:
		if idx >= 0 {
			c.s.snap.Categories[idx] = category
		}
	case remote.EventRemoved:
		if category.ID == models.ProtectedCategoryID {
			c.s.logger.Warn("ignoring remote removal of protected category")
			return
		}
		if idx >= 0 {
			c.s.snap.Categories = append(c.s.snap.Categories[:idx], c.s.snap.Categories[idx+1:]...)
		}
	}

	c.s.persistLocked(ctx)
}
