package repo

import (
	"context"
	"fmt"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/remote"
)

// Products is the typed repository over the products collection.
type Products struct {
	s *Store
}

// Add validates the product, assigns a fresh id, persists locally and
// schedules the remote create. The record stays in local state even if
// remote delivery later fails.
func (p Products) Add(ctx context.Context, product models.Product) (models.Product, error) {
	if err := p.s.validate.Struct(product); err != nil {
		return models.Product{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	p.s.mu.Lock()
	product.ID = p.s.clock.NextID()
	product.LastUpdated = p.s.now()
	p.s.snap.Products = append(p.s.snap.Products, product)
	p.s.persistLocked(ctx)
	p.s.mu.Unlock()

	p.s.outbox.EnqueueSet(models.CollectionProducts, docID(product.ID), product, false)
	p.s.logger.Info("product added", "id", product.ID, "name", product.Name)

	return product, nil
}

// Get returns the product with the given id.
func (p Products) Get(id int64) (models.Product, bool) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	for _, prod := range p.s.snap.Products {
		if prod.ID == id {
			return prod, true
		}
	}
	return models.Product{}, false
}

// List returns all products.
func (p Products) List() []models.Product {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return append([]models.Product(nil), p.s.snap.Products...)
}

// Update merges the patch into the product. The new value is computed
// and validated before anything is committed, so a rejected patch leaves
// the state untouched. Returns ErrNotFound for an unknown id.
func (p Products) Update(ctx context.Context, id int64, patch models.ProductPatch) (models.Product, error) {
	p.s.mu.Lock()

	idx := -1
	for i := range p.s.snap.Products {
		if p.s.snap.Products[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.s.mu.Unlock()
		return models.Product{}, ErrNotFound
	}

	updated := p.s.snap.Products[idx]
	updated.Apply(patch, p.s.now())
	if err := p.s.validate.Struct(updated); err != nil {
		p.s.mu.Unlock()
		return models.Product{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	p.s.snap.Products[idx] = updated
	p.s.persistLocked(ctx)
	p.s.mu.Unlock()

	p.s.outbox.EnqueueSet(models.CollectionProducts, docID(id), updated, false)

	return updated, nil
}

// Remove deletes the product locally and schedules the remote delete.
func (p Products) Remove(ctx context.Context, id int64) error {
	p.s.mu.Lock()

	idx := -1
	for i := range p.s.snap.Products {
		if p.s.snap.Products[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.s.mu.Unlock()
		return ErrNotFound
	}

	p.s.snap.Products = append(p.s.snap.Products[:idx], p.s.snap.Products[idx+1:]...)
	p.s.persistLocked(ctx)
	p.s.mu.Unlock()

	p.s.outbox.EnqueueDelete(models.CollectionProducts, docID(id))

	return nil
}

// ApplyChange merges one change-feed event. Used only by the
// reconciler; idempotent with respect to redelivery.
func (p Products) ApplyChange(ctx context.Context, kind remote.EventType, product models.Product) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	idx := -1
	for i := range p.s.snap.Products {
		if p.s.snap.Products[i].ID == product.ID {
			idx = i
			break
		}
	}

	switch kind {
	case remote.EventAdded:
		// A local create echoing back keeps the local copy
		if idx < 0 {
			p.s.snap.Products = append(p.s.snap.Products, product)
		}
	case remote.EventModified:
		if idx >= 0 {
			p.s.snap.Products[idx] = product
		}
	case remote.EventRemoved:
		if idx >= 0 {
			p.s.snap.Products = append(p.s.snap.Products[:idx], p.s.snap.Products[idx+1:]...)
		}
	}

	p.s.persistLocked(ctx)
}
