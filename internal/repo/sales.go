package repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/sp24/pos/internal/models"
)

// Sales is the typed repository over the sales collection. Sales are
// append-only; the live remote view is a bounded recency window managed
// by ReplaceRecent.
type Sales struct {
	s *Store
}

// Add completes a checkout: validates the sale, assigns identity,
// decrements stock of every referenced product, persists locally and
// schedules the remote writes (the sale document plus a stock writeback
// per touched product).
//
// A line whose product cannot be resolved skips the stock decrement but
// the sale is still recorded. That mismatch is a reporting concern, not
// a transactional one, and is logged as the audit signal.
func (sl Sales) Add(ctx context.Context, sale models.Sale) (models.Sale, error) {
	if err := sl.s.validate.Struct(sale); err != nil {
		return models.Sale{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	sl.s.mu.Lock()
	now := sl.s.now()
	sale.ID = sl.s.clock.NextID()
	if sale.Timestamp.IsZero() {
		sale.Timestamp = now
	}
	sale.LastUpdated = now

	// Resolve member info onto the sale for receipts and history
	var earnedMember *models.Member
	if sale.MemberID != 0 {
		for i := range sl.s.snap.Members {
			if sl.s.snap.Members[i].ID == sale.MemberID {
				sale.MemberName = sl.s.snap.Members[i].Name
				if sale.CustomerName == "" {
					sale.CustomerName = sl.s.snap.Members[i].Name
				}
				earnedMember = &sl.s.snap.Members[i]
				break
			}
		}
	}
	if sale.CustomerName == "" {
		sale.CustomerName = "Walk-in"
	}

	sl.s.snap.Sales = append(sl.s.snap.Sales, sale)

	// Stock decrement is part of the same logical operation
	touched := make([]models.Product, 0, len(sale.Items))
	for _, item := range sale.Items {
		idx := -1
		for i := range sl.s.snap.Products {
			if sl.s.snap.Products[i].ID == item.ProductID {
				idx = i
				break
			}
		}
		if idx < 0 {
			sl.s.logger.Warn("sale references unknown product, stock not adjusted",
				"sale_id", sale.ID, "product_id", item.ProductID)
			continue
		}
		sl.s.snap.Products[idx].Stock -= item.Quantity
		sl.s.snap.Products[idx].LastUpdated = now
		touched = append(touched, sl.s.snap.Products[idx])
	}

	// Loyalty points accrue at one point per PointRate of the total
	var memberUpdate *models.Member
	if earnedMember != nil && sl.s.snap.Settings.PointRate > 0 {
		earnedMember.Points += sale.Total.IntPart() / sl.s.snap.Settings.PointRate
		earnedMember.LastUpdated = now
		cp := *earnedMember
		memberUpdate = &cp
	}

	sl.s.persistLocked(ctx)
	sl.s.mu.Unlock()

	sl.s.outbox.EnqueueSet(models.CollectionSales, docID(sale.ID), sale, false)
	for _, prod := range touched {
		sl.s.outbox.EnqueueSet(models.CollectionProducts, docID(prod.ID),
			stockPatch{Stock: prod.Stock, LastUpdated: prod.LastUpdated}, true)
	}
	if memberUpdate != nil {
		sl.s.outbox.EnqueueSet(models.CollectionMembers, docID(memberUpdate.ID),
			pointsPatch{Points: memberUpdate.Points, LastUpdated: memberUpdate.LastUpdated}, true)
	}

	sl.s.logger.Info("sale recorded", "id", sale.ID, "items", len(sale.Items), "total", sale.Total)

	return sale, nil
}

// Get returns the sale with the given id.
func (sl Sales) Get(id int64) (models.Sale, bool) {
	sl.s.mu.Lock()
	defer sl.s.mu.Unlock()

	for _, sale := range sl.s.snap.Sales {
		if sale.ID == id {
			return sale, true
		}
	}
	return models.Sale{}, false
}

// List returns all locally known sales, oldest first.
func (sl Sales) List() []models.Sale {
	sl.s.mu.Lock()
	defer sl.s.mu.Unlock()
	return append([]models.Sale(nil), sl.s.snap.Sales...)
}

// ReplaceRecent replaces the whole local view of recent sales with the
// remote window. The windowed query's membership itself shifts, so an
// incremental merge cannot be applied; the reconciler hands over the
// full batch. Sales are stored oldest first.
func (sl Sales) ReplaceRecent(ctx context.Context, sales []models.Sale) {
	sort.Slice(sales, func(i, j int) bool {
		return sales[i].Timestamp.Before(sales[j].Timestamp)
	})

	sl.s.mu.Lock()
	defer sl.s.mu.Unlock()
	sl.s.snap.Sales = sales
	sl.s.persistLocked(ctx)
}
