package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Patches whitelist the fields a local edit may change. Applying a patch
// never resurrects fields the caller did not set, which is what an
// untyped map merge would do with a stale copy.

// ProductPatch is a partial update of a Product.
type ProductPatch struct {
	Name       *string
	Price      *decimal.Decimal
	Stock      *int64
	CategoryID *int64
	Barcode    *string
}

// Apply merges the set fields of the patch and bumps LastUpdated.
func (p *Product) Apply(patch ProductPatch, now time.Time) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.CategoryID != nil {
		p.CategoryID = *patch.CategoryID
	}
	if patch.Barcode != nil {
		p.Barcode = *patch.Barcode
	}
	p.LastUpdated = now
}

// CategoryPatch is a partial update of a Category. The Protected flag is
// deliberately not patchable.
type CategoryPatch struct {
	Name  *string
	Icon  *string
	Color *string
}

// Apply merges the set fields of the patch and bumps LastUpdated.
func (c *Category) Apply(patch CategoryPatch, now time.Time) {
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Icon != nil {
		c.Icon = *patch.Icon
	}
	if patch.Color != nil {
		c.Color = *patch.Color
	}
	c.LastUpdated = now
}

// MemberPatch is a partial update of a Member.
type MemberPatch struct {
	Name   *string
	Phone  *string
	Points *int64
}

// Apply merges the set fields of the patch and bumps LastUpdated.
func (m *Member) Apply(patch MemberPatch, now time.Time) {
	if patch.Name != nil {
		m.Name = *patch.Name
	}
	if patch.Phone != nil {
		m.Phone = *patch.Phone
	}
	if patch.Points != nil {
		m.Points = *patch.Points
	}
	m.LastUpdated = now
}
