package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collection names used both for the remote store and for change-feed
// subscriptions. Every collection is implicitly scoped by tenant id.
const (
	CollectionProducts   = "products"
	CollectionCategories = "categories"
	CollectionMembers    = "members"
	CollectionSales      = "sales"
	CollectionSettings   = "settings"
)

// SettingsDocID is the fixed document id holding the tenant's store info
// and settings inside CollectionSettings.
const SettingsDocID = "store"

// ProtectedCategoryID is the sentinel "all items" category. It always
// exists, is synthesized locally if absent remotely and can never be
// deleted.
const ProtectedCategoryID int64 = 1

// Tenant identifies the active store. Exactly one tenant is active per
// running instance; all collections are partitioned by its id.
type Tenant struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Product is one sellable item.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	CategoryID  int64           `json:"categoryId"`
	Barcode     string          `json:"barcode,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Category groups products. The category with ProtectedCategoryID is the
// sentinel "all items" category.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name" validate:"required"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`
	Protected   bool      `json:"protected,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Member is a loyalty-program customer.
type Member struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name" validate:"required"`
	Phone       string    `json:"phone,omitempty"`
	Points      int64     `json:"points"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// SaleItem is one line of a completed sale.
type SaleItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity" validate:"gt=0"`
	Price     decimal.Decimal `json:"price"`
}

// Sale is one completed checkout. Sales are append-only: they are never
// updated after creation, only synchronized.
type Sale struct {
	ID           int64           `json:"id"`
	Items        []SaleItem      `json:"items" validate:"min=1,dive"`
	Timestamp    time.Time       `json:"timestamp"`
	Cashier      string          `json:"cashier,omitempty"`
	CashierID    string          `json:"cashierId,omitempty"`
	MemberID     int64           `json:"memberId,omitempty"`
	MemberName   string          `json:"memberName,omitempty"`
	CustomerName string          `json:"customerName,omitempty"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
	Payment      string          `json:"payment,omitempty"`
	LastUpdated  time.Time       `json:"lastUpdated"`
}

// Total returns the line total (price * quantity).
func (i SaleItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}
