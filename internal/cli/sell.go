package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/repo"
	"github.com/sp24/pos/internal/session"
)

// RunSell records a checkout. Line items are passed as <productID>:<qty>
// arguments; totals are computed from the current price list and the
// store's tax and member discount settings.
func RunSell(ctx context.Context, args []string, s *session.Session) error {
	fs := flag.NewFlagSet("sell", flag.ContinueOnError)
	memberID := fs.Int64("member", 0, "Member id earning points and discount")
	customer := fs.String("customer", "", "Customer name for the receipt")
	cashier := fs.String("cashier", "", "Cashier name")
	payment := fs.String("payment", "cash", "Payment method")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no line items. Usage: pos sell [flags] <productID>:<qty> ...")
	}

	store := s.Store()
	items := make([]models.SaleItem, 0, fs.NArg())
	subtotal := decimal.Zero
	for _, arg := range fs.Args() {
		item, err := parseLineItem(arg, store)
		if err != nil {
			return err
		}
		items = append(items, item)
		subtotal = subtotal.Add(item.Total())
	}

	settings := store.Settings()
	discount := decimal.Zero
	if *memberID != 0 && settings.MemberDiscount > 0 {
		discount = subtotal.Mul(decimal.NewFromInt(settings.MemberDiscount)).Div(decimal.NewFromInt(100))
	}
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(decimal.NewFromInt(settings.TaxPercent)).Div(decimal.NewFromInt(100))
	total := taxable.Add(tax)

	sale, err := store.Sales().Add(ctx, models.Sale{
		Items:        items,
		MemberID:     *memberID,
		CustomerName: *customer,
		Cashier:      *cashier,
		Subtotal:     subtotal,
		Discount:     discount,
		Tax:          tax,
		Total:        total,
		Payment:      *payment,
	})
	if err != nil {
		return fmt.Errorf("failed to record sale: %w", err)
	}

	fmt.Printf("Sale %d recorded\n", sale.ID)
	fmt.Printf("  Customer: %s\n", sale.CustomerName)
	fmt.Printf("  Subtotal: %s\n", sale.Subtotal.StringFixed(2))
	if sale.Discount.IsPositive() {
		fmt.Printf("  Discount: -%s\n", sale.Discount.StringFixed(2))
	}
	fmt.Printf("  Tax:      %s\n", sale.Tax.StringFixed(2))
	fmt.Printf("  Total:    %s %s\n", sale.Total.StringFixed(2), settings.Currency)
	return nil
}

func parseLineItem(arg string, store *repo.Store) (models.SaleItem, error) {
	idStr, qtyStr, ok := strings.Cut(arg, ":")
	if !ok {
		return models.SaleItem{}, fmt.Errorf("invalid line item %q, expected <productID>:<qty>", arg)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return models.SaleItem{}, fmt.Errorf("invalid product id %q", idStr)
	}
	qty, err := strconv.ParseInt(qtyStr, 10, 64)
	if err != nil || qty <= 0 {
		return models.SaleItem{}, fmt.Errorf("invalid quantity %q", qtyStr)
	}

	product, ok := store.Products().Get(id)
	if !ok {
		return models.SaleItem{}, fmt.Errorf("product %d not found", id)
	}
	if product.Stock < qty {
		fmt.Printf("Warning: %s has only %d in stock\n", product.Name, product.Stock)
	}
	return models.SaleItem{
		ProductID: product.ID,
		Name:      product.Name,
		Quantity:  qty,
		Price:     product.Price,
	}, nil
}
