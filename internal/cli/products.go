package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/session"
)

func RunProducts(ctx context.Context, args []string, s *session.Session) error {
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand. Usage: pos products <list|add|delete|restock>")
	}

	switch args[0] {
	case "list":
		return runProductsList(s)
	case "add":
		return runProductsAdd(ctx, args[1:], s)
	case "delete":
		return runProductsDelete(ctx, args[1:], s)
	case "restock":
		return runProductsRestock(ctx, args[1:], s)
	default:
		return fmt.Errorf("unknown subcommand: %s. Use: list, add, delete, or restock", args[0])
	}
}

func runProductsList(s *session.Session) error {
	products := s.Store().Products().List()
	if len(products) == 0 {
		fmt.Println("No products found.")
		fmt.Println()
		fmt.Println("Use 'pos products add' to add your first product.")
		return nil
	}

	currency := s.Store().Settings().Currency
	fmt.Printf("Found %d product(s):\n", len(products))
	fmt.Println()
	for _, p := range products {
		fmt.Printf("%d  %s\n", p.ID, p.Name)
		fmt.Printf("   Price: %s %s\n", p.Price.StringFixed(2), currency)
		fmt.Printf("   Stock: %d\n", p.Stock)
		if p.Barcode != "" {
			fmt.Printf("   Barcode: %s\n", p.Barcode)
		}
		fmt.Println()
	}
	return nil
}

func runProductsAdd(ctx context.Context, args []string, s *session.Session) error {
	fs := flag.NewFlagSet("products add", flag.ContinueOnError)
	name := fs.String("name", "", "Product name (required)")
	price := fs.String("price", "0", "Unit price")
	stock := fs.Int64("stock", 0, "Initial stock")
	category := fs.Int64("category", 0, "Category id")
	barcode := fs.String("barcode", "", "Barcode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	unitPrice, err := decimal.NewFromString(*price)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", *price, err)
	}

	product, err := s.Store().Products().Add(ctx, models.Product{
		Name:       *name,
		Price:      unitPrice,
		Stock:      *stock,
		CategoryID: *category,
		Barcode:    *barcode,
	})
	if err != nil {
		return fmt.Errorf("failed to add product: %w", err)
	}

	fmt.Printf("Added product %d: %s\n", product.ID, product.Name)
	return nil
}

func runProductsDelete(ctx context.Context, args []string, s *session.Session) error {
	if len(args) == 0 {
		return fmt.Errorf("missing product id. Usage: pos products delete <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid product id %q", args[0])
	}

	if err := s.Store().Products().Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	fmt.Printf("Deleted product %d\n", id)
	return nil
}

func runProductsRestock(ctx context.Context, args []string, s *session.Session) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pos products restock <id> <quantity>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid product id %q", args[0])
	}
	qty, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || qty <= 0 {
		return fmt.Errorf("invalid quantity %q", args[1])
	}

	current, ok := s.Store().Products().Get(id)
	if !ok {
		return fmt.Errorf("product %d not found", id)
	}
	newStock := current.Stock + qty
	product, err := s.Store().Products().Update(ctx, id, models.ProductPatch{Stock: &newStock})
	if err != nil {
		return fmt.Errorf("failed to restock product: %w", err)
	}

	fmt.Printf("Product %d (%s) stock is now %d\n", product.ID, product.Name, product.Stock)
	return nil
}
