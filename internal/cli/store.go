package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/session"
)

// RunCreateStore initializes the store identity for a fresh tenant. The
// default categories and settings already exist; this names the store
// and schedules the first settings sync.
func RunCreateStore(ctx context.Context, args []string, s *session.Session) error {
	fs := flag.NewFlagSet("create-store", flag.ContinueOnError)
	name := fs.String("name", "", "Store name (required)")
	address := fs.String("address", "", "Store address")
	phone := fs.String("phone", "", "Store phone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("missing store name. Usage: pos create-store --name <name>")
	}

	s.Store().UpdateSettings(ctx, func(settings *models.Settings) {
		settings.StoreName = *name
		settings.StoreAddress = *address
		settings.StorePhone = *phone
	})

	fmt.Printf("Store %q ready (tenant %s)\n", *name, s.TenantID())
	fmt.Printf("Categories: %d, products: %d\n",
		len(s.Store().Categories().List()), len(s.Store().Products().List()))
	return nil
}
