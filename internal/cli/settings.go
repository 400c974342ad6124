package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/session"
)

// RunSettings without arguments prints the store settings; with a key
// and value it changes one setting and schedules the remote sync.
func RunSettings(ctx context.Context, args []string, s *session.Session) error {
	if len(args) == 0 {
		return runSettingsShow(s)
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: pos settings <key> <value>")
	}
	return runSettingsSet(ctx, args[0], args[1], s)
}

func runSettingsShow(s *session.Session) error {
	settings := s.Store().Settings()

	fmt.Println("=== Store Settings ===")
	fmt.Println()
	fmt.Printf("Store name:      %s\n", settings.StoreName)
	if settings.StoreAddress != "" {
		fmt.Printf("Address:         %s\n", settings.StoreAddress)
	}
	if settings.StorePhone != "" {
		fmt.Printf("Phone:           %s\n", settings.StorePhone)
	}
	fmt.Printf("Currency:        %s\n", settings.Currency)
	fmt.Printf("Tax:             %d%%\n", settings.TaxPercent)
	fmt.Printf("Member discount: %d%%\n", settings.MemberDiscount)
	fmt.Printf("Point rate:      1 point per %d spent\n", settings.PointRate)
	fmt.Printf("Auto lock:       %d minute(s)\n", settings.AutoLockMinutes)
	if settings.PINHash != "" {
		fmt.Println("Lock PIN:        set")
	} else {
		fmt.Println("Lock PIN:        not set")
	}
	return nil
}

func runSettingsSet(ctx context.Context, key, value string, s *session.Session) error {
	update := func(fn func(*models.Settings)) {
		s.Store().UpdateSettings(ctx, fn)
	}

	switch key {
	case "name":
		update(func(st *models.Settings) { st.StoreName = value })
	case "address":
		update(func(st *models.Settings) { st.StoreAddress = value })
	case "phone":
		update(func(st *models.Settings) { st.StorePhone = value })
	case "currency":
		update(func(st *models.Settings) { st.Currency = value })
	case "tax", "member-discount", "point-rate", "autolock":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value %q for %s", value, key)
		}
		update(func(st *models.Settings) {
			switch key {
			case "tax":
				st.TaxPercent = n
			case "member-discount":
				st.MemberDiscount = n
			case "point-rate":
				st.PointRate = n
			case "autolock":
				st.AutoLockMinutes = int(n)
			}
		})
	default:
		return fmt.Errorf("unknown setting %q. Use: name, address, phone, currency, tax, member-discount, point-rate, or autolock", key)
	}

	fmt.Printf("Updated %s\n", key)
	return nil
}
