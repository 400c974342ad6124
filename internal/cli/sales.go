package cli

import (
	"fmt"
	"time"

	"github.com/sp24/pos/internal/session"
)

// RunSales prints the recent sales window, newest first.
func RunSales(s *session.Session) error {
	sales := s.Store().Sales().List()
	if len(sales) == 0 {
		fmt.Println("No sales recorded yet.")
		return nil
	}

	currency := s.Store().Settings().Currency
	fmt.Printf("Showing %d recent sale(s):\n", len(sales))
	fmt.Println()
	for i := len(sales) - 1; i >= 0; i-- {
		sale := sales[i]
		fmt.Printf("%d  %s\n", sale.ID, sale.Timestamp.Format(time.RFC3339))
		fmt.Printf("   Customer: %s\n", sale.CustomerName)
		for _, item := range sale.Items {
			fmt.Printf("   %dx %s @ %s\n", item.Quantity, item.Name, item.Price.StringFixed(2))
		}
		fmt.Printf("   Total: %s %s (%s)\n", sale.Total.StringFixed(2), currency, sale.Payment)
		fmt.Println()
	}
	return nil
}
