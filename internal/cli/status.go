package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sp24/pos/internal/session"
)

// RunStatus prints the synchronization state of the open session.
func RunStatus(s *session.Session) error {
	st := s.Status()

	fmt.Println("=== Synchronization Status ===")
	fmt.Println()
	fmt.Printf("State: %s\n", st.State)
	if !st.LastSync.IsZero() {
		fmt.Printf("Last sync: %s\n", st.LastSync.Format(time.RFC3339))
	}
	if st.LastError != "" {
		fmt.Printf("Last error: %s\n", st.LastError)
	}
	fmt.Println()

	if st.PendingOps > 0 {
		fmt.Printf("Pending: %d write(s) waiting for dispatch\n", st.PendingOps)
		collections := make([]string, 0, len(st.PendingByCollection))
		for name := range st.PendingByCollection {
			collections = append(collections, name)
		}
		sort.Strings(collections)
		for _, name := range collections {
			fmt.Printf("  %s: %d\n", name, st.PendingByCollection[name])
		}
		fmt.Println("Run 'pos sync' to push them now.")
	} else {
		fmt.Println("All local changes delivered.")
	}

	store := s.Store()
	fmt.Println()
	fmt.Printf("Products:   %d\n", len(store.Products().List()))
	fmt.Printf("Categories: %d\n", len(store.Categories().List()))
	fmt.Printf("Members:    %d\n", len(store.Members().List()))
	fmt.Printf("Sales:      %d (recent window)\n", len(store.Sales().List()))
	return nil
}

// RunSync pushes every pending outbound write synchronously.
func RunSync(ctx context.Context, s *session.Session) error {
	pending := s.Status().PendingOps
	if pending == 0 {
		fmt.Println("Nothing to sync.")
		return nil
	}

	fmt.Printf("Pushing %d pending write(s)...\n", pending)
	if err := s.Flush(ctx); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	fmt.Println("Done.")
	return nil
}
