package cli

import (
	"context"
	"fmt"

	"github.com/sp24/pos/internal/session"
)

// RunSetPIN sets or clears the idle-lock PIN for the store.
func RunSetPIN(ctx context.Context, s *session.Session) error {
	pin, err := readPassword("New PIN (empty to disable lock): ")
	if err != nil {
		return fmt.Errorf("failed to read pin: %w", err)
	}

	if pin != "" {
		confirm, err := readPassword("Confirm PIN: ")
		if err != nil {
			return fmt.Errorf("failed to read pin: %w", err)
		}
		if pin != confirm {
			return fmt.Errorf("pins do not match")
		}
	}

	if err := s.SetPIN(ctx, pin); err != nil {
		return err
	}
	if pin == "" {
		fmt.Println("Idle lock disabled.")
	} else {
		fmt.Println("PIN updated.")
	}
	return nil
}

// Unlock prompts for the PIN until the session unlocks, up to three
// attempts.
func Unlock(s *session.Session) error {
	for attempt := 0; attempt < 3; attempt++ {
		pin, err := readPassword("PIN: ")
		if err != nil {
			return fmt.Errorf("failed to read pin: %w", err)
		}
		if err := s.Unlock(pin); err == nil {
			return nil
		}
		fmt.Println("Wrong PIN.")
	}
	return session.ErrLocked
}
