package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/session"
)

func RunMembers(ctx context.Context, args []string, s *session.Session) error {
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand. Usage: pos members <list|add|delete>")
	}

	switch args[0] {
	case "list":
		return runMembersList(s)
	case "add":
		return runMembersAdd(ctx, args[1:], s)
	case "delete":
		return runMembersDelete(ctx, args[1:], s)
	default:
		return fmt.Errorf("unknown subcommand: %s. Use: list, add, or delete", args[0])
	}
}

func runMembersList(s *session.Session) error {
	members := s.Store().Members().List()
	if len(members) == 0 {
		fmt.Println("No members registered.")
		return nil
	}

	fmt.Printf("Found %d member(s):\n", len(members))
	fmt.Println()
	for _, m := range members {
		fmt.Printf("%d  %s\n", m.ID, m.Name)
		if m.Phone != "" {
			fmt.Printf("   Phone: %s\n", m.Phone)
		}
		fmt.Printf("   Points: %d\n", m.Points)
		fmt.Println()
	}
	return nil
}

func runMembersAdd(ctx context.Context, args []string, s *session.Session) error {
	fs := flag.NewFlagSet("members add", flag.ContinueOnError)
	name := fs.String("name", "", "Member name (required)")
	phone := fs.String("phone", "", "Phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	member, err := s.Store().Members().Add(ctx, models.Member{
		Name:  *name,
		Phone: *phone,
	})
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	fmt.Printf("Registered member %d: %s\n", member.ID, member.Name)
	return nil
}

func runMembersDelete(ctx context.Context, args []string, s *session.Session) error {
	if len(args) == 0 {
		return fmt.Errorf("missing member id. Usage: pos members delete <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid member id %q", args[0])
	}

	if err := s.Store().Members().Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	fmt.Printf("Deleted member %d\n", id)
	return nil
}
