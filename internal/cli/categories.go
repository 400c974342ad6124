package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/sp24/pos/internal/models"
	"github.com/sp24/pos/internal/session"
)

func RunCategories(ctx context.Context, args []string, s *session.Session) error {
	if len(args) == 0 {
		return fmt.Errorf("missing subcommand. Usage: pos categories <list|add|delete>")
	}

	switch args[0] {
	case "list":
		return runCategoriesList(s)
	case "add":
		return runCategoriesAdd(ctx, args[1:], s)
	case "delete":
		return runCategoriesDelete(ctx, args[1:], s)
	default:
		return fmt.Errorf("unknown subcommand: %s. Use: list, add, or delete", args[0])
	}
}

func runCategoriesList(s *session.Session) error {
	categories := s.Store().Categories().List()
	fmt.Printf("Found %d categorie(s):\n", len(categories))
	fmt.Println()
	for _, c := range categories {
		marker := ""
		if c.Protected {
			marker = " (protected)"
		}
		fmt.Printf("%d  %s%s\n", c.ID, c.Name, marker)
	}
	return nil
}

func runCategoriesAdd(ctx context.Context, args []string, s *session.Session) error {
	fs := flag.NewFlagSet("categories add", flag.ContinueOnError)
	icon := fs.String("icon", "fa-tag", "Icon name")
	color := fs.String("color", "#6B7280", "Display color")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("missing category name. Usage: pos categories add [flags] <name>")
	}

	category, err := s.Store().Categories().Add(ctx, models.Category{
		Name:  fs.Arg(0),
		Icon:  *icon,
		Color: *color,
	})
	if err != nil {
		return fmt.Errorf("failed to add category: %w", err)
	}

	fmt.Printf("Added category %d: %s\n", category.ID, category.Name)
	return nil
}

func runCategoriesDelete(ctx context.Context, args []string, s *session.Session) error {
	if len(args) == 0 {
		return fmt.Errorf("missing category id. Usage: pos categories delete <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid category id %q", args[0])
	}

	if err := s.Store().Categories().Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	fmt.Printf("Deleted category %d\n", id)
	return nil
}
