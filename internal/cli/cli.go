// Package cli implements the terminal commands over an open tenant
// session.
package cli

import (
	"fmt"
	"syscall"

	"golang.org/x/term"
)

func PrintUsage() {
	fmt.Println("POS Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pos [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version        Show version information")
	fmt.Println("  --tenant ID      Store (tenant) id, overrides POS_APP_TENANT_ID")
	fmt.Println("  --data DIR       Local data directory (default: current directory)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  products list                List products")
	fmt.Println("  products add [flags]         Add a product")
	fmt.Println("  products delete <id>         Delete a product")
	fmt.Println("  products restock <id> <qty>  Add stock to a product")
	fmt.Println("  sell [flags] <id>:<qty> ...  Record a sale")
	fmt.Println("  sales                        List recent sales")
	fmt.Println("  members list                 List members")
	fmt.Println("  members add [flags]          Register a member")
	fmt.Println("  categories list              List categories")
	fmt.Println("  categories add <name>        Add a category")
	fmt.Println("  settings [key value]         Show or change store settings")
	fmt.Println("  status                       Show synchronization status")
	fmt.Println("  sync                         Push pending writes now")
	fmt.Println("  set-pin                      Set or clear the lock PIN")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  pos --tenant coffee-corner products add --name Latte --price 65 --stock 20")
	fmt.Println("  pos --tenant coffee-corner sell --payment cash 1756700000000:2")
	fmt.Println("  pos --tenant coffee-corner settings tax 7")
}

// readPassword reads a secret without echoing it.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
