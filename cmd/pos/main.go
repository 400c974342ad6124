package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sp24/pos/internal/cli"
	"github.com/sp24/pos/internal/config"
	"github.com/sp24/pos/internal/localstore/boltdb"
	"github.com/sp24/pos/internal/remote/memory"
	"github.com/sp24/pos/internal/session"
	possync "github.com/sp24/pos/internal/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	tenantID := flag.String("tenant", "", "Store (tenant) id")
	dataDir := flag.String("data", "", "Local data directory")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	cfg, err := loadConfig(*tenantID, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	ctx := context.Background()

	local, err := boltdb.New(ctx, cfg.App.DBPath(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	// The remote backend is in-process until a hosted document store is
	// wired in; every sync path still runs against it.
	backend := memory.NewStore()

	sess, err := session.Open(ctx, session.Config{
		TenantID: cfg.App.TenantID,
		Local:    local,
		Remote:   backend,
		Logger:   logger,
		Queue: possync.QueueConfig{
			BatchSize:  cfg.Sync.BatchSize,
			BatchDelay: cfg.Sync.BatchDelay,
			Cooldown:   cfg.Sync.Cooldown,
		},
		Coordinator: possync.CoordinatorConfig{
			SalesWindow:      cfg.Sync.SalesWindow,
			AutosaveInterval: cfg.Sync.AutosaveInterval,
		},
		DebounceDelay:     cfg.Sync.DebounceDelay,
		LockCheckInterval: cfg.Lock.CheckInterval,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open session: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := sess.Close(ctx); err != nil {
			slog.Error("failed to close session", "error", err)
		}
	}()

	if sess.Locked() {
		if err := cli.Unlock(sess); err != nil {
			fmt.Fprintln(os.Stderr, "Error: session is locked")
			os.Exit(1)
		}
	}
	sess.Touch()

	if err := runCommand(ctx, command, args[1:], sess); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, command string, args []string, sess *session.Session) error {
	switch command {
	case "create-store":
		return cli.RunCreateStore(ctx, args, sess)
	case "products":
		return cli.RunProducts(ctx, args, sess)
	case "categories":
		return cli.RunCategories(ctx, args, sess)
	case "members":
		return cli.RunMembers(ctx, args, sess)
	case "sell":
		return cli.RunSell(ctx, args, sess)
	case "sales":
		return cli.RunSales(sess)
	case "settings":
		return cli.RunSettings(ctx, args, sess)
	case "status":
		return cli.RunStatus(sess)
	case "sync":
		return cli.RunSync(ctx, sess)
	case "set-pin":
		return cli.RunSetPIN(ctx, sess)
	default:
		cli.PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func loadConfig(tenantID, dataDir string) (*config.Config, error) {
	if tenantID != "" {
		os.Setenv("POS_APP_TENANT_ID", tenantID)
	}
	if dataDir != "" {
		os.Setenv("POS_APP_DATA_DIR", dataDir)
	}
	return config.Load()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func printVersion() {
	fmt.Printf("POS Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
