// Package main checks the loan ledger once and prints what it finds.
//
// It reads the same configuration as the server. The exit status is 0 for a
// consistent ledger, 1 when discrepancies were found and 2 on failure.
//
// Usage:
//
//	go run ./cmd/ledgeraudit
//	go run ./cmd/ledgeraudit --db-driver badger --data-dir /var/lib/books-manager
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/books-manager/books-manager-server/internal/audit"
	"github.com/books-manager/books-manager-server/internal/config"
	"github.com/books-manager/books-manager-server/internal/di/providers"
	"github.com/books-manager/books-manager-server/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 2
	}

	log := logger.New(logger.Config{
		Writer:      os.Stderr,
		Level:       cfg.Logger.Level,
		Environment: cfg.App.Environment,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := providers.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		log.Error("Failed to open database", "error", err)
		return 2
	}
	defer st.Close()

	report, err := audit.New(st, audit.Options{Logger: log.Logger}).Run(ctx)
	if err != nil {
		log.Error("Audit failed", "error", err)
		return 2
	}

	fmt.Println("=== Ledger Audit ===")
	fmt.Println()
	fmt.Printf("Run:      %s\n", report.RunID)
	fmt.Printf("Started:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration: %s\n", report.Duration)
	fmt.Printf("Books:    %d\n", report.Books)
	fmt.Println()

	if report.Clean() {
		fmt.Println("No discrepancies found.")
		return 0
	}

	fmt.Printf("%d discrepancies:\n", len(report.Discrepancies))
	for _, d := range report.Discrepancies {
		fmt.Printf("  %s\n", d)
	}
	return 1
}
