package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cenourinhas/concierge/internal/gifts"
	"github.com/cenourinhas/concierge/internal/guests"
)

// runImportGuests loads a vCard export into the guest list.
func runImportGuests(ctx context.Context, w io.Writer, configPath, file, outputFmt string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configuredLogger(os.Stderr, cfg)

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := guests.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("open guest store: %w", err)
	}

	report, err := store.ImportVCards(ctx, f)
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(w, "Imported %d guests and %d extras from %s\n", report.Guests, report.Extras, file)
	for _, s := range report.Skipped {
		fmt.Fprintf(w, "  skipped: %s\n", s)
	}
	return nil
}

// runImportGifts loads a YAML gift catalog.
func runImportGifts(ctx context.Context, w io.Writer, configPath, file string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configuredLogger(os.Stderr, cfg)

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := gifts.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("open gift store: %w", err)
	}

	n, err := store.ImportYAML(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Imported %d gifts from %s\n", n, file)
	return nil
}
