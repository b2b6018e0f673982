package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iho/commissions/internal/adapter/http/middleware"
	"github.com/iho/commissions/internal/domain"
)

func TestLoadRuleTableDefault(t *testing.T) {
	table, err := loadRuleTable("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !table.IsKnownCode("RD1") {
		t.Fatalf("expected the built-in table to know RD1")
	}
}

func TestLoadRuleTableFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := []byte("rates:\n  RD1: 1500\n  SA1: 3000\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write rule table: %v", err)
	}

	table, err := loadRuleTable(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rate, ok := table.Rate("RD1")
	if !ok || rate.BasisPoints != 1500 {
		t.Fatalf("expected RD1 at 1500bp, got %+v (found=%v)", rate, ok)
	}
}

func TestLoadRuleTableErrors(t *testing.T) {
	if _, err := loadRuleTable(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("rates:\n  OTG: 100\n"), 0o600); err != nil {
		t.Fatalf("write rule table: %v", err)
	}
	if _, err := loadRuleTable(path); !errors.Is(err, domain.ErrInvalidRuleTable) {
		t.Fatalf("expected ErrInvalidRuleTable, got %v", err)
	}
}

func TestCleanupLimitersStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		cleanupLimiters(ctx, middleware.NewRateLimiter(1, 1, nil))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("cleanup loop did not stop after cancellation")
	}
}
