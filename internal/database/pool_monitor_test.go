package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pterm/pterm"
)

func TestPoolMonitor_Stats(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
	db, err := NewConnection(&Config{Path: filepath.Join(t.TempDir(), "pool.db"), MaxOpenConns: 2}, logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer Close(db)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}

	// Hold both connections so the pool is saturated
	ctx := context.Background()
	c1, err := sqlDB.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn failed: %v", err)
	}
	c2, err := sqlDB.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn failed: %v", err)
	}

	pm := NewPoolMonitor(sqlDB, logger, time.Hour, 0.5)
	stats := pm.CurrentStats()
	if stats.MaxOpenConns != 2 || stats.InUse != 2 {
		t.Errorf("Expected 2/2 in use, got %d/%d", stats.InUse, stats.MaxOpenConns)
	}
	if !stats.IsSaturated || stats.Utilization != 1 {
		t.Errorf("Expected saturated pool, got %+v", stats)
	}
	if pm.AlertCount() != 1 {
		t.Errorf("Expected 1 alert, got %d", pm.AlertCount())
	}

	c1.Close()
	c2.Close()

	pm.Start(ctx)
	pm.Stop()
	if got := pm.CurrentStats().InUse; got != 0 {
		t.Errorf("Expected 0 in use after release, got %d", got)
	}
}
