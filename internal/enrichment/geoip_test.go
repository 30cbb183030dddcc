package enrichment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
)

func TestNewGeoIPEnricher_MissingDatabase(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace)

	_, err := NewGeoIPEnricher(filepath.Join(t.TempDir(), "missing.mmdb"), 0, logger)
	if err == nil {
		t.Fatal("Expected error for missing database")
	}
}

func TestNewGeoIPEnricher_InvalidDatabase(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelTrace)

	path := filepath.Join(t.TempDir(), "bad.mmdb")
	if err := os.WriteFile(path, []byte("not a maxmind database"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := NewGeoIPEnricher(path, 0, logger); err == nil {
		t.Fatal("Expected error for invalid database")
	}
}
