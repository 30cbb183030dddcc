package database

import (
	"fmt"

	"ezvis/internal/database/models"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// EnsureSchema creates the requests table, the import_runs table and their indexes.
// It is idempotent and never drops or rewrites existing data.
func EnsureSchema(db *gorm.DB, logger *pterm.Logger) error {
	logger.Trace("Running database migrations.")
	if err := db.AutoMigrate(&models.Request{}, &models.ImportRun{}); err != nil {
		logger.WithCaller().Error("Failed to run database migrations.", logger.Args("error", err))
		return fmt.Errorf("migrating schema: %w", err)
	}

	// Verify WAL mode is enabled (debug level - only show if there's a problem)
	var journalMode string
	if err := db.Raw("PRAGMA journal_mode").Scan(&journalMode).Error; err != nil {
		logger.Warn("Failed to check journal mode", logger.Args("error", err))
	} else if journalMode != "wal" {
		logger.Warn("Database not in WAL mode", logger.Args("mode", journalMode))
	} else {
		logger.Trace("Database journal mode verified", logger.Args("mode", journalMode))
	}

	// The single-column ts/host/status/country indexes come from the model tags
	indexes := []string{
		// Time + Host (top_hosts over a range)
		`CREATE INDEX IF NOT EXISTS idx_requests_ts_host
		 ON requests(ts, host)`,

		// Time + Status (status_codes over a range)
		`CREATE INDEX IF NOT EXISTS idx_requests_ts_status
		 ON requests(ts, status)`,

		// Time + Path (top_paths over a range)
		`CREATE INDEX IF NOT EXISTS idx_requests_ts_path
		 ON requests(ts, path)`,

		// Errors only (error_analysis)
		`CREATE INDEX IF NOT EXISTS idx_requests_errors
		 ON requests(host, status, ts)
		 WHERE status >= 400`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			logger.Warn("Failed to create index", logger.Args("error", err))
			return fmt.Errorf("creating index: %w", err)
		}
	}
	logger.Debug("Performance indexes verified", logger.Args("count", len(indexes)))

	// Analyze tables for query optimizer (only log if it fails)
	if err := db.Exec("ANALYZE").Error; err != nil {
		logger.Warn("Failed to analyze database", logger.Args("error", err))
	}

	logger.Debug("Schema ready")
	return nil
}
