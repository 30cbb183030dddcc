package ingestion

import (
	"errors"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// FileResult is the outcome of one file in a multi-file import
type FileResult struct {
	Path    string
	Summary *Summary
	Err     error
}

// Report aggregates a multi-file import
type Report struct {
	Files    []FileResult
	Imported int64
	Failed   int64
	// Skipped lists files never attempted because an earlier file hit a storage fault
	Skipped  []string
	Duration time.Duration
}

// HasErrors reports whether any file failed at source or storage level
func (r *Report) HasErrors() bool {
	if len(r.Skipped) > 0 {
		return true
	}
	for _, f := range r.Files {
		if f.Err != nil {
			return true
		}
	}
	return false
}

// Coordinator runs an Importer over a list of files, one at a time
type Coordinator struct {
	importer *Importer
	logger   *pterm.Logger
	mu       sync.Mutex
}

// NewCoordinator creates a new ingestion coordinator
func NewCoordinator(importer *Importer, logger *pterm.Logger) *Coordinator {
	return &Coordinator{
		importer: importer,
		logger:   logger,
	}
}

// ImportFiles imports paths in order. A SourceError moves on to the next file;
// a StorageError stops the run since later files would hit the same store.
// Concurrent calls are serialized.
func (c *Coordinator) ImportFiles(paths []string) *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	report := &Report{Files: make([]FileResult, 0, len(paths))}

	c.logger.Info("Starting import of log files", c.logger.Args("files", len(paths)))

	for i, path := range paths {
		summary, err := c.importer.ImportFile(path)
		report.Files = append(report.Files, FileResult{Path: path, Summary: summary, Err: err})
		if summary != nil {
			report.Imported += summary.Imported
			report.Failed += summary.Failed
		}

		var storageErr *StorageError
		var sourceErr *SourceError
		switch {
		case err == nil:
		case errors.As(err, &storageErr):
			report.Skipped = append(report.Skipped, paths[i+1:]...)
			c.logger.WithCaller().Error("Storage fault, stopping import",
				c.logger.Args("source", path, "skipped_files", len(report.Skipped), "error", err))
			report.Duration = time.Since(start)
			return report
		case errors.As(err, &sourceErr):
			c.logger.Warn("Skipping unreadable log file", c.logger.Args("source", path, "error", err))
		default:
			c.logger.Warn("Import of log file failed", c.logger.Args("source", path, "error", err))
		}
	}

	report.Duration = time.Since(start)
	c.logger.Info("All log files processed",
		c.logger.Args(
			"files", len(paths),
			"imported", report.Imported,
			"failed", report.Failed,
			"elapsed", report.Duration.Round(time.Millisecond).String(),
		))
	return report
}
