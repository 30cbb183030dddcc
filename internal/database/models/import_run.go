package models

import (
	"time"
)

// Import run states
const (
	ImportRunning   = "running"
	ImportCompleted = "completed"
	ImportAborted   = "aborted"
)

// ImportRun records one import of one source. Requests do not reference it.
type ImportRun struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Source     string    `gorm:"not null;index:idx_import_runs_source"`
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt *time.Time
	Imported   int64
	Failed     int64
	Batches    int
	Status     string `gorm:"not null;size:16"`
	Error      string `gorm:"type:text"`
}

func (ImportRun) TableName() string {
	return "import_runs"
}
