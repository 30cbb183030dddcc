package repositories

import (
	"ezvis/internal/database/models"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// SQLite caps bound variables at 32766; a request row binds 17 columns
const (
	maxSQLiteVariables = 32766
	columnsPerRequest  = 17
	maxRowsPerInsert   = maxSQLiteVariables / columnsPerRequest
)

// RequestRepository is the write side of the requests table
type RequestRepository interface {
	AppendBatch(rows []*models.Request) error
	Count() (int64, error)
}

type requestRepo struct {
	db     *gorm.DB
	logger *pterm.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *gorm.DB, logger *pterm.Logger) RequestRepository {
	return &requestRepo{
		db:     db,
		logger: logger,
	}
}

// AppendBatch inserts rows in a single transaction. Large batches are split into
// several INSERT statements inside that transaction, so either every row becomes
// visible or none does.
func (r *requestRepo) AppendBatch(rows []*models.Request) error {
	if len(rows) == 0 {
		r.logger.Debug("Empty batch, skipping insert")
		return nil
	}

	tx := r.db.Begin()
	if tx.Error != nil {
		r.logger.WithCaller().Error("Failed to begin transaction", r.logger.Args("error", tx.Error))
		return tx.Error
	}

	if err := tx.CreateInBatches(rows, maxRowsPerInsert).Error; err != nil {
		tx.Rollback()
		r.logger.WithCaller().Error("Failed to insert batch",
			r.logger.Args("count", len(rows), "error", err))
		return err
	}

	if err := tx.Commit().Error; err != nil {
		r.logger.WithCaller().Error("Failed to commit transaction", r.logger.Args("error", err))
		return err
	}

	r.logger.Trace("Inserted batch", r.logger.Args("count", len(rows)))
	return nil
}

// Count returns the total number of stored requests
func (r *requestRepo) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.Request{}).Count(&count).Error; err != nil {
		r.logger.WithCaller().Error("Failed to count requests", r.logger.Args("error", err))
		return 0, err
	}
	return count, nil
}
