package repositories

import (
	"ezvis/internal/database/models"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// ImportRunRepository keeps the provenance log of import invocations
type ImportRunRepository interface {
	Create(run *models.ImportRun) error
	Update(run *models.ImportRun) error
	FindRecent(limit int) ([]*models.ImportRun, error)
}

type importRunRepo struct {
	db     *gorm.DB
	logger *pterm.Logger
}

// NewImportRunRepository creates a new import run repository
func NewImportRunRepository(db *gorm.DB, logger *pterm.Logger) ImportRunRepository {
	return &importRunRepo{db: db, logger: logger}
}

func (r *importRunRepo) Create(run *models.ImportRun) error {
	if err := r.db.Create(run).Error; err != nil {
		r.logger.WithCaller().Error("Failed to create import run", r.logger.Args("source", run.Source, "error", err))
		return err
	}
	return nil
}

func (r *importRunRepo) Update(run *models.ImportRun) error {
	if err := r.db.Save(run).Error; err != nil {
		r.logger.WithCaller().Error("Failed to update import run", r.logger.Args("id", run.ID, "error", err))
		return err
	}
	return nil
}

// FindRecent returns the latest runs, newest first
func (r *importRunRepo) FindRecent(limit int) ([]*models.ImportRun, error) {
	var runs []*models.ImportRun
	query := r.db.Order("started_at DESC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		r.logger.WithCaller().Error("Failed to list import runs", r.logger.Args("error", err))
		return nil, err
	}
	return runs, nil
}
