package reconcile

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, report *Report) error
	Save(ctx context.Context, db *gorm.DB, report *Report) error
	FindByRunID(ctx context.Context, db *gorm.DB, runID string) (*Report, error)
	List(ctx context.Context, db *gorm.DB, limit int) ([]Report, error)
}

type repository struct{}

func ProvideRepository() Repository { return &repository{} }

func (r *repository) Insert(ctx context.Context, db *gorm.DB, report *Report) error {
	return db.WithContext(ctx).Create(report).Error
}

func (r *repository) Save(ctx context.Context, db *gorm.DB, report *Report) error {
	return db.WithContext(ctx).Save(report).Error
}

func (r *repository) FindByRunID(ctx context.Context, db *gorm.DB, runID string) (*Report, error) {
	var report Report
	err := db.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, limit int) ([]Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var reports []Report
	err := db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&reports).Error
	return reports, err
}
