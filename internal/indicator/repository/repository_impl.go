package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/chartschool/chartschool/internal/indicator/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Indicator, error) {
	var ind domain.Indicator
	err := db.WithContext(ctx).Raw(
		`SELECT id, external_key, name, tier, status, metadata, created_at, updated_at
		 FROM indicators WHERE id = ?`,
		id,
	).Scan(&ind).Error
	if err != nil {
		return nil, err
	}
	if ind.ID == 0 {
		return nil, nil
	}
	return &ind, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Indicator, error) {
	var items []domain.Indicator
	stmt := db.WithContext(ctx).Model(&domain.Indicator{})

	if filter.Tier != nil {
		stmt = stmt.Where("tier = ?", *filter.Tier)
	}
	if filter.Status != nil {
		stmt = stmt.Where("status = ?", *filter.Status)
	}

	if err := stmt.Order("name asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListActiveByTier(ctx context.Context, db *gorm.DB, tier domain.Tier) ([]domain.Indicator, error) {
	var items []domain.Indicator
	err := db.WithContext(ctx).
		Model(&domain.Indicator{}).
		Where("tier = ? AND status = ?", tier, domain.StatusActive).
		Order("name asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Indicator, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Indicator
	err := db.WithContext(ctx).
		Model(&domain.Indicator{}).
		Where("id IN ?", ids).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByExternalKeys(ctx context.Context, db *gorm.DB, keys []string) ([]domain.Indicator, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var items []domain.Indicator
	err := db.WithContext(ctx).
		Model(&domain.Indicator{}).
		Where("external_key IN ?", keys).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
