package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/chartschool/chartschool/internal/entitlement/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert writes the ledger row, last-writer-wins on the (user, indicator)
// pair. Sufficient without distributed locking because batch writers are
// sequential by design and live single grants are rare concurrent events.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, e *domain.Entitlement) error {
	if e == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "indicator_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"duration_code",
				"granted_at",
				"expires_at",
				"source",
				"external_response",
				"error_message",
				"updated_at",
			}),
		}).
		Create(e).Error
}

func (r *repo) FindByPair(ctx context.Context, db *gorm.DB, userID, indicatorID snowflake.ID) (*domain.Entitlement, error) {
	var e domain.Entitlement
	err := db.WithContext(ctx).
		Model(&domain.Entitlement{}).
		Where("user_id = ? AND indicator_id = ?", userID, indicatorID).
		First(&e).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Entitlement, error) {
	var items []domain.Entitlement
	err := db.WithContext(ctx).
		Model(&domain.Entitlement{}).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
