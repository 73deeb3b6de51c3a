package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/chartschool/chartschool/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, tradingview_username, onboarding_completed, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) GetByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]domain.User, error) {
	out := make(map[snowflake.ID]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id IN ?", ids).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}
