package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListRequest struct {
	Tier   *Tier
	Status *Status
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Indicator, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Indicator, error)
	ListActiveByTier(ctx context.Context, db *gorm.DB, tier Tier) ([]Indicator, error)
	ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Indicator, error)
	ListByExternalKeys(ctx context.Context, db *gorm.DB, keys []string) ([]Indicator, error)
}
