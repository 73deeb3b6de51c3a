package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/chartschool/chartschool/internal/indicator/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("indicator.service"),
		repo: p.Repo,
	}
}

// GetActive returns the indicator only when it exists and is active.
func (s *Service) GetActive(ctx context.Context, id snowflake.ID) (*domain.Indicator, error) {
	ind, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if ind == nil || !ind.Active() {
		return nil, domain.ErrIndicatorUnavailable
	}
	return ind, nil
}

func (s *Service) ListActiveByTier(ctx context.Context, tier domain.Tier) ([]domain.Indicator, error) {
	if !tier.Valid() {
		return nil, domain.ErrInvalidTier
	}
	return s.repo.ListActiveByTier(ctx, s.db, tier)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Indicator, error) {
	return s.repo.List(ctx, s.db, req)
}

func (s *Service) GetByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]domain.Indicator, error) {
	items, err := s.repo.ListByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[snowflake.ID]domain.Indicator, len(items))
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

func (s *Service) GetByExternalKeys(ctx context.Context, keys []string) (map[string]domain.Indicator, error) {
	items, err := s.repo.ListByExternalKeys(ctx, s.db, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Indicator, len(items))
	for _, item := range items {
		out[item.ExternalKey] = item
	}
	return out, nil
}
