package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/chartschool/chartschool/internal/user/domain"
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
		log:  p.Log.Named("user.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *Service) RequireProvisionable(ctx context.Context, id snowflake.ID) (*domain.User, string, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !u.Provisionable() {
		return nil, "", domain.ErrOnboardingIncomplete
	}
	return u, u.Username(), nil
}

func (s *Service) GetByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]domain.User, error) {
	return s.repo.GetByIDs(ctx, s.db, ids)
}
