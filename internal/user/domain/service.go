package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user_not_found")
	// ErrOnboardingIncomplete is a precondition failure, not a system
	// failure: the user has not finished verified identity linking.
	ErrOnboardingIncomplete = errors.New("onboarding_incomplete")
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	GetByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]User, error)
}

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	// RequireProvisionable enforces the onboarding gate and returns the
	// verified TradingView username.
	RequireProvisionable(ctx context.Context, id snowflake.ID) (*User, string, error)
	GetByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]User, error)
}
