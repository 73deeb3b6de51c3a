package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the subset of the account record this core consumes. The
// TradingView username stays nil until the identity-linking step of
// onboarding has been verified.
type User struct {
	ID                  snowflake.ID `gorm:"primaryKey" json:"id"`
	Email               string       `gorm:"type:text;not null" json:"email"`
	TradingViewUsername *string      `gorm:"column:tradingview_username;type:text" json:"tradingview_username,omitempty"`
	OnboardingCompleted bool         `gorm:"not null;default:false" json:"onboarding_completed"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Provisionable reports whether the onboarding gate passes: a verified,
// non-empty TradingView username.
func (u User) Provisionable() bool {
	return u.OnboardingCompleted && u.TradingViewUsername != nil && *u.TradingViewUsername != ""
}

func (u User) Username() string {
	if u.TradingViewUsername == nil {
		return ""
	}
	return *u.TradingViewUsername
}
