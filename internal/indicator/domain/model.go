package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Indicator is a catalog entry for one TradingView script. The external key
// is the pine id the access gateway understands (e.g. "PUB;abc123").
type Indicator struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	ExternalKey string            `gorm:"column:external_key;type:text;not null;uniqueIndex" json:"external_key"`
	Name        string            `gorm:"type:text;not null" json:"name"`
	Tier        Tier              `gorm:"type:text;not null" json:"tier"`
	Status      Status            `gorm:"type:text;not null;default:active" json:"status"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Indicator) TableName() string { return "indicators" }

func (i Indicator) Active() bool { return i.Status == StatusActive }
