package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
	StatusFailed  Status = "failed"
)

type Source string

const (
	SourceManual         Source = "manual"
	SourcePurchase       Source = "purchase"
	SourceBulk           Source = "bulk"
	SourceReconciliation Source = "reconciliation"
)

func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourcePurchase, SourceBulk, SourceReconciliation:
		return true
	}
	return false
}

// Entitlement is the ledger's unit: one user's right to one indicator.
// Unique on (user_id, indicator_id); re-grants upsert in place.
type Entitlement struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID `gorm:"column:user_id;not null;uniqueIndex:ux_entitlements_user_indicator,priority:1" json:"user_id"`
	IndicatorID snowflake.ID `gorm:"column:indicator_id;not null;uniqueIndex:ux_entitlements_user_indicator,priority:2" json:"indicator_id"`

	Status       Status       `gorm:"type:text;not null" json:"status"`
	DurationCode DurationCode `gorm:"column:duration_code;type:text;not null" json:"duration_code"`
	GrantedAt    *time.Time   `gorm:"column:granted_at" json:"granted_at,omitempty"`
	ExpiresAt    *time.Time   `gorm:"column:expires_at" json:"expires_at,omitempty"`
	Source       Source       `gorm:"type:text;not null" json:"source"`

	// ExternalResponse stores the gateway payload verbatim for forensic
	// replay.
	ExternalResponse datatypes.JSON `gorm:"column:external_response;type:jsonb" json:"external_response,omitempty"`
	ErrorMessage     *string        `gorm:"column:error_message;type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Entitlement) TableName() string { return "entitlements" }

// IsLogicallyExpired reports whether an active entitlement's expiry has
// passed. Expiry is a read-side interpretation: no background job rewrites
// status.
func (e Entitlement) IsLogicallyExpired(now time.Time) bool {
	if e.Status != StatusActive {
		return false
	}
	if e.ExpiresAt == nil {
		return false
	}
	return e.ExpiresAt.Before(now)
}

// CurrentlyActive reports active and not logically expired (nil expiry
// means lifetime).
func (e Entitlement) CurrentlyActive(now time.Time) bool {
	return e.Status == StatusActive && !e.IsLogicallyExpired(now)
}
