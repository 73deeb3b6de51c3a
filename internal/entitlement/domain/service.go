package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyActive is the business-rule idempotency guard for single
	// grants. Tier grants skip such keys silently instead.
	ErrAlreadyActive   = errors.New("entitlement_already_active")
	ErrInvalidDuration = errors.New("invalid_duration_code")
	ErrInvalidSource   = errors.New("invalid_source")
	ErrNothingToGrant  = errors.New("no_active_indicators_in_tier")
	ErrActorRequired   = errors.New("actor_required")
	ErrLedgerWrite     = errors.New("ledger_write_failed")
)

type GrantOneRequest struct {
	UserID      snowflake.ID
	IndicatorID snowflake.ID
	Duration    DurationCode
	Source      Source
	ActorID     string
}

type GrantTierRequest struct {
	UserID   snowflake.ID
	Tier     indicatordomain.Tier
	Duration DurationCode
	Source   Source
	ActorID  string
}

type RevokeOneRequest struct {
	UserID      snowflake.ID
	IndicatorID snowflake.ID
	ActorID     string
}

type RevokeTierRequest struct {
	UserID  snowflake.ID
	Tier    indicatordomain.Tier
	ActorID string
}

// GrantOutcome is the per-indicator breakdown returned by every
// provisioning operation; a failed tier grant is never a single opaque
// verdict.
type GrantOutcome struct {
	IndicatorID snowflake.ID `json:"indicator_id"`
	ExternalKey string       `json:"external_key"`
	Status      Status       `json:"status"`
	Skipped     bool         `json:"skipped,omitempty"`
	SkipReason  string       `json:"skip_reason,omitempty"`
	Error       string       `json:"error,omitempty"`
	Entitlement *Entitlement `json:"entitlement,omitempty"`
}

type ProvisionResponse struct {
	Outcomes []GrantOutcome `json:"outcomes"`
}

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, e *Entitlement) error
	FindByPair(ctx context.Context, db *gorm.DB, userID, indicatorID snowflake.ID) (*Entitlement, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Entitlement, error)
}

type Service interface {
	GrantOne(ctx context.Context, req GrantOneRequest) (*Entitlement, error)
	GrantTier(ctx context.Context, req GrantTierRequest) (ProvisionResponse, error)
	RevokeOne(ctx context.Context, req RevokeOneRequest) (*Entitlement, error)
	RevokeTier(ctx context.Context, req RevokeTierRequest) (ProvisionResponse, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]Entitlement, error)
}
