package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Operation string

const (
	OperationGrant     Operation = "grant"
	OperationRevoke    Operation = "revoke"
	OperationReconcile Operation = "reconcile"
)

func (o Operation) Valid() bool {
	return o == OperationGrant || o == OperationRevoke || o == OperationReconcile
}

// AuditEntry is immutable and append-only: never updated, never deleted.
// It is the sole durable record distinguishing "we tried and failed" from
// "we never tried".
type AuditEntry struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Operation Operation    `gorm:"type:text;not null" json:"operation"`
	ActorID   string       `gorm:"column:actor_id;type:text;not null" json:"actor_id"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index:ix_audit_user_indicator,priority:1" json:"user_id"`
	// IndicatorID is nil for the whole-tier entry written when a bulk call
	// fails at the transport level before any per-key verdicts exist.
	IndicatorID *snowflake.ID  `gorm:"column:indicator_id;index:ix_audit_user_indicator,priority:2" json:"indicator_id,omitempty"`
	Status      string         `gorm:"type:text;not null" json:"status"`
	RawResponse datatypes.JSON `gorm:"column:raw_response;type:jsonb" json:"raw_response,omitempty"`
	ErrorText   *string        `gorm:"column:error_text;type:text" json:"error_text,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index:ix_audit_created_at,sort:desc" json:"created_at"`
}

func (AuditEntry) TableName() string { return "audit_entries" }

// EnrichedEntry is an AuditEntry with denormalized display fields resolved
// via bulk lookups at read time.
type EnrichedEntry struct {
	AuditEntry
	UserEmail           string `json:"user_email,omitempty"`
	TradingViewUsername string `json:"tradingview_username,omitempty"`
	IndicatorName       string `json:"indicator_name,omitempty"`
	IndicatorKey        string `json:"indicator_key,omitempty"`
}
