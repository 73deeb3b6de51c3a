package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chartschool/chartschool/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidOperation = errors.New("invalid_operation")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)

type RecordRequest struct {
	Operation   Operation
	ActorID     string
	UserID      snowflake.ID
	IndicatorID *snowflake.ID
	Status      string
	RawResponse datatypes.JSON
	ErrorText   string
}

type ListFilter struct {
	Operation   Operation
	Status      string
	ActorID     string
	UserID      snowflake.ID
	IndicatorID snowflake.ID
	StartAt     *time.Time
	EndAt       *time.Time
	Cursor      *Cursor
	Limit       int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListRequest struct {
	pagination.Pagination
	Operation   Operation
	Status      string
	ActorID     string
	UserID      snowflake.ID
	IndicatorID snowflake.ID
	StartAt     *time.Time
	EndAt       *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	Entries []EnrichedEntry `json:"entries"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditEntry) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditEntry, error)
}

type Service interface {
	// Record appends one entry. Best-effort by contract: callers log a
	// returned error but never let it mask the operation being audited.
	Record(ctx context.Context, req RecordRequest) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	// ExportCSV streams the full filtered entry set, unpaged.
	ExportCSV(ctx context.Context, req ListRequest, w io.Writer) error
}
