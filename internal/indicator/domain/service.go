package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	// ErrIndicatorUnavailable covers both missing and disabled catalog
	// entries: provisioning against either is rejected, not recorded.
	ErrIndicatorUnavailable = errors.New("indicator_unavailable")
	ErrInvalidTier          = errors.New("invalid_tier")
)

// Service is the read-only catalog view this core consumes. Catalog
// management lives in the back-office, outside this module.
type Service interface {
	GetActive(ctx context.Context, id snowflake.ID) (*Indicator, error)
	ListActiveByTier(ctx context.Context, tier Tier) ([]Indicator, error)
	List(ctx context.Context, req ListRequest) ([]Indicator, error)
	GetByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]Indicator, error)
	GetByExternalKeys(ctx context.Context, keys []string) (map[string]Indicator, error)
}
