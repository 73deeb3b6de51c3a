package bulk

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/chartschool/chartschool/internal/entitlement/domain"
	"github.com/chartschool/chartschool/internal/gateway"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
	"github.com/chartschool/chartschool/internal/ratelimit"
	userdomain "github.com/chartschool/chartschool/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Action string

const (
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
)

// Item is one row of a CSV-driven bulk run. Either IndicatorID or Tier is
// set, never both.
type Item struct {
	Action      Action
	UserID      snowflake.ID
	IndicatorID snowflake.ID
	Tier        indicatordomain.Tier
	Duration    domain.DurationCode
}

type Summary struct {
	Processed int  `json:"processed"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Cancelled bool `json:"cancelled"`
}

type Params struct {
	fx.In

	Log            *zap.Logger
	EntitlementSvc domain.Service
	Pacer          ratelimit.Pacer
}

// Runner executes bulk items sequentially with a fixed inter-item delay.
// One item at a time: the external platform is the bottleneck and the
// pacing is a deliberate throttle, not a missing optimization.
type Runner struct {
	log            *zap.Logger
	entitlementSvc domain.Service
	pacer          ratelimit.Pacer
}

func NewRunner(p Params) *Runner {
	return &Runner{
		log:            p.Log.Named("entitlement.bulk"),
		entitlementSvc: p.EntitlementSvc,
		pacer:          p.Pacer,
	}
}

// Run processes items in order, honoring cancellation between items, never
// mid-call. Re-running a partially completed batch is safe: upserts are
// idempotent and already-active grants are skipped.
func (r *Runner) Run(ctx context.Context, items []Item, actorID string) Summary {
	var summary Summary
	for i, item := range items {
		if err := r.pacer.Wait(ctx); err != nil {
			summary.Cancelled = true
			r.log.Warn("bulk run cancelled",
				zap.Int("processed", summary.Processed),
				zap.Int("remaining", len(items)-i),
			)
			return summary
		}

		summary.Processed++
		if err := r.runItem(ctx, item, actorID); err != nil {
			switch {
			case errors.Is(err, domain.ErrAlreadyActive):
				summary.Skipped++
			case isPrecondition(err):
				summary.Skipped++
				r.log.Info("bulk item skipped",
					zap.Int64("user_id", int64(item.UserID)),
					zap.String("reason", err.Error()),
				)
			default:
				summary.Failed++
				r.log.Warn("bulk item failed",
					zap.Int64("user_id", int64(item.UserID)),
					zap.Error(err),
				)
			}
			continue
		}
		summary.Succeeded++
	}
	return summary
}

func (r *Runner) runItem(ctx context.Context, item Item, actorID string) error {
	switch item.Action {
	case ActionGrant:
		if item.Tier != "" {
			_, err := r.entitlementSvc.GrantTier(ctx, domain.GrantTierRequest{
				UserID:   item.UserID,
				Tier:     item.Tier,
				Duration: item.Duration,
				Source:   domain.SourceBulk,
				ActorID:  actorID,
			})
			return err
		}
		_, err := r.entitlementSvc.GrantOne(ctx, domain.GrantOneRequest{
			UserID:      item.UserID,
			IndicatorID: item.IndicatorID,
			Duration:    item.Duration,
			Source:      domain.SourceBulk,
			ActorID:     actorID,
		})
		return err
	case ActionRevoke:
		if item.Tier != "" {
			_, err := r.entitlementSvc.RevokeTier(ctx, domain.RevokeTierRequest{
				UserID:  item.UserID,
				Tier:    item.Tier,
				ActorID: actorID,
			})
			return err
		}
		_, err := r.entitlementSvc.RevokeOne(ctx, domain.RevokeOneRequest{
			UserID:      item.UserID,
			IndicatorID: item.IndicatorID,
			ActorID:     actorID,
		})
		return err
	default:
		return fmt.Errorf("unknown bulk action %q", item.Action)
	}
}

func isPrecondition(err error) bool {
	var tErr *gateway.TransportError
	if errors.As(err, &tErr) {
		return false
	}
	return errors.Is(err, domain.ErrNothingToGrant) ||
		errors.Is(err, userdomain.ErrOnboardingIncomplete) ||
		errors.Is(err, userdomain.ErrUserNotFound) ||
		errors.Is(err, indicatordomain.ErrIndicatorUnavailable)
}

// LoadCSV parses bulk items from a reader. Expected header:
// action,user_id,indicator_id,tier,duration. Rows may set indicator_id or
// tier, not both.
func LoadCSV(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read bulk csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"action", "user_id"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("bulk csv missing %q column", required)
		}
	}

	var items []Item
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read bulk csv line %d: %w", line+1, err)
		}
		line++

		item, err := parseItem(record, col)
		if err != nil {
			return nil, fmt.Errorf("bulk csv line %d: %w", line, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func parseItem(record []string, col map[string]int) (Item, error) {
	field := func(name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var item Item
	switch Action(strings.ToLower(field("action"))) {
	case ActionGrant:
		item.Action = ActionGrant
	case ActionRevoke:
		item.Action = ActionRevoke
	default:
		return Item{}, fmt.Errorf("unknown action %q", field("action"))
	}

	userID, err := snowflake.ParseString(field("user_id"))
	if err != nil || userID == 0 {
		return Item{}, fmt.Errorf("invalid user_id %q", field("user_id"))
	}
	item.UserID = userID

	indicatorRaw := field("indicator_id")
	tierRaw := field("tier")
	switch {
	case indicatorRaw != "" && tierRaw != "":
		return Item{}, errors.New("row sets both indicator_id and tier")
	case indicatorRaw != "":
		indicatorID, err := snowflake.ParseString(indicatorRaw)
		if err != nil || indicatorID == 0 {
			return Item{}, fmt.Errorf("invalid indicator_id %q", indicatorRaw)
		}
		item.IndicatorID = indicatorID
	case tierRaw != "":
		tier := indicatordomain.Tier(strings.ToLower(tierRaw))
		if !tier.Valid() {
			return Item{}, fmt.Errorf("invalid tier %q", tierRaw)
		}
		item.Tier = tier
	default:
		return Item{}, errors.New("row sets neither indicator_id nor tier")
	}

	if item.Action == ActionGrant {
		duration := domain.DurationCode(strings.ToUpper(field("duration")))
		if !duration.Valid() {
			return Item{}, fmt.Errorf("invalid duration %q", field("duration"))
		}
		item.Duration = duration
	}
	return item, nil
}
