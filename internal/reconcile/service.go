package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chartschool/chartschool/internal/actorcontext"
	auditdomain "github.com/chartschool/chartschool/internal/audit/domain"
	"github.com/chartschool/chartschool/internal/clock"
	entitlementdomain "github.com/chartschool/chartschool/internal/entitlement/domain"
	"github.com/chartschool/chartschool/internal/gateway"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
	"github.com/chartschool/chartschool/internal/ratelimit"
	userdomain "github.com/chartschool/chartschool/internal/user/domain"
)

// Service runs the batch reconciliation job: re-verify each cohort member
// against current state, then mirror the external platform's authoritative
// entitlements into the ledger.
type Service interface {
	Run(ctx context.Context, cohort []CohortRow) (*Report, error)
	GetReport(ctx context.Context, runID string) (*Report, error)
	ListReports(ctx context.Context, limit int) ([]Report, error)
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         Repository
	Entitlements entitlementdomain.Repository
	UserSvc      userdomain.Service
	IndicatorSvc indicatordomain.Service
	Gateway      gateway.Client
	Pacer        ratelimit.Pacer
	AuditSvc     auditdomain.Service
}

type service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         Repository
	entitlements entitlementdomain.Repository
	userSvc      userdomain.Service
	indicatorSvc indicatordomain.Service
	gateway      gateway.Client
	pacer        ratelimit.Pacer
	auditSvc     auditdomain.Service
}

func NewService(p Params) Service {
	return &service{
		db:           p.DB,
		log:          p.Log.Named("reconcile"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		entitlements: p.Entitlements,
		userSvc:      p.UserSvc,
		indicatorSvc: p.IndicatorSvc,
		gateway:      p.Gateway,
		pacer:        p.Pacer,
		auditSvc:     p.AuditSvc,
	}
}

func (s *service) Run(ctx context.Context, cohort []CohortRow) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, report); err != nil {
		return nil, fmt.Errorf("create reconciliation report: %w", err)
	}

	log := s.log.With(zap.String("run_id", report.RunID), zap.Int("cohort_size", len(cohort)))
	log.Info("reconciliation run started")

	outcomes := make([]MemberOutcome, 0, len(cohort))
	for i, row := range cohort {
		// Pacing applies between members, never inside one member's
		// processing: a member is either fully attempted or not started.
		if i > 0 {
			if err := s.pacer.Wait(ctx); err != nil {
				report.Cancelled = true
				log.Warn("reconciliation run cancelled", zap.Int("processed", i))
				break
			}
		}

		outcome := s.reconcileMember(ctx, report.RunID, row)
		outcomes = append(outcomes, outcome)
		switch outcome.Status {
		case MemberSynced:
			report.Synced++
		case MemberFailed:
			report.Failed++
		case MemberSkipped:
			report.Skipped++
		}
	}

	finished := s.clock.Now()
	report.FinishedAt = &finished
	if encoded, err := json.Marshal(outcomes); err == nil {
		report.Details = encoded
	}
	// The partial report must survive cancellation: it is the operator's
	// only record of how far the run got.
	if err := s.repo.Save(context.WithoutCancel(ctx), s.db, report); err != nil {
		return nil, fmt.Errorf("persist reconciliation report: %w", err)
	}

	log.Info("reconciliation run finished",
		zap.Int("synced", report.Synced),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Bool("cancelled", report.Cancelled),
	)
	return report, nil
}

func (s *service) reconcileMember(ctx context.Context, runID string, row CohortRow) MemberOutcome {
	outcome := MemberOutcome{UserID: row.UserID, Username: row.ClaimedUsername}
	log := s.log.With(zap.String("run_id", runID), zap.Int64("user_id", int64(row.UserID)))

	user, err := s.userSvc.GetByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			outcome.Status = MemberSkipped
			outcome.Reason = "user_not_found"
			return outcome
		}
		outcome.Status = MemberFailed
		outcome.Reason = err.Error()
		return outcome
	}
	if !user.Provisionable() {
		outcome.Status = MemberSkipped
		outcome.Reason = "onboarding_incomplete"
		return outcome
	}
	// The cohort's username is stale data from the legacy capture. If the
	// member has re-linked since, touching the claimed account would
	// provision a stranger; skip without any external call.
	if user.Username() != row.ClaimedUsername {
		outcome.Status = MemberSkipped
		outcome.Reason = "username_mismatch"
		log.Info("skipping member, username changed since cohort capture")
		return outcome
	}

	states, err := s.gateway.Query(ctx, row.ClaimedUsername)
	if err != nil {
		outcome.Status = MemberFailed
		outcome.Reason = err.Error()
		log.Warn("gateway query failed", zap.Error(err))
		return outcome
	}

	activeKeys := make([]string, 0, len(states))
	for _, state := range states {
		if state.Active {
			activeKeys = append(activeKeys, state.PineID)
		}
	}
	indicators, err := s.indicatorSvc.GetByExternalKeys(ctx, activeKeys)
	if err != nil {
		outcome.Status = MemberFailed
		outcome.Reason = err.Error()
		return outcome
	}

	for _, state := range states {
		if !state.Active {
			continue
		}
		indicator, ok := indicators[state.PineID]
		if !ok || indicator.Status != indicatordomain.StatusActive {
			// An external grant for a key the catalog no longer carries is
			// noted, not mirrored.
			outcome.KeysIgnored++
			log.Info("ignoring unknown external key", zap.String("pine_id", state.PineID))
			continue
		}
		if err := s.syncEntitlement(ctx, user.ID, indicator, state); err != nil {
			outcome.Status = MemberFailed
			outcome.Reason = err.Error()
			return outcome
		}
		outcome.KeysSynced++
	}

	outcome.Status = MemberSynced
	return outcome
}

// syncEntitlement mirrors one authoritative external grant. Expiry is
// recorded exactly as the platform reports it, with no duration arithmetic.
func (s *service) syncEntitlement(ctx context.Context, userID snowflake.ID, indicator indicatordomain.Indicator, state gateway.EntitlementState) error {
	now := s.clock.Now()
	ent := &entitlementdomain.Entitlement{
		ID:               s.genID.Generate(),
		UserID:           userID,
		IndicatorID:      indicator.ID,
		Status:           entitlementdomain.StatusActive,
		DurationCode:     durationFromExpiry(now, state.Expiration),
		GrantedAt:        &now,
		ExpiresAt:        state.Expiration,
		Source:           entitlementdomain.SourceReconciliation,
		ExternalResponse: []byte(state.RawResponse),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.entitlements.Upsert(ctx, s.db, ent); err != nil {
		return fmt.Errorf("upsert reconciled entitlement: %w", err)
	}

	indicatorID := indicator.ID
	if err := s.auditSvc.Record(ctx, auditdomain.RecordRequest{
		Operation:   auditdomain.OperationReconcile,
		ActorID:     actorcontext.SystemActor,
		UserID:      userID,
		IndicatorID: &indicatorID,
		Status:      string(entitlementdomain.StatusActive),
		RawResponse: []byte(state.RawResponse),
	}); err != nil {
		s.log.Warn("audit record failed during reconciliation", zap.Error(err))
	}
	return nil
}

// durationFromExpiry classifies a reported expiry into the nearest duration
// code by remaining span, for ledger readability. The code is informational;
// expires_at stays the authoritative value.
func durationFromExpiry(now time.Time, expiry *time.Time) entitlementdomain.DurationCode {
	if expiry == nil {
		return entitlementdomain.DurationLifetime
	}
	switch span := expiry.Sub(now); {
	case span <= 8*24*time.Hour:
		return entitlementdomain.DurationSevenDays
	case span <= 31*24*time.Hour:
		return entitlementdomain.DurationThirtyDay
	default:
		return entitlementdomain.DurationOneYear
	}
}

func (s *service) GetReport(ctx context.Context, runID string) (*Report, error) {
	return s.repo.FindByRunID(ctx, s.db, runID)
}

func (s *service) ListReports(ctx context.Context, limit int) ([]Report, error) {
	return s.repo.List(ctx, s.db, limit)
}
