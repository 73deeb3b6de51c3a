package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/chartschool/chartschool/internal/audit/domain"
	"github.com/chartschool/chartschool/internal/clock"
	"github.com/chartschool/chartschool/internal/entitlement/domain"
	"github.com/chartschool/chartschool/internal/gateway"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
	userdomain "github.com/chartschool/chartschool/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	UserSvc      userdomain.Service
	IndicatorSvc indicatordomain.Service
	Gateway      gateway.Client
	AuditSvc     auditdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	userSvc      userdomain.Service
	indicatorSvc indicatordomain.Service
	gateway      gateway.Client
	auditSvc     auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("entitlement.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		userSvc:      p.UserSvc,
		indicatorSvc: p.IndicatorSvc,
		gateway:      p.Gateway,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) GrantOne(ctx context.Context, req domain.GrantOneRequest) (*domain.Entitlement, error) {
	if req.ActorID == "" {
		return nil, domain.ErrActorRequired
	}
	if !req.Duration.Valid() {
		return nil, domain.ErrInvalidDuration
	}
	source := req.Source
	if source == "" {
		source = domain.SourceManual
	}
	if !source.Valid() {
		return nil, domain.ErrInvalidSource
	}

	_, username, err := s.userSvc.RequireProvisionable(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	ind, err := s.indicatorSvc.GetActive(ctx, req.IndicatorID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByPair(ctx, s.db, req.UserID, req.IndicatorID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.CurrentlyActive(s.clock.Now()) {
		return nil, domain.ErrAlreadyActive
	}

	batch, gwErr := s.gateway.Grant(ctx, username, []string{ind.ExternalKey}, string(req.Duration))
	if gwErr != nil {
		// A transport failure still lands in the ledger: the entitlement is
		// created in failed state on the first attempt, never left absent.
		ent := s.writeFailed(ctx, req.UserID, ind.ID, req.Duration, source, nil, gwErr.Error())
		s.audit(ctx, auditdomain.OperationGrant, req.ActorID, req.UserID, &ind.ID, string(domain.StatusFailed), nil, gwErr.Error())
		return ent, gwErr
	}

	outcome, ok := batch.Outcome(ind.ExternalKey)
	if !ok || !outcome.Succeeded {
		errText := outcome.ErrorText
		if errText == "" {
			errText = "gateway reported failure"
		}
		ent := s.writeFailed(ctx, req.UserID, ind.ID, req.Duration, source, outcome.RawResponse, errText)
		s.audit(ctx, auditdomain.OperationGrant, req.ActorID, req.UserID, &ind.ID, string(domain.StatusFailed), outcome.RawResponse, errText)
		return ent, fmt.Errorf("grant %s for user %d failed: %s", ind.ExternalKey, req.UserID, errText)
	}

	ent, writeErr := s.writeActive(ctx, req.UserID, ind.ID, req.Duration, source, outcome)
	s.audit(ctx, auditdomain.OperationGrant, req.ActorID, req.UserID, &ind.ID, string(domain.StatusActive), outcome.RawResponse, "")
	if writeErr != nil {
		return ent, writeErr
	}
	return ent, nil
}

func (s *Service) GrantTier(ctx context.Context, req domain.GrantTierRequest) (domain.ProvisionResponse, error) {
	if req.ActorID == "" {
		return domain.ProvisionResponse{}, domain.ErrActorRequired
	}
	if !req.Duration.Valid() {
		return domain.ProvisionResponse{}, domain.ErrInvalidDuration
	}
	source := req.Source
	if source == "" {
		source = domain.SourceBulk
	}
	if !source.Valid() {
		return domain.ProvisionResponse{}, domain.ErrInvalidSource
	}

	_, username, err := s.userSvc.RequireProvisionable(ctx, req.UserID)
	if err != nil {
		return domain.ProvisionResponse{}, err
	}

	indicators, err := s.indicatorSvc.ListActiveByTier(ctx, req.Tier)
	if err != nil {
		return domain.ProvisionResponse{}, err
	}
	if len(indicators) == 0 {
		return domain.ProvisionResponse{}, domain.ErrNothingToGrant
	}

	now := s.clock.Now()
	outcomes := make([]domain.GrantOutcome, 0, len(indicators))
	pending := make([]indicatordomain.Indicator, 0, len(indicators))
	for _, ind := range indicators {
		existing, err := s.repo.FindByPair(ctx, s.db, req.UserID, ind.ID)
		if err != nil {
			return domain.ProvisionResponse{}, err
		}
		if existing != nil && existing.CurrentlyActive(now) {
			// AlreadyActive is not an error in the bulk case, only a
			// skipped row in the breakdown.
			outcomes = append(outcomes, domain.GrantOutcome{
				IndicatorID: ind.ID,
				ExternalKey: ind.ExternalKey,
				Status:      domain.StatusActive,
				Skipped:     true,
				SkipReason:  "already_active",
				Entitlement: existing,
			})
			continue
		}
		pending = append(pending, ind)
	}

	if len(pending) == 0 {
		return domain.ProvisionResponse{Outcomes: outcomes}, nil
	}

	// One gateway call for the whole key list: the external platform
	// amortizes its own iteration and rate limits per call.
	keys := make([]string, 0, len(pending))
	for _, ind := range pending {
		keys = append(keys, ind.ExternalKey)
	}
	batch, gwErr := s.gateway.Grant(ctx, username, keys, string(req.Duration))
	if gwErr != nil {
		// Whole-call failure: no per-key verdicts exist, so no ledger
		// writes. One audit entry with nil indicator records the attempt.
		s.audit(ctx, auditdomain.OperationGrant, req.ActorID, req.UserID, nil, string(domain.StatusFailed), nil, gwErr.Error())
		return domain.ProvisionResponse{Outcomes: outcomes}, gwErr
	}

	for _, ind := range pending {
		outcome, ok := batch.Outcome(ind.ExternalKey)
		if !ok || !outcome.Succeeded {
			errText := outcomeErrorText(outcome, ok)
			ent := s.writeFailed(ctx, req.UserID, ind.ID, req.Duration, source, outcome.RawResponse, errText)
			s.audit(ctx, auditdomain.OperationGrant, req.ActorID, req.UserID, &ind.ID, string(domain.StatusFailed), outcome.RawResponse, errText)
			outcomes = append(outcomes, domain.GrantOutcome{
				IndicatorID: ind.ID,
				ExternalKey: ind.ExternalKey,
				Status:      domain.StatusFailed,
				Error:       errText,
				Entitlement: ent,
			})
			continue
		}

		ent, _ := s.writeActive(ctx, req.UserID, ind.ID, req.Duration, source, outcome)
		s.audit(ctx, auditdomain.OperationGrant, req.ActorID, req.UserID, &ind.ID, string(domain.StatusActive), outcome.RawResponse, "")
		outcomes = append(outcomes, domain.GrantOutcome{
			IndicatorID: ind.ID,
			ExternalKey: ind.ExternalKey,
			Status:      domain.StatusActive,
			Entitlement: ent,
		})
	}

	return domain.ProvisionResponse{Outcomes: outcomes}, nil
}
