package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/chartschool/chartschool/internal/audit/domain"
	"github.com/chartschool/chartschool/internal/entitlement/domain"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
)

// statusNoOp marks audit entries for idempotent revokes of entitlements
// that were not active to begin with.
const statusNoOp = "no-op"

func (s *Service) RevokeOne(ctx context.Context, req domain.RevokeOneRequest) (*domain.Entitlement, error) {
	if req.ActorID == "" {
		return nil, domain.ErrActorRequired
	}

	_, username, err := s.userSvc.RequireProvisionable(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	// Revoke loads the indicator without the active gate: access to a
	// since-disabled indicator must still be removable.
	indicators, err := s.indicatorSvc.GetByIDs(ctx, []snowflake.ID{req.IndicatorID})
	if err != nil {
		return nil, err
	}
	ind, ok := indicators[req.IndicatorID]
	if !ok {
		return nil, fmt.Errorf("indicator %d: %w", req.IndicatorID, indicatordomain.ErrIndicatorUnavailable)
	}

	existing, err := s.repo.FindByPair(ctx, s.db, req.UserID, req.IndicatorID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.Status != domain.StatusActive {
		// Idempotent no-op by contract. Recorded so the trail shows the
		// attempt, but not an error to the caller.
		s.audit(ctx, auditdomain.OperationRevoke, req.ActorID, req.UserID, &req.IndicatorID, statusNoOp, nil, "")
		return existing, nil
	}

	batch, gwErr := s.gateway.Revoke(ctx, username, []string{ind.ExternalKey})
	if gwErr != nil {
		s.audit(ctx, auditdomain.OperationRevoke, req.ActorID, req.UserID, &req.IndicatorID, string(domain.StatusFailed), nil, gwErr.Error())
		return existing, gwErr
	}

	outcome, found := batch.Outcome(ind.ExternalKey)
	if !found || !outcome.Succeeded {
		errText := outcomeErrorText(outcome, found)
		s.audit(ctx, auditdomain.OperationRevoke, req.ActorID, req.UserID, &req.IndicatorID, string(domain.StatusFailed), outcome.RawResponse, errText)
		return existing, fmt.Errorf("revoke %s for user %d failed: %s", ind.ExternalKey, req.UserID, errText)
	}

	ent, writeErr := s.writeRevoked(ctx, existing, outcome.RawResponse)
	s.audit(ctx, auditdomain.OperationRevoke, req.ActorID, req.UserID, &req.IndicatorID, string(domain.StatusRevoked), outcome.RawResponse, "")
	if writeErr != nil {
		return ent, writeErr
	}
	return ent, nil
}

func (s *Service) RevokeTier(ctx context.Context, req domain.RevokeTierRequest) (domain.ProvisionResponse, error) {
	if req.ActorID == "" {
		return domain.ProvisionResponse{}, domain.ErrActorRequired
	}

	_, username, err := s.userSvc.RequireProvisionable(ctx, req.UserID)
	if err != nil {
		return domain.ProvisionResponse{}, err
	}

	indicators, err := s.indicatorSvc.ListActiveByTier(ctx, req.Tier)
	if err != nil {
		return domain.ProvisionResponse{}, err
	}

	outcomes := make([]domain.GrantOutcome, 0, len(indicators))
	type pendingRevoke struct {
		ind indicatordomain.Indicator
		ent *domain.Entitlement
	}
	pending := make([]pendingRevoke, 0, len(indicators))
	for _, ind := range indicators {
		existing, err := s.repo.FindByPair(ctx, s.db, req.UserID, ind.ID)
		if err != nil {
			return domain.ProvisionResponse{}, err
		}
		if existing == nil || existing.Status != domain.StatusActive {
			indID := ind.ID
			s.audit(ctx, auditdomain.OperationRevoke, req.ActorID, req.UserID, &indID, statusNoOp, nil, "")
			outcomes = append(outcomes, domain.GrantOutcome{
				IndicatorID: ind.ID,
				ExternalKey: ind.ExternalKey,
				Status:      domain.StatusRevoked,
				Skipped:     true,
				SkipReason:  statusNoOp,
				Entitlement: existing,
			})
			continue
		}
		pending = append(pending, pendingRevoke{ind: ind, ent: existing})
	}

	if len(pending) == 0 {
		return domain.ProvisionResponse{Outcomes: outcomes}, nil
	}

	keys := make([]string, 0, len(pending))
	for _, p := range pending {
		keys = append(keys, p.ind.ExternalKey)
	}
	batch, gwErr := s.gateway.Revoke(ctx, username, keys)
	if gwErr != nil {
		s.audit(ctx, auditdomain.OperationRevoke, req.ActorID, req.UserID, nil, string(domain.StatusFailed), nil, gwErr.Error())
		return domain.ProvisionResponse{Outcomes: outcomes}, gwErr
	}

	for _, p := range pending {
		indID := p.ind.ID
		outcome, found := batch.Outcome(p.ind.ExternalKey)
		if !found || !outcome.Succeeded {
			errText := outcomeErrorText(outcome, found)
			s.audit(ctx, auditdomain.OperationRevoke, req.ActorID, req.UserID, &indID, string(domain.StatusFailed), outcome.RawResponse, errText)
			outcomes = append(outcomes, domain.GrantOutcome{
				IndicatorID: p.ind.ID,
				ExternalKey: p.ind.ExternalKey,
				Status:      domain.StatusFailed,
				Error:       errText,
				Entitlement: p.ent,
			})
			continue
		}

		ent, _ := s.writeRevoked(ctx, p.ent, outcome.RawResponse)
		s.audit(ctx, auditdomain.OperationRevoke, req.ActorID, req.UserID, &indID, string(domain.StatusRevoked), outcome.RawResponse, "")
		outcomes = append(outcomes, domain.GrantOutcome{
			IndicatorID: p.ind.ID,
			ExternalKey: p.ind.ExternalKey,
			Status:      domain.StatusRevoked,
			Entitlement: ent,
		})
	}

	return domain.ProvisionResponse{Outcomes: outcomes}, nil
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.Entitlement, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}
