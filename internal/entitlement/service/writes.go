package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/chartschool/chartschool/internal/audit/domain"
	"github.com/chartschool/chartschool/internal/entitlement/domain"
	"github.com/chartschool/chartschool/internal/gateway"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// writeActive upserts a successful grant. Expiry prefers the platform's
// own reported expiration; the duration resolver fills in when the
// response carries none. Computed from the moment of the gateway
// response, not request time.
func (s *Service) writeActive(
	ctx context.Context,
	userID, indicatorID snowflake.ID,
	duration domain.DurationCode,
	source domain.Source,
	outcome gateway.KeyOutcome,
) (*domain.Entitlement, error) {
	now := s.clock.Now()
	grantedAt := now

	expiresAt := outcome.Expiration
	if expiresAt == nil {
		expiresAt = duration.ExpiryFrom(grantedAt)
	}

	ent := &domain.Entitlement{
		ID:               s.genID.Generate(),
		UserID:           userID,
		IndicatorID:      indicatorID,
		Status:           domain.StatusActive,
		DurationCode:     duration,
		GrantedAt:        &grantedAt,
		ExpiresAt:        expiresAt,
		Source:           source,
		ExternalResponse: datatypes.JSON(outcome.RawResponse),
		ErrorMessage:     nil,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Upsert(ctx, s.db, ent); err != nil {
		s.log.Error("ledger write failed after successful grant",
			zap.Int64("user_id", int64(userID)),
			zap.Int64("indicator_id", int64(indicatorID)),
			zap.Error(err),
		)
		return ent, fmt.Errorf("%w: %v", domain.ErrLedgerWrite, err)
	}
	return ent, nil
}

// writeFailed upserts the failed state: granted_at stays nil, the error
// message is mandatory. Ledger failures here are logged only; the audit
// append still runs and is the durable record of the attempt.
func (s *Service) writeFailed(
	ctx context.Context,
	userID, indicatorID snowflake.ID,
	duration domain.DurationCode,
	source domain.Source,
	raw json.RawMessage,
	errText string,
) *domain.Entitlement {
	if errText == "" {
		errText = "unknown gateway failure"
	}
	now := s.clock.Now()
	ent := &domain.Entitlement{
		ID:               s.genID.Generate(),
		UserID:           userID,
		IndicatorID:      indicatorID,
		Status:           domain.StatusFailed,
		DurationCode:     duration,
		GrantedAt:        nil,
		ExpiresAt:        nil,
		Source:           source,
		ExternalResponse: datatypes.JSON(raw),
		ErrorMessage:     &errText,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Upsert(ctx, s.db, ent); err != nil {
		s.log.Error("ledger write failed for failed grant attempt",
			zap.Int64("user_id", int64(userID)),
			zap.Int64("indicator_id", int64(indicatorID)),
			zap.Error(err),
		)
	}
	return ent
}

func (s *Service) writeRevoked(ctx context.Context, existing *domain.Entitlement, raw json.RawMessage) (*domain.Entitlement, error) {
	now := s.clock.Now()
	ent := *existing
	ent.Status = domain.StatusRevoked
	ent.ExternalResponse = datatypes.JSON(raw)
	ent.ErrorMessage = nil
	ent.UpdatedAt = now

	if err := s.repo.Upsert(ctx, s.db, &ent); err != nil {
		s.log.Error("ledger write failed after successful revoke",
			zap.Int64("user_id", int64(ent.UserID)),
			zap.Int64("indicator_id", int64(ent.IndicatorID)),
			zap.Error(err),
		)
		return &ent, fmt.Errorf("%w: %v", domain.ErrLedgerWrite, err)
	}
	return &ent, nil
}

// audit appends unconditionally. The ledger upsert and the audit append
// are independent writes, not a transaction: the trail must reflect
// attempts the ledger write itself might fail to record. Errors are
// already logged inside the audit service.
func (s *Service) audit(
	ctx context.Context,
	op auditdomain.Operation,
	actorID string,
	userID snowflake.ID,
	indicatorID *snowflake.ID,
	status string,
	raw json.RawMessage,
	errText string,
) {
	_ = s.auditSvc.Record(ctx, auditdomain.RecordRequest{
		Operation:   op,
		ActorID:     actorID,
		UserID:      userID,
		IndicatorID: indicatorID,
		Status:      status,
		RawResponse: datatypes.JSON(raw),
		ErrorText:   errText,
	})
}

func outcomeErrorText(outcome gateway.KeyOutcome, found bool) string {
	if !found {
		return "no response entry for key"
	}
	if outcome.ErrorText != "" {
		return outcome.ErrorText
	}
	return "gateway reported failure"
}
