package service

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/chartschool/chartschool/internal/audit/domain"
	"github.com/chartschool/chartschool/internal/clock"
	indicatordomain "github.com/chartschool/chartschool/internal/indicator/domain"
	userdomain "github.com/chartschool/chartschool/internal/user/domain"
	"github.com/chartschool/chartschool/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const exportBatchSize = 500

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         auditdomain.Repository
	UserSvc      userdomain.Service
	IndicatorSvc indicatordomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         auditdomain.Repository
	userSvc      userdomain.Service
	indicatorSvc indicatordomain.Service
}

func New(p Params) auditdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("audit.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		userSvc:      p.UserSvc,
		indicatorSvc: p.IndicatorSvc,
	}
}

func (s *Service) Record(ctx context.Context, req auditdomain.RecordRequest) error {
	if !req.Operation.Valid() {
		return auditdomain.ErrInvalidOperation
	}

	entry := auditdomain.AuditEntry{
		ID:          s.genID.Generate(),
		Operation:   req.Operation,
		ActorID:     strings.TrimSpace(req.ActorID),
		UserID:      req.UserID,
		IndicatorID: req.IndicatorID,
		Status:      strings.TrimSpace(req.Status),
		RawResponse: req.RawResponse,
		CreatedAt:   s.clock.Now(),
	}
	if errText := strings.TrimSpace(req.ErrorText); errText != "" {
		entry.ErrorText = &errText
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to append audit entry",
			zap.String("operation", string(req.Operation)),
			zap.Int64("user_id", int64(req.UserID)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	filter, pageSize, err := s.buildFilter(req)
	if err != nil {
		return auditdomain.ListResponse{}, err
	}
	filter.Limit = pageSize

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *auditdomain.AuditEntry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	enriched, err := s.enrich(ctx, items)
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	resp := auditdomain.ListResponse{Entries: enriched}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

var exportHeader = []string{
	"id", "created_at", "operation", "actor_id",
	"user_id", "user_email", "tradingview_username",
	"indicator_id", "indicator_name", "indicator_key",
	"status", "error_text",
}

func (s *Service) ExportCSV(ctx context.Context, req auditdomain.ListRequest, w io.Writer) error {
	filter, _, err := s.buildFilter(req)
	if err != nil {
		return err
	}
	// Reject page tokens on export: the stream always starts from the top.
	filter.Cursor = nil
	filter.Limit = exportBatchSize

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}

	for {
		items, err := s.repo.List(ctx, s.db, filter)
		if err != nil {
			return err
		}

		hasMore := len(items) > exportBatchSize
		if hasMore {
			items = items[:exportBatchSize]
		}
		if len(items) == 0 {
			break
		}

		enriched, err := s.enrich(ctx, items)
		if err != nil {
			return err
		}
		for _, entry := range enriched {
			if err := writer.Write(entryToCSVRow(entry)); err != nil {
				return err
			}
		}

		if !hasMore {
			break
		}
		last := items[len(items)-1]
		filter.Cursor = &auditdomain.Cursor{ID: last.ID, CreatedAt: last.CreatedAt}
	}

	writer.Flush()
	return writer.Error()
}

func (s *Service) buildFilter(req auditdomain.ListRequest) (auditdomain.ListFilter, int, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListFilter{}, 0, auditdomain.ErrInvalidTimeRange
	}

	var cursor *auditdomain.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return auditdomain.ListFilter{}, 0, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListFilter{}, 0, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListFilter{}, 0, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	return auditdomain.ListFilter{
		Operation:   req.Operation,
		Status:      req.Status,
		ActorID:     req.ActorID,
		UserID:      req.UserID,
		IndicatorID: req.IndicatorID,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Cursor:      cursor,
	}, pageSize, nil
}

// enrich resolves display fields with one bulk user lookup and one bulk
// indicator lookup per page, regardless of page size.
func (s *Service) enrich(ctx context.Context, items []*auditdomain.AuditEntry) ([]auditdomain.EnrichedEntry, error) {
	userIDs := make([]snowflake.ID, 0, len(items))
	indicatorIDs := make([]snowflake.ID, 0, len(items))
	seenUsers := make(map[snowflake.ID]struct{}, len(items))
	seenIndicators := make(map[snowflake.ID]struct{}, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}
		if _, ok := seenUsers[item.UserID]; !ok {
			seenUsers[item.UserID] = struct{}{}
			userIDs = append(userIDs, item.UserID)
		}
		if item.IndicatorID != nil {
			if _, ok := seenIndicators[*item.IndicatorID]; !ok {
				seenIndicators[*item.IndicatorID] = struct{}{}
				indicatorIDs = append(indicatorIDs, *item.IndicatorID)
			}
		}
	}

	users, err := s.userSvc.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	indicators, err := s.indicatorSvc.GetByIDs(ctx, indicatorIDs)
	if err != nil {
		return nil, err
	}

	enriched := make([]auditdomain.EnrichedEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entry := auditdomain.EnrichedEntry{AuditEntry: *item}
		if u, ok := users[item.UserID]; ok {
			entry.UserEmail = u.Email
			entry.TradingViewUsername = u.Username()
		}
		if item.IndicatorID != nil {
			if ind, ok := indicators[*item.IndicatorID]; ok {
				entry.IndicatorName = ind.Name
				entry.IndicatorKey = ind.ExternalKey
			}
		}
		enriched = append(enriched, entry)
	}
	return enriched, nil
}

func entryToCSVRow(entry auditdomain.EnrichedEntry) []string {
	indicatorID := ""
	if entry.IndicatorID != nil {
		indicatorID = entry.IndicatorID.String()
	}
	errText := ""
	if entry.ErrorText != nil {
		errText = *entry.ErrorText
	}
	return []string{
		entry.ID.String(),
		entry.CreatedAt.UTC().Format(time.RFC3339),
		string(entry.Operation),
		entry.ActorID,
		entry.UserID.String(),
		entry.UserEmail,
		entry.TradingViewUsername,
		indicatorID,
		entry.IndicatorName,
		entry.IndicatorKey,
		entry.Status,
		errText,
	}
}
