package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	obscontext "github.com/smallbiznis/coverdesk/internal/observability/context"
	"github.com/smallbiznis/coverdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, db *gorm.DB, entry auditdomain.Entry) error {
	if strings.TrimSpace(string(entry.ActionType)) == "" {
		return auditdomain.ErrInvalidAction
	}
	if strings.TrimSpace(string(entry.EntityType)) == "" || entry.EntityID == 0 {
		return auditdomain.ErrInvalidEntity
	}
	if db == nil {
		db = s.db
	}

	row := auditdomain.AuditLog{
		ID:          s.genID.Generate(),
		ActorType:   auditdomain.ActorTypeSystem,
		ActionType:  entry.ActionType,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Description: strings.TrimSpace(entry.Description),
		CreatedAt:   s.clock.Now(),
	}
	if entry.ActorID != 0 {
		actorID := entry.ActorID
		row.ActorType = auditdomain.ActorTypeUser
		row.ActorID = &actorID
	}
	if len(entry.OldValues) > 0 {
		row.OldValues = datatypes.JSONMap(entry.OldValues)
	}
	if len(entry.NewValues) > 0 {
		row.NewValues = datatypes.JSONMap(entry.NewValues)
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		row.RequestID = &requestID
	}
	ip, userAgent := obscontext.ClientFromContext(ctx)
	if ip != "" {
		row.IPAddress = &ip
	}
	if userAgent != "" {
		row.UserAgent = &userAgent
	}

	if err := s.repo.Insert(ctx, db, &row); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action_type", string(entry.ActionType)),
			zap.String("entity_type", string(entry.EntityType)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	beforeID, err := pagination.DecodeCursorID(strings.TrimSpace(req.PageToken))
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
	}

	filter := auditdomain.ListFilter{
		ActionType: req.ActionType,
		EntityType: req.EntityType,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		BeforeID:   snowflake.ID(beforeID),
		Limit:      req.Limit(),
	}
	if id := strings.TrimSpace(req.EntityID); id != "" {
		parsed, err := snowflake.ParseString(id)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidEntity
		}
		filter.EntityID = parsed
	}
	if id := strings.TrimSpace(req.ActorID); id != "" {
		parsed, err := snowflake.ParseString(id)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidEntity
		}
		filter.ActorID = parsed
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	logs, pageInfo := pagination.Trim(items, filter.Limit, func(l auditdomain.AuditLog) int64 { return l.ID.Int64() })
	if logs == nil {
		logs = []auditdomain.AuditLog{}
	}
	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}
