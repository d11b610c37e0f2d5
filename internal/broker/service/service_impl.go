package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/broker/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/db"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("broker.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, actor permission.Actor, req domain.CreateBrokerRequest) (domain.Broker, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.RUC = strings.TrimSpace(req.RUC)

	var c apperror.Collector
	if err := c.Merge(apperror.ValidateStruct(req)); err != nil {
		return domain.Broker{}, err
	}
	if !money.IsValidPercentage(req.CommissionPercentage) {
		c.Add("commission_percentage", "percentage_range", "commission_percentage must be between 0 and 100")
	}
	if err := c.Err(); err != nil {
		return domain.Broker{}, err
	}

	now := s.clock.Now()
	broker := domain.Broker{
		ID:                   s.genID.Generate(),
		Name:                 req.Name,
		RUC:                  req.RUC,
		Email:                strings.TrimSpace(req.Email),
		Phone:                strings.TrimSpace(req.Phone),
		CommissionPercentage: money.Round2(req.CommissionPercentage),
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &broker); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateRUC
			}
			return err
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionCreate,
			EntityType:  auditdomain.EntityBroker,
			EntityID:    broker.ID,
			Description: "broker " + broker.Name + " created",
			NewValues:   auditdomain.Snapshot(broker),
		})
	})
	if err != nil {
		return domain.Broker{}, err
	}
	return broker, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Broker, error) {
	broker, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Broker{}, err
	}
	if broker == nil {
		return domain.Broker{}, domain.ErrNotFound
	}
	return *broker, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Broker, error) {
	return s.repo.List(ctx, s.db)
}
