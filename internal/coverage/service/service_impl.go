package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/coverage/domain"
	"github.com/smallbiznis/coverdesk/internal/permission"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	PolicyRepo policydomain.Repository
	AuditSvc   auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	policyRepo policydomain.Repository
	auditSvc   auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("coverage.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		policyRepo: p.PolicyRepo,
		auditSvc:   p.AuditSvc,
	}
}

func (s *Service) Add(ctx context.Context, actor permission.Actor, policyID snowflake.ID, req domain.CreateCoverageRequest) (domain.Coverage, error) {
	now := s.clock.Now()
	coverage := domain.Coverage{
		ID:                   s.genID.Generate(),
		PolicyID:             policyID,
		Name:                 strings.TrimSpace(req.Name),
		Description:          strings.TrimSpace(req.Description),
		InsuredLimit:         money.Round2(req.InsuredLimit),
		DeductibleFixed:      money.Round2(req.DeductibleFixed),
		DeductiblePercentage: money.Round2(req.DeductiblePercentage),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := coverage.Validate(); err != nil {
		return domain.Coverage{}, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireActivePolicy(ctx, tx, policyID); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &coverage); err != nil {
			return err
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionCreate,
			EntityType:  auditdomain.EntityCoverage,
			EntityID:    coverage.ID,
			Description: "coverage " + coverage.Name + " added",
			NewValues:   auditdomain.Snapshot(coverage),
		})
	})
	if err != nil {
		return domain.Coverage{}, err
	}
	return coverage, nil
}

func (s *Service) Update(ctx context.Context, actor permission.Actor, id snowflake.ID, req domain.UpdateCoverageRequest) (domain.Coverage, error) {
	var out domain.Coverage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		coverage, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if coverage == nil {
			return domain.ErrNotFound
		}
		if err := s.requireActivePolicy(ctx, tx, coverage.PolicyID); err != nil {
			return err
		}
		before := auditdomain.Snapshot(coverage)

		if req.Name != nil {
			coverage.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			coverage.Description = strings.TrimSpace(*req.Description)
		}
		if req.InsuredLimit != nil {
			coverage.InsuredLimit = money.Round2(*req.InsuredLimit)
		}
		if req.DeductibleFixed != nil {
			coverage.DeductibleFixed = money.Round2(*req.DeductibleFixed)
		}
		if req.DeductiblePercentage != nil {
			coverage.DeductiblePercentage = money.Round2(*req.DeductiblePercentage)
		}
		if err := coverage.Validate(); err != nil {
			return err
		}
		coverage.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, coverage); err != nil {
			return err
		}
		oldValues, newValues := auditdomain.Changes(before, auditdomain.Snapshot(coverage))
		out = *coverage
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionUpdate,
			EntityType:  auditdomain.EntityCoverage,
			EntityID:    coverage.ID,
			Description: "coverage " + coverage.Name + " updated",
			OldValues:   oldValues,
			NewValues:   newValues,
		})
	})
	if err != nil {
		return domain.Coverage{}, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Coverage, error) {
	coverage, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Coverage{}, err
	}
	if coverage == nil {
		return domain.Coverage{}, domain.ErrNotFound
	}
	return *coverage, nil
}

func (s *Service) ListByPolicy(ctx context.Context, policyID snowflake.ID) ([]domain.Coverage, error) {
	return s.repo.ListByPolicy(ctx, s.db, policyID)
}

func (s *Service) Quote(ctx context.Context, id snowflake.ID, loss decimal.Decimal) (decimal.Decimal, error) {
	coverage, err := s.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.ResolveDeductible(coverage, loss), nil
}

func (s *Service) requireActivePolicy(ctx context.Context, tx *gorm.DB, policyID snowflake.ID) error {
	policy, err := s.policyRepo.FindByID(ctx, tx, policyID)
	if err != nil {
		return err
	}
	if policy == nil {
		return domain.ErrPolicyNotFound
	}
	if !policy.Editable() {
		return domain.ErrPolicyClosed
	}
	return nil
}
