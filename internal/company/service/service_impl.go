package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/company/domain"
	"github.com/smallbiznis/coverdesk/internal/fiscal"
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

func New(p Params) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("company.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) CreateCompany(ctx context.Context, actor permission.Actor, req domain.CreateCompanyRequest) (domain.InsuranceCompany, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.RUC = strings.TrimSpace(req.RUC)
	if err := apperror.ValidateStruct(req); err != nil {
		return domain.InsuranceCompany{}, err
	}

	now := s.clock.Now()
	company := domain.InsuranceCompany{
		ID:           s.genID.Generate(),
		Name:         req.Name,
		RUC:          req.RUC,
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		Phone:        strings.TrimSpace(req.Phone),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertCompany(ctx, tx, &company); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateRUC
			}
			return err
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionCreate,
			EntityType:  auditdomain.EntityInsuranceCompany,
			EntityID:    company.ID,
			Description: "insurance company " + company.Name + " created",
			NewValues:   auditdomain.Snapshot(company),
		})
	})
	if err != nil {
		return domain.InsuranceCompany{}, err
	}
	return company, nil
}

func (s *Service) GetCompany(ctx context.Context, id snowflake.ID) (domain.InsuranceCompany, error) {
	company, err := s.repo.FindCompany(ctx, s.db, id)
	if err != nil {
		return domain.InsuranceCompany{}, err
	}
	if company == nil {
		return domain.InsuranceCompany{}, domain.ErrCompanyNotFound
	}
	return *company, nil
}

func (s *Service) ListCompanies(ctx context.Context) ([]domain.InsuranceCompany, error) {
	return s.repo.ListCompanies(ctx, s.db)
}

func (s *Service) CreateEmissionRight(ctx context.Context, actor permission.Actor, req domain.CreateEmissionRightRequest) (domain.EmissionRight, error) {
	validFrom := req.ValidFrom
	if validFrom.IsZero() {
		validFrom = s.clock.Now()
	}
	row := domain.EmissionRight{
		ID:        s.genID.Generate(),
		MinAmount: money.Round2(req.MinAmount),
		MaxAmount: money.Round2(req.MaxAmount),
		Fee:       money.Round2(req.Fee),
		ValidFrom: clock.Date(validFrom),
		IsActive:  true,
		CreatedAt: s.clock.Now(),
	}
	if req.ValidUntil != nil {
		until := clock.Date(*req.ValidUntil)
		row.ValidUntil = &until
	}
	if err := row.Validate(); err != nil {
		return domain.EmissionRight{}, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.ListEmissionRights(ctx, tx, nil)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if !other.IsActive || !windowsOverlap(row, other) {
				continue
			}
			if row.Tier().Overlaps(other.Tier()) {
				return domain.ErrOverlappingTier
			}
		}
		if err := s.repo.InsertEmissionRight(ctx, tx, &row); err != nil {
			return err
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionCreate,
			EntityType:  auditdomain.EntityEmissionRight,
			EntityID:    row.ID,
			Description: "emission right tier created",
			NewValues:   auditdomain.Snapshot(row),
		})
	})
	if err != nil {
		return domain.EmissionRight{}, err
	}
	return row, nil
}

func (s *Service) ListEmissionRights(ctx context.Context) ([]domain.EmissionRight, error) {
	return s.repo.ListEmissionRights(ctx, s.db, nil)
}

func (s *Service) CreateRetentionType(ctx context.Context, actor permission.Actor, req domain.CreateRetentionTypeRequest) (domain.RetentionType, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))

	var c apperror.Collector
	if err := c.Merge(apperror.ValidateStruct(req)); err != nil {
		return domain.RetentionType{}, err
	}
	if !money.IsValidPercentage(req.Percentage) {
		c.Add("percentage", "percentage_range", "percentage must be between 0 and 100")
	}
	if err := c.Err(); err != nil {
		return domain.RetentionType{}, err
	}

	row := domain.RetentionType{
		ID:          s.genID.Generate(),
		Name:        req.Name,
		Code:        req.Code,
		Percentage:  money.Round2(req.Percentage),
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   s.clock.Now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertRetentionType(ctx, tx, &row); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCode
			}
			return err
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionCreate,
			EntityType:  auditdomain.EntityRetentionType,
			EntityID:    row.ID,
			Description: "retention type " + row.Code + " created",
			NewValues:   auditdomain.Snapshot(row),
		})
	})
	if err != nil {
		return domain.RetentionType{}, err
	}
	return row, nil
}

func (s *Service) ListRetentionTypes(ctx context.Context) ([]domain.RetentionType, error) {
	return s.repo.ListRetentionTypes(ctx, s.db)
}

func (s *Service) AttachRetention(ctx context.Context, actor permission.Actor, req domain.AttachRetentionRequest) (domain.PolicyRetention, error) {
	if err := apperror.ValidateStruct(req); err != nil {
		return domain.PolicyRetention{}, err
	}
	row := domain.PolicyRetention{
		ID:               s.genID.Generate(),
		PolicyID:         req.PolicyID,
		RetentionTypeID:  req.RetentionTypeID,
		CustomPercentage: req.CustomPercentage,
		AppliesToPremium: req.AppliesToPremium,
		AppliesToTotal:   req.AppliesToTotal,
		IsActive:         true,
		CreatedAt:        s.clock.Now(),
	}
	if err := row.Validate(); err != nil {
		return domain.PolicyRetention{}, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		retentionType, err := s.repo.FindRetentionType(ctx, tx, req.RetentionTypeID)
		if err != nil {
			return err
		}
		if retentionType == nil {
			return domain.ErrRetentionTypeNotFound
		}
		if err := s.repo.InsertPolicyRetention(ctx, tx, &row); err != nil {
			return err
		}
		row.RetentionType = *retentionType
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionUpdate,
			EntityType:  auditdomain.EntityPolicy,
			EntityID:    req.PolicyID,
			Description: "retention " + retentionType.Code + " attached",
			NewValues:   auditdomain.Snapshot(row),
		})
	})
	if err != nil {
		return domain.PolicyRetention{}, err
	}
	return row, nil
}

// EmissionTable builds the fee table in effect on the given date.
func (s *Service) EmissionTable(ctx context.Context, tx *gorm.DB, on time.Time) (fiscal.EmissionTable, error) {
	if tx == nil {
		tx = s.db
	}
	date := clock.Date(on)
	rows, err := s.repo.ListEmissionRights(ctx, tx, &date)
	if err != nil {
		return fiscal.EmissionTable{}, err
	}
	tiers := make([]fiscal.Tier, 0, len(rows))
	for _, row := range rows {
		tiers = append(tiers, row.Tier())
	}
	return fiscal.NewEmissionTable(tiers)
}

func (s *Service) Retentions(ctx context.Context, tx *gorm.DB, policyID snowflake.ID) ([]fiscal.Retention, error) {
	if tx == nil {
		tx = s.db
	}
	rows, err := s.repo.ListActivePolicyRetentions(ctx, tx, policyID)
	if err != nil {
		return nil, err
	}
	out := make([]fiscal.Retention, 0, len(rows))
	for _, row := range rows {
		if !row.RetentionType.IsActive {
			continue
		}
		out = append(out, row.Fiscal())
	}
	return out, nil
}

func windowsOverlap(a, b domain.EmissionRight) bool {
	aEnd, bEnd := a.ValidUntil, b.ValidUntil
	if aEnd != nil && aEnd.Before(b.ValidFrom) {
		return false
	}
	if bEnd != nil && bEnd.Before(a.ValidFrom) {
		return false
	}
	return true
}

var (
	_ domain.Service      = (*Service)(nil)
	_ domain.FiscalSource = (*Service)(nil)
)
