package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	brokerdomain "github.com/smallbiznis/coverdesk/internal/broker/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	companydomain "github.com/smallbiznis/coverdesk/internal/company/domain"
	coveragedomain "github.com/smallbiznis/coverdesk/internal/coverage/domain"
	"github.com/smallbiznis/coverdesk/internal/fiscal"
	"github.com/smallbiznis/coverdesk/internal/identifier"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/internal/policy/domain"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/db"
	"github.com/smallbiznis/coverdesk/pkg/money"
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
	Fiscal       companydomain.FiscalSource
	CompanyRepo  companydomain.Repository
	BrokerRepo   brokerdomain.Repository
	UserRepo     userdomain.Repository
	CoverageRepo coveragedomain.Repository
	Generator    *identifier.Generator
	AuditSvc     auditdomain.Service
	Resolver     *permission.Resolver
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	fiscal       companydomain.FiscalSource
	companyRepo  companydomain.Repository
	brokerRepo   brokerdomain.Repository
	userRepo     userdomain.Repository
	coverageRepo coveragedomain.Repository
	generator    *identifier.Generator
	auditSvc     auditdomain.Service
	resolver     *permission.Resolver
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("policy.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		fiscal:       p.Fiscal,
		companyRepo:  p.CompanyRepo,
		brokerRepo:   p.BrokerRepo,
		userRepo:     p.UserRepo,
		coverageRepo: p.CoverageRepo,
		generator:    p.Generator,
		auditSvc:     p.AuditSvc,
		resolver:     p.Resolver,
	}
}

func (s *Service) Create(ctx context.Context, actor permission.Actor, req domain.CreatePolicyRequest) (domain.Policy, error) {
	if err := s.resolver.Require(actor, permission.PoliciesWrite); err != nil {
		return domain.Policy{}, err
	}
	if err := apperror.ValidateStruct(req); err != nil {
		return domain.Policy{}, err
	}

	now := s.clock.Now()
	issueDate := clock.Date(now)
	if req.IssueDate != nil {
		issueDate = clock.Date(*req.IssueDate)
	}

	number := strings.TrimSpace(req.PolicyNumber)
	if number != "" && !identifier.IsValid(number) {
		return domain.Policy{}, apperror.NewValidationError("policy_number", "format", "policy_number must look like POL-YYYY-NNNNNN")
	}

	var out domain.Policy
	create := func() error {
		policy := domain.Policy{
			ID:                s.genID.Generate(),
			PolicyNumber:      number,
			InsurerID:         req.InsurerID,
			BrokerID:          req.BrokerID,
			Group:             strings.TrimSpace(req.Group),
			Subgroup:          strings.TrimSpace(req.Subgroup),
			Branch:            strings.TrimSpace(req.Branch),
			StartDate:         clock.Date(req.StartDate),
			EndDate:           clock.Date(req.EndDate),
			IssueDate:         issueDate,
			InsuredValue:      money.Round2(req.InsuredValue),
			Premium:           money.Round2(req.Premium),
			Status:            domain.StatusActive,
			ResponsibleUserID: req.ResponsibleUserID,
			Notes:             strings.TrimSpace(req.Notes),
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.checkReferences(ctx, tx, policy.InsurerID, policy.BrokerID, policy.ResponsibleUserID); err != nil {
				return err
			}
			if err := s.applyFiscal(ctx, tx, &policy); err != nil {
				return err
			}
			if policy.PolicyNumber == "" {
				code, err := s.generator.Next(ctx, tx, identifier.Policy, now.Year())
				if err != nil {
					return err
				}
				policy.PolicyNumber = code
			}
			if err := s.repo.Insert(ctx, tx, &policy); err != nil {
				return err
			}
			out = policy
			return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				ActorID:     actor.UserID,
				ActionType:  auditdomain.ActionCreate,
				EntityType:  auditdomain.EntityPolicy,
				EntityID:    policy.ID,
				Description: "policy " + policy.PolicyNumber + " created",
				NewValues:   auditdomain.Snapshot(policy),
			})
		})
	}

	var err error
	if number != "" {
		if err = create(); err != nil && db.IsDuplicateKeyErr(err) {
			return domain.Policy{}, domain.ErrDuplicateNumber
		}
	} else {
		err = s.generator.WithRetry(ctx, identifier.Policy, create)
	}
	if err != nil {
		return domain.Policy{}, err
	}

	s.log.Info("policy created",
		zap.String("policy_number", out.PolicyNumber),
		zap.String("policy_id", out.ID.String()),
	)
	return out, nil
}

func (s *Service) Update(ctx context.Context, actor permission.Actor, id snowflake.ID, req domain.UpdatePolicyRequest) (domain.Policy, error) {
	if err := s.resolver.Require(actor, permission.PoliciesWrite); err != nil {
		return domain.Policy{}, err
	}
	var out domain.Policy
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		policy, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if !policy.Editable() {
			return &apperror.WorkflowViolation{
				Entity: "policy",
				From:   string(policy.Status),
				To:     string(policy.Status),
				Reason: "only active policies can be edited",
			}
		}
		before := auditdomain.Snapshot(policy)

		if req.BrokerID != nil {
			if *req.BrokerID == 0 {
				policy.BrokerID = nil
			} else {
				policy.BrokerID = req.BrokerID
			}
		}
		if req.Group != nil {
			policy.Group = strings.TrimSpace(*req.Group)
		}
		if req.Subgroup != nil {
			policy.Subgroup = strings.TrimSpace(*req.Subgroup)
		}
		if req.Branch != nil {
			policy.Branch = strings.TrimSpace(*req.Branch)
		}
		if req.StartDate != nil {
			policy.StartDate = clock.Date(*req.StartDate)
		}
		if req.EndDate != nil {
			policy.EndDate = clock.Date(*req.EndDate)
		}
		if req.InsuredValue != nil {
			policy.InsuredValue = money.Round2(*req.InsuredValue)
		}
		if req.Premium != nil {
			policy.Premium = money.Round2(*req.Premium)
		}
		if req.ResponsibleUserID != nil {
			policy.ResponsibleUserID = *req.ResponsibleUserID
		}
		if req.Notes != nil {
			policy.Notes = strings.TrimSpace(*req.Notes)
		}

		if err := s.checkReferences(ctx, tx, policy.InsurerID, policy.BrokerID, policy.ResponsibleUserID); err != nil {
			return err
		}
		if err := s.applyFiscal(ctx, tx, policy); err != nil {
			return err
		}
		policy.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, policy); err != nil {
			return err
		}

		oldValues, newValues := auditdomain.Changes(before, auditdomain.Snapshot(policy))
		out = *policy
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionUpdate,
			EntityType:  auditdomain.EntityPolicy,
			EntityID:    policy.ID,
			Description: "policy " + policy.PolicyNumber + " updated",
			OldValues:   oldValues,
			NewValues:   newValues,
		})
	})
	if err != nil {
		return domain.Policy{}, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Policy, error) {
	policy, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Policy{}, err
	}
	if policy == nil {
		return domain.Policy{}, domain.ErrNotFound
	}
	return *policy, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPolicyRequest) ([]domain.Policy, error) {
	filter := domain.ListFilter{Status: domain.Status(strings.TrimSpace(req.Status))}
	if req.InsurerID != "" {
		insurerID, err := snowflake.ParseString(req.InsurerID)
		if err != nil {
			return nil, apperror.NewValidationError("insurer_id", "invalid", "insurer_id is not a valid id")
		}
		filter.InsurerID = insurerID
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) Renew(ctx context.Context, actor permission.Actor, id snowflake.ID, req domain.RenewPolicyRequest) (domain.Policy, domain.Policy, error) {
	if err := s.resolver.Require(actor, permission.PoliciesWrite); err != nil {
		return domain.Policy{}, domain.Policy{}, err
	}
	var renewed, successor domain.Policy
	now := s.clock.Now()

	create := func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.lock(ctx, tx, id)
			if err != nil {
				return err
			}
			if current.Status != domain.StatusActive && current.Status != domain.StatusExpired {
				return &apperror.WorkflowViolation{
					Entity: "policy",
					From:   string(current.Status),
					To:     string(domain.StatusRenewed),
					Reason: "only active or expired policies can be renewed",
				}
			}

			next := *current
			next.ID = s.genID.Generate()
			next.PolicyNumber = ""
			next.StartDate = current.EndDate
			next.EndDate = current.EndDate.AddDate(1, 0, 0)
			if req.EndDate != nil {
				next.EndDate = clock.Date(*req.EndDate)
			}
			if req.InsuredValue != nil {
				next.InsuredValue = money.Round2(*req.InsuredValue)
			}
			if req.Premium != nil {
				next.Premium = money.Round2(*req.Premium)
			}
			next.IssueDate = clock.Date(now)
			next.Status = domain.StatusActive
			next.RenewedFromID = &current.ID
			next.CancellationReason = ""
			next.CreatedAt = now
			next.UpdatedAt = now

			if err := s.applyFiscal(ctx, tx, &next); err != nil {
				return err
			}
			code, err := s.generator.Next(ctx, tx, identifier.Policy, now.Year())
			if err != nil {
				return err
			}
			next.PolicyNumber = code
			if err := s.repo.Insert(ctx, tx, &next); err != nil {
				return err
			}
			if err := s.copyCoverages(ctx, tx, current.ID, next.ID, now); err != nil {
				return err
			}

			oldStatus := current.Status
			current.Status = domain.StatusRenewed
			current.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, current); err != nil {
				return err
			}

			if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				ActorID:     actor.UserID,
				ActionType:  auditdomain.ActionStatusChange,
				EntityType:  auditdomain.EntityPolicy,
				EntityID:    current.ID,
				Description: "policy " + current.PolicyNumber + " renewed as " + next.PolicyNumber,
				OldValues:   map[string]any{"status": oldStatus},
				NewValues:   map[string]any{"status": current.Status, "successor_id": next.ID.String()},
			}); err != nil {
				return err
			}
			renewed, successor = *current, next
			return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				ActorID:     actor.UserID,
				ActionType:  auditdomain.ActionCreate,
				EntityType:  auditdomain.EntityPolicy,
				EntityID:    next.ID,
				Description: "policy " + next.PolicyNumber + " issued by renewal",
				NewValues:   auditdomain.Snapshot(next),
			})
		})
	}

	if err := s.generator.WithRetry(ctx, identifier.Policy, create); err != nil {
		return domain.Policy{}, domain.Policy{}, err
	}
	return renewed, successor, nil
}

func (s *Service) Cancel(ctx context.Context, actor permission.Actor, id snowflake.ID, reason string) (domain.Policy, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Policy{}, apperror.NewValidationError("reason", "required", "a cancellation reason is required")
	}
	return s.changeStatus(ctx, actor, id, domain.StatusCancelled, func(p *domain.Policy) error {
		if p.Status != domain.StatusActive {
			return errors.New("only active policies can be cancelled")
		}
		p.CancellationReason = reason
		return nil
	})
}

func (s *Service) MarkExpired(ctx context.Context, actor permission.Actor, id snowflake.ID) (domain.Policy, error) {
	now := s.clock.Now()
	return s.changeStatus(ctx, actor, id, domain.StatusExpired, func(p *domain.Policy) error {
		if p.Status != domain.StatusActive {
			return errors.New("only active policies can expire")
		}
		if !p.IsPastEnd(now) {
			return errors.New("policy end date has not passed")
		}
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, actor permission.Actor, id snowflake.ID) error {
	if err := s.resolver.Require(actor, permission.PoliciesWrite); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		policy, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		refs, err := s.repo.CountReferences(ctx, tx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrInUse
		}
		if err := tx.Where("policy_id = ?", id).Delete(&coveragedomain.Coverage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("policy_id = ?", id).Delete(&companydomain.PolicyRetention{}).Error; err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionDelete,
			EntityType:  auditdomain.EntityPolicy,
			EntityID:    policy.ID,
			Description: "policy " + policy.PolicyNumber + " deleted",
			OldValues:   auditdomain.Snapshot(policy),
		})
	})
}

func (s *Service) ExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Policy, error) {
	start, end := clock.Date(from), clock.Date(to)
	return s.repo.List(ctx, s.db, domain.ListFilter{
		Status:    domain.StatusActive,
		EndAfter:  &start,
		EndBefore: &end,
	})
}

func (s *Service) changeStatus(ctx context.Context, actor permission.Actor, id snowflake.ID, to domain.Status, guard func(*domain.Policy) error) (domain.Policy, error) {
	if err := s.resolver.Require(actor, permission.PoliciesWrite); err != nil {
		return domain.Policy{}, err
	}
	var out domain.Policy
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		policy, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		from := policy.Status
		if err := guard(policy); err != nil {
			return &apperror.WorkflowViolation{
				Entity: "policy",
				From:   string(from),
				To:     string(to),
				Reason: err.Error(),
			}
		}
		policy.Status = to
		policy.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, policy); err != nil {
			return err
		}
		out = *policy
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionStatusChange,
			EntityType:  auditdomain.EntityPolicy,
			EntityID:    policy.ID,
			Description: "policy " + policy.PolicyNumber + " " + string(from) + " -> " + string(to),
			OldValues:   map[string]any{"status": from},
			NewValues:   map[string]any{"status": to},
		})
	})
	if err != nil {
		return domain.Policy{}, err
	}
	return out, nil
}

func (s *Service) lock(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Policy, error) {
	policy, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, domain.ErrNotFound
	}
	return policy, nil
}

// applyFiscal validates the policy and recomputes its fiscal fields from the
// emission table in effect on the issue date.
func (s *Service) applyFiscal(ctx context.Context, tx *gorm.DB, policy *domain.Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	table, err := s.fiscal.EmissionTable(ctx, tx, policy.IssueDate)
	if err != nil {
		return err
	}
	policy.ApplyFiscal(fiscal.Compute(policy.Premium, table))
	return nil
}

func (s *Service) checkReferences(ctx context.Context, tx *gorm.DB, insurerID snowflake.ID, brokerID *snowflake.ID, userID snowflake.ID) error {
	if insurerID != 0 {
		company, err := s.companyRepo.FindCompany(ctx, tx, insurerID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrInsurerNotFound
		}
	}
	if brokerID != nil {
		broker, err := s.brokerRepo.FindByID(ctx, tx, *brokerID)
		if err != nil {
			return err
		}
		if broker == nil {
			return domain.ErrBrokerNotFound
		}
	}
	if userID != 0 {
		user, err := s.userRepo.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrUserNotFound
		}
	}
	return nil
}

func (s *Service) copyCoverages(ctx context.Context, tx *gorm.DB, fromID, toID snowflake.ID, now time.Time) error {
	coverages, err := s.coverageRepo.ListByPolicy(ctx, tx, fromID)
	if err != nil {
		return err
	}
	for _, c := range coverages {
		c.ID = s.genID.Generate()
		c.PolicyID = toID
		c.CreatedAt = now
		c.UpdatedAt = now
		if err := s.coverageRepo.Insert(ctx, tx, &c); err != nil {
			return err
		}
	}
	return nil
}
