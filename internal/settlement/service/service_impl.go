package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	claimdomain "github.com/smallbiznis/coverdesk/internal/claim/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/config"
	"github.com/smallbiznis/coverdesk/internal/identifier"
	"github.com/smallbiznis/coverdesk/internal/observability/metrics"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/internal/settlement/domain"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	ClaimRepo claimdomain.Repository
	Generator *identifier.Generator
	AuditSvc  auditdomain.Service
	Resolver  *permission.Resolver
	Workflow  *config.WorkflowConfigHolder
	Notifier  claimdomain.StatusNotifier `optional:"true"`
	Metrics   *metrics.Workflow          `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	claimRepo claimdomain.Repository
	generator *identifier.Generator
	auditSvc  auditdomain.Service
	resolver  *permission.Resolver
	workflow  *config.WorkflowConfigHolder
	notifier  claimdomain.StatusNotifier
	metrics   *metrics.Workflow
}

func New(p Params) domain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	workflow := p.Workflow
	if workflow == nil {
		workflow = config.NewStaticWorkflowConfig(config.DefaultWorkflowConfig())
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("settlement.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		claimRepo: p.ClaimRepo,
		generator: p.Generator,
		auditSvc:  p.AuditSvc,
		resolver:  p.Resolver,
		workflow:  workflow,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, actor permission.Actor, req domain.CreateSettlementRequest) (domain.Settlement, error) {
	if err := s.resolver.Require(actor, permission.SettlementsWrite); err != nil {
		return domain.Settlement{}, err
	}
	if err := apperror.ValidateStruct(req); err != nil {
		return domain.Settlement{}, err
	}

	var out domain.Settlement
	err := s.generator.WithRetry(ctx, identifier.Settlement, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			claim, err := s.claimRepo.FindByIDForUpdate(ctx, tx, req.ClaimID)
			if err != nil {
				return err
			}
			if claim == nil {
				return domain.ErrClaimNotFound
			}
			if claim.Status != claimdomain.StatusApproved && claim.Status != claimdomain.StatusSettled {
				return domain.ErrClaimNotReady
			}
			settlement := s.draftFor(*claim, actor, domain.StatusDraft)
			if req.TotalClaimed != nil {
				settlement.TotalClaimed = *req.TotalClaimed
			}
			if req.Deductible != nil {
				settlement.Deductible = *req.Deductible
			}
			settlement.Depreciation = req.Depreciation
			settlement.Notes = strings.TrimSpace(req.Notes)

			created, err := s.insert(ctx, tx, settlement, actor)
			if err != nil {
				return err
			}
			out = created
			return nil
		})
	})
	if err != nil {
		return domain.Settlement{}, err
	}
	return out, nil
}

// OpenForClaim creates the approved settlement of a claim entering settled
// unless one already exists.
func (s *Service) OpenForClaim(ctx context.Context, tx *gorm.DB, claim claimdomain.Claim, actor permission.Actor) error {
	_, err := s.openForClaim(ctx, tx, claim, actor)
	return err
}

func (s *Service) openForClaim(ctx context.Context, tx *gorm.DB, claim claimdomain.Claim, actor permission.Actor) (domain.Settlement, error) {
	existing, err := s.repo.FindByClaimID(ctx, tx, claim.ID)
	if err != nil {
		return domain.Settlement{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	return s.insert(ctx, tx, s.draftFor(claim, actor, domain.StatusApproved), actor)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Settlement, error) {
	settlement, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Settlement{}, err
	}
	if settlement == nil {
		return domain.Settlement{}, domain.ErrNotFound
	}
	return *settlement, nil
}

func (s *Service) GetByClaim(ctx context.Context, claimID snowflake.ID) (domain.Settlement, error) {
	settlement, err := s.repo.FindByClaimID(ctx, s.db, claimID)
	if err != nil {
		return domain.Settlement{}, err
	}
	if settlement == nil {
		return domain.Settlement{}, domain.ErrNotFound
	}
	return *settlement, nil
}

func (s *Service) List(ctx context.Context, status string) ([]domain.Settlement, error) {
	return s.repo.List(ctx, s.db, domain.Status(strings.TrimSpace(status)))
}

func (s *Service) Adjust(ctx context.Context, actor permission.Actor, id snowflake.ID, req domain.AdjustSettlementRequest) (domain.Settlement, error) {
	return s.mutate(ctx, actor, permission.SettlementsWrite, id, func(tx *gorm.DB, settlement *domain.Settlement) (string, error) {
		if !settlement.Status.Adjustable() {
			return "", violation(settlement.Status, settlement.Status, "only draft or pending settlements can be adjusted")
		}
		if req.TotalClaimed != nil {
			settlement.TotalClaimed = *req.TotalClaimed
		}
		if req.Deductible != nil {
			settlement.Deductible = *req.Deductible
		}
		if req.Depreciation != nil {
			settlement.Depreciation = *req.Depreciation
		}
		if req.Notes != nil {
			settlement.Notes = strings.TrimSpace(*req.Notes)
		}
		if err := settlement.Recompute(); err != nil {
			return "", err
		}
		return "settlement " + settlement.SettlementNumber + " adjusted", nil
	})
}

func (s *Service) Submit(ctx context.Context, actor permission.Actor, id snowflake.ID) (domain.Settlement, error) {
	return s.move(ctx, actor, permission.SettlementsWrite, id, domain.StatusPendingApproval, nil)
}

func (s *Service) Approve(ctx context.Context, actor permission.Actor, id snowflake.ID) (domain.Settlement, error) {
	return s.move(ctx, actor, permission.SettlementsSign, id, domain.StatusApproved, nil)
}

func (s *Service) Reject(ctx context.Context, actor permission.Actor, id snowflake.ID, reason string) (domain.Settlement, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Settlement{}, apperror.NewValidationError("reason", "required", "a rejection reason is required")
	}
	return s.move(ctx, actor, permission.SettlementsWrite, id, domain.StatusRejected, func(settlement *domain.Settlement) {
		settlement.RejectionReason = reason
	})
}

func (s *Service) SignAndCascade(ctx context.Context, actor permission.Actor, id snowflake.ID) (domain.Settlement, error) {
	if err := s.resolver.Require(actor, permission.SettlementsSign); err != nil {
		return domain.Settlement{}, err
	}

	var (
		out      domain.Settlement
		paid     *claimdomain.Claim
		claimWas claimdomain.Status
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settlement, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if !settlement.Status.CanMoveTo(domain.StatusSigned) {
			return violation(settlement.Status, domain.StatusSigned, "only approved settlements can be signed")
		}

		now := s.clock.Now()
		deadline := now.Add(s.workflow.Get().Settlement.PaymentWindow())
		settlement.Status = domain.StatusSigned
		settlement.SignatureDate = &now
		settlement.PaymentDeadline = &deadline
		settlement.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, settlement); err != nil {
			return err
		}
		if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionStatusChange,
			EntityType:  auditdomain.EntitySettlement,
			EntityID:    settlement.ID,
			Description: "settlement " + settlement.SettlementNumber + " signed",
			OldValues:   map[string]any{"status": domain.StatusApproved},
			NewValues:   map[string]any{"status": domain.StatusSigned, "payment_deadline": deadline},
		}); err != nil {
			return err
		}
		out = *settlement

		claim, err := s.claimRepo.FindByIDForUpdate(ctx, tx, settlement.ClaimID)
		if err != nil {
			return err
		}
		if claim == nil {
			return domain.ErrClaimNotFound
		}
		if claim.Status != claimdomain.StatusSettled {
			return nil
		}
		claimWas = claim.Status
		if err := s.cascadePaid(ctx, tx, claim, *settlement, actor, now); err != nil {
			return err
		}
		paid = claim
		return nil
	})
	if err != nil {
		return domain.Settlement{}, err
	}

	s.metrics.SettlementSigned()
	s.log.Info("settlement signed",
		zap.String("settlement_number", out.SettlementNumber),
		zap.Time("payment_deadline", *out.PaymentDeadline),
	)
	if paid != nil {
		s.metrics.ClaimTransition(string(claimWas), string(paid.Status), nil)
		if s.notifier != nil {
			s.notifier.ClaimStatusChanged(ctx, *paid, claimWas, actor)
		}
	}
	return out, nil
}

func (s *Service) MarkPaid(ctx context.Context, actor permission.Actor, id snowflake.ID, req domain.MarkPaidRequest) (domain.Settlement, error) {
	if err := apperror.ValidateStruct(req); err != nil {
		return domain.Settlement{}, err
	}
	return s.move(ctx, actor, permission.SettlementsSign, id, domain.StatusPaid, func(settlement *domain.Settlement) {
		paidAt := s.clock.Now()
		if req.PaymentDate != nil {
			paidAt = *req.PaymentDate
		}
		settlement.PaymentDate = &paidAt
		settlement.PaymentReference = strings.TrimSpace(req.PaymentReference)
	})
}

func (s *Service) OverdueForPayment(ctx context.Context) ([]domain.Settlement, error) {
	return s.repo.ListPastDeadline(ctx, s.db, s.clock.Now())
}

// cascadePaid moves a settled claim to paid with a timeline entry.
func (s *Service) cascadePaid(ctx context.Context, tx *gorm.DB, claim *claimdomain.Claim, settlement domain.Settlement, actor permission.Actor, now time.Time) error {
	from := claim.Status
	claim.Status = claimdomain.StatusPaid
	if claim.PaymentDate == nil {
		claim.PaymentDate = &now
	}
	claim.UpdatedAt = now
	if err := claim.Validate(); err != nil {
		return err
	}
	if err := s.claimRepo.Update(ctx, tx, claim); err != nil {
		return err
	}
	actorID := actor.UserID
	entry := claimdomain.TimelineEntry{
		ID:        s.genID.Generate(),
		ClaimID:   claim.ID,
		EventType: claimdomain.EventStatusChange,
		OldStatus: from,
		NewStatus: claimdomain.StatusPaid,
		ActorID:   &actorID,
		Notes:     "settlement " + settlement.SettlementNumber + " signed",
		CreatedAt: now,
	}
	if err := s.claimRepo.AppendTimeline(ctx, tx, &entry); err != nil {
		return err
	}
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		ActorID:     actor.UserID,
		ActionType:  auditdomain.ActionStatusChange,
		EntityType:  auditdomain.EntityClaim,
		EntityID:    claim.ID,
		Description: "claim " + claim.ClaimNumber + " paid by settlement " + settlement.SettlementNumber,
		OldValues:   map[string]any{"status": from},
		NewValues:   map[string]any{"status": claim.Status},
	})
}

func (s *Service) draftFor(claim claimdomain.Claim, actor permission.Actor, status domain.Status) domain.Settlement {
	now := s.clock.Now()
	return domain.Settlement{
		ID:           s.genID.Generate(),
		ClaimID:      claim.ID,
		TotalClaimed: claim.PayableAmount(),
		Deductible:   claim.DeductibleAmount,
		Depreciation: money.Zero,
		Status:       status,
		CreatedByID:  actor.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *Service) insert(ctx context.Context, tx *gorm.DB, settlement domain.Settlement, actor permission.Actor) (domain.Settlement, error) {
	existing, err := s.repo.FindByClaimID(ctx, tx, settlement.ClaimID)
	if err != nil {
		return domain.Settlement{}, err
	}
	if existing != nil {
		return domain.Settlement{}, domain.ErrAlreadyExists
	}
	if err := settlement.Recompute(); err != nil {
		return domain.Settlement{}, err
	}
	number, err := s.generator.Next(ctx, tx, identifier.Settlement, settlement.CreatedAt.Year())
	if err != nil {
		return domain.Settlement{}, err
	}
	settlement.SettlementNumber = number
	if err := s.repo.Insert(ctx, tx, &settlement); err != nil {
		return domain.Settlement{}, err
	}
	err = s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		ActorID:     actor.UserID,
		ActionType:  auditdomain.ActionCreate,
		EntityType:  auditdomain.EntitySettlement,
		EntityID:    settlement.ID,
		Description: "settlement " + settlement.SettlementNumber + " opened",
		NewValues:   auditdomain.Snapshot(settlement),
	})
	return settlement, err
}

func (s *Service) move(ctx context.Context, actor permission.Actor, capability permission.Capability, id snowflake.ID, to domain.Status, apply func(*domain.Settlement)) (domain.Settlement, error) {
	return s.mutate(ctx, actor, capability, id, func(tx *gorm.DB, settlement *domain.Settlement) (string, error) {
		from := settlement.Status
		if !from.CanMoveTo(to) {
			return "", violation(from, to, "transition is not allowed")
		}
		settlement.Status = to
		if apply != nil {
			apply(settlement)
		}
		return "settlement " + settlement.SettlementNumber + " " + string(from) + " -> " + string(to), nil
	})
}

func (s *Service) mutate(ctx context.Context, actor permission.Actor, capability permission.Capability, id snowflake.ID, fn func(tx *gorm.DB, settlement *domain.Settlement) (string, error)) (domain.Settlement, error) {
	if err := s.resolver.Require(actor, capability); err != nil {
		return domain.Settlement{}, err
	}
	var out domain.Settlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settlement, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		before := auditdomain.Snapshot(settlement)
		beforeStatus := settlement.Status

		description, err := fn(tx, settlement)
		if err != nil {
			return err
		}
		settlement.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, settlement); err != nil {
			return err
		}

		action := auditdomain.ActionUpdate
		if settlement.Status != beforeStatus {
			action = auditdomain.ActionStatusChange
		}
		if settlement.Status == domain.StatusPaid {
			action = auditdomain.ActionPayment
		}
		oldValues, newValues := auditdomain.Changes(before, auditdomain.Snapshot(settlement))
		out = *settlement
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  action,
			EntityType:  auditdomain.EntitySettlement,
			EntityID:    settlement.ID,
			Description: description,
			OldValues:   oldValues,
			NewValues:   newValues,
		})
	})
	if err != nil {
		return domain.Settlement{}, err
	}
	return out, nil
}

func (s *Service) lock(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Settlement, error) {
	settlement, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, domain.ErrNotFound
	}
	return settlement, nil
}

func violation(from, to domain.Status, reason string) error {
	return &apperror.WorkflowViolation{
		Entity: "settlement",
		From:   string(from),
		To:     string(to),
		Reason: reason,
	}
}
