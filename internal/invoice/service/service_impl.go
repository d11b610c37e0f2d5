package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	companydomain "github.com/smallbiznis/coverdesk/internal/company/domain"
	"github.com/smallbiznis/coverdesk/internal/config"
	"github.com/smallbiznis/coverdesk/internal/fiscal"
	"github.com/smallbiznis/coverdesk/internal/identifier"
	"github.com/smallbiznis/coverdesk/internal/invoice/domain"
	"github.com/smallbiznis/coverdesk/internal/permission"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
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
	Fiscal     companydomain.FiscalSource
	Generator  *identifier.Generator
	AuditSvc   auditdomain.Service
	Workflow   *config.WorkflowConfigHolder `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	policyRepo policydomain.Repository
	fiscal     companydomain.FiscalSource
	generator  *identifier.Generator
	auditSvc   auditdomain.Service
	workflow   *config.WorkflowConfigHolder
}

func New(p Params) domain.Service {
	workflow := p.Workflow
	if workflow == nil {
		workflow = config.NewStaticWorkflowConfig(config.DefaultWorkflowConfig())
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		policyRepo: p.PolicyRepo,
		fiscal:     p.Fiscal,
		generator:  p.Generator,
		auditSvc:   p.AuditSvc,
		workflow:   workflow,
	}
}

func (s *Service) Create(ctx context.Context, actor permission.Actor, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	if err := apperror.ValidateStruct(req); err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	invoiceDate := clock.Date(now)
	if req.InvoiceDate != nil {
		invoiceDate = clock.Date(*req.InvoiceDate)
	}
	dueDate := invoiceDate.AddDate(0, 0, s.workflow.Get().Invoice.DefaultDueDays)
	if req.DueDate != nil {
		dueDate = clock.Date(*req.DueDate)
	}

	var out domain.Invoice
	err := s.generator.WithRetry(ctx, identifier.Invoice, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			policy, err := s.policyRepo.FindByID(ctx, tx, req.PolicyID)
			if err != nil {
				return err
			}
			if policy == nil {
				return domain.ErrPolicyNotFound
			}

			invoice := domain.Invoice{
				ID:            s.genID.Generate(),
				PolicyID:      policy.ID,
				InvoiceDate:   invoiceDate,
				DueDate:       dueDate,
				Premium:       policy.Premium,
				PaymentStatus: domain.PaymentPending,
				Notes:         strings.TrimSpace(req.Notes),
				CreatedByID:   actor.UserID,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if req.Premium != nil {
				invoice.Premium = money.Round2(*req.Premium)
			}
			if err := s.applyFiscal(ctx, tx, &invoice); err != nil {
				return err
			}

			number, err := s.generator.Next(ctx, tx, identifier.Invoice, now.Year())
			if err != nil {
				return err
			}
			invoice.InvoiceNumber = number
			if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
				return err
			}
			out = invoice
			return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				ActorID:     actor.UserID,
				ActionType:  auditdomain.ActionCreate,
				EntityType:  auditdomain.EntityInvoice,
				EntityID:    invoice.ID,
				Description: "invoice " + invoice.InvoiceNumber + " issued for policy " + policy.PolicyNumber,
				NewValues:   auditdomain.Snapshot(invoice),
			})
		})
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("invoice issued",
		zap.String("invoice_number", out.InvoiceNumber),
		zap.String("total", out.Total.StringFixed(2)),
	)
	return out, nil
}

func (s *Service) Update(ctx context.Context, actor permission.Actor, id snowflake.ID, req domain.UpdateInvoiceRequest) (domain.Invoice, error) {
	return s.mutate(ctx, actor, id, auditdomain.ActionUpdate, func(tx *gorm.DB, invoice *domain.Invoice) (string, error) {
		if !invoice.PaymentStatus.Open() {
			return "", violation(invoice.PaymentStatus, invoice.PaymentStatus, "only open invoices can be edited")
		}
		if req.InvoiceDate != nil {
			invoice.InvoiceDate = clock.Date(*req.InvoiceDate)
		}
		if req.DueDate != nil {
			invoice.DueDate = clock.Date(*req.DueDate)
		}
		if req.Premium != nil {
			invoice.Premium = money.Round2(*req.Premium)
		}
		if req.Notes != nil {
			invoice.Notes = strings.TrimSpace(*req.Notes)
		}
		if err := s.applyFiscal(ctx, tx, invoice); err != nil {
			return "", err
		}
		return "invoice " + invoice.InvoiceNumber + " updated", nil
	})
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) ([]domain.Invoice, error) {
	filter := domain.ListFilter{PaymentStatus: domain.PaymentStatus(strings.TrimSpace(req.PaymentStatus))}
	if id := strings.TrimSpace(req.PolicyID); id != "" {
		policyID, err := snowflake.ParseString(id)
		if err != nil {
			return nil, apperror.NewValidationError("policy_id", "invalid", "policy_id is not a valid id")
		}
		filter.PolicyID = policyID
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) MarkPaid(ctx context.Context, actor permission.Actor, id snowflake.ID, paymentDate *time.Time) (domain.Invoice, error) {
	return s.mutate(ctx, actor, id, auditdomain.ActionPayment, func(tx *gorm.DB, invoice *domain.Invoice) (string, error) {
		if !invoice.PaymentStatus.Open() {
			return "", violation(invoice.PaymentStatus, domain.PaymentPaid, "only open invoices can be paid")
		}
		paidAt := clock.Date(s.clock.Now())
		if paymentDate != nil {
			paidAt = clock.Date(*paymentDate)
		}
		invoice.PaymentStatus = domain.PaymentPaid
		invoice.PaymentDate = &paidAt
		return "invoice " + invoice.InvoiceNumber + " paid", nil
	})
}

func (s *Service) Cancel(ctx context.Context, actor permission.Actor, id snowflake.ID, reason string) (domain.Invoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Invoice{}, apperror.NewValidationError("reason", "required", "a cancellation reason is required")
	}
	return s.mutate(ctx, actor, id, auditdomain.ActionStatusChange, func(tx *gorm.DB, invoice *domain.Invoice) (string, error) {
		if !invoice.PaymentStatus.Open() {
			return "", violation(invoice.PaymentStatus, domain.PaymentCancelled, "only open invoices can be cancelled")
		}
		invoice.PaymentStatus = domain.PaymentCancelled
		invoice.CancellationReason = reason
		return "invoice " + invoice.InvoiceNumber + " cancelled", nil
	})
}

func (s *Service) MarkOverdue(ctx context.Context) ([]domain.Invoice, error) {
	now := s.clock.Now()
	var flagged []domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		flagged, err = s.repo.MarkOverdue(ctx, tx, clock.Date(now), now)
		if err != nil {
			return err
		}
		for _, invoice := range flagged {
			if err := s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				ActionType:  auditdomain.ActionStatusChange,
				EntityType:  auditdomain.EntityInvoice,
				EntityID:    invoice.ID,
				Description: "invoice " + invoice.InvoiceNumber + " is overdue",
				OldValues:   map[string]any{"payment_status": domain.PaymentPending},
				NewValues:   map[string]any{"payment_status": domain.PaymentOverdue},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flagged, nil
}

func (s *Service) DueWithin(ctx context.Context, days int) ([]domain.Invoice, error) {
	from := clock.Date(s.clock.Now())
	to := from.AddDate(0, 0, days)
	return s.repo.List(ctx, s.db, domain.ListFilter{
		PaymentStatus: domain.PaymentPending,
		DueAfter:      &from,
		DueBefore:     &to,
	})
}

func (s *Service) mutate(ctx context.Context, actor permission.Actor, id snowflake.ID, action auditdomain.ActionType, fn func(tx *gorm.DB, invoice *domain.Invoice) (string, error)) (domain.Invoice, error) {
	var out domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrNotFound
		}
		before := auditdomain.Snapshot(invoice)

		description, err := fn(tx, invoice)
		if err != nil {
			return err
		}
		if err := invoice.Validate(); err != nil {
			return err
		}
		invoice.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return err
		}

		oldValues, newValues := auditdomain.Changes(before, auditdomain.Snapshot(invoice))
		out = *invoice
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  action,
			EntityType:  auditdomain.EntityInvoice,
			EntityID:    invoice.ID,
			Description: description,
			OldValues:   oldValues,
			NewValues:   newValues,
		})
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return out, nil
}

// applyFiscal recomputes every derived amount from the premium, the emission
// table in effect on the invoice date and the policy retentions.
func (s *Service) applyFiscal(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	if err := invoice.ValidateInput(); err != nil {
		return err
	}
	table, err := s.fiscal.EmissionTable(ctx, tx, invoice.InvoiceDate)
	if err != nil {
		return err
	}
	retentions, err := s.fiscal.Retentions(ctx, tx, invoice.PolicyID)
	if err != nil {
		return err
	}
	invoice.ApplyFiscal(fiscal.ComputeInvoice(invoice.Premium, table, retentions, invoice.InvoiceDate, invoice.DueDate))
	return invoice.Validate()
}

func violation(from, to domain.PaymentStatus, reason string) error {
	return &apperror.WorkflowViolation{
		Entity: "invoice",
		From:   string(from),
		To:     string(to),
		Reason: reason,
	}
}
