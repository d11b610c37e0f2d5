package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	claimdomain "github.com/smallbiznis/coverdesk/internal/claim/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/config"
	invoicedomain "github.com/smallbiznis/coverdesk/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/coverdesk/internal/notification/domain"
	"github.com/smallbiznis/coverdesk/internal/observability/metrics"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	settlementdomain "github.com/smallbiznis/coverdesk/internal/settlement/domain"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

const (
	JobClaimSLA          = "claim_sla"
	JobSettlementOverdue = "settlement_overdue"
	JobPolicyExpiring    = "policy_expiring"
	JobPolicyExpired     = "policy_expired"
	JobInvoiceOverdue    = "invoice_overdue"
	JobInvoiceDue        = "invoice_due"
)

type claimSource interface {
	SLABreaches(ctx context.Context) ([]claimdomain.SLAReport, error)
}

type settlementSource interface {
	OverdueForPayment(ctx context.Context) ([]settlementdomain.Settlement, error)
}

type policySource interface {
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]policydomain.Policy, error)
}

type invoiceSource interface {
	MarkOverdue(ctx context.Context) ([]invoicedomain.Invoice, error)
	DueWithin(ctx context.Context, days int) ([]invoicedomain.Invoice, error)
}

type staffSource interface {
	Staff(ctx context.Context) ([]userdomain.User, error)
}

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        Config
	Leader        Leader
	ClaimSvc      claimdomain.Service
	SettlementSvc settlementdomain.Service
	PolicySvc     policydomain.Service
	InvoiceSvc    invoicedomain.Service
	UserSvc       userdomain.Service
	Dispatcher    notificationdomain.Dispatcher
	Workflow      *config.WorkflowConfigHolder `optional:"true"`
	Metrics       *metrics.Workflow            `optional:"true"`
}

// Scheduler evaluates alert conditions and hands the results to the
// notification dispatcher. Apart from flagging overdue invoices it only reads.
type Scheduler struct {
	log         *zap.Logger
	cfg         Config
	genID       *snowflake.Node
	clock       clock.Clock
	leader      Leader
	claims      claimSource
	settlements settlementSource
	policies    policySource
	invoices    invoiceSource
	staff       staffSource
	dispatcher  notificationdomain.Dispatcher
	workflow    *config.WorkflowConfigHolder
	metrics     *metrics.Workflow
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.ClaimSvc == nil || p.SettlementSvc == nil ||
		p.PolicySvc == nil || p.InvoiceSvc == nil || p.UserSvc == nil || p.Dispatcher == nil {
		return nil, ErrInvalidConfig
	}
	leader := p.Leader
	if leader == nil {
		leader = LocalLeader{}
	}
	workflow := p.Workflow
	if workflow == nil {
		workflow = config.NewStaticWorkflowConfig(config.DefaultWorkflowConfig())
	}
	return &Scheduler{
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		genID:       p.GenID,
		clock:       p.Clock,
		leader:      leader,
		claims:      p.ClaimSvc,
		settlements: p.SettlementSvc,
		policies:    p.PolicySvc,
		invoices:    p.InvoiceSvc,
		staff:       p.UserSvc,
		dispatcher:  p.Dispatcher,
		workflow:    workflow,
		metrics:     p.Metrics,
	}, nil
}

type job struct {
	name string
	run  func(context.Context) (int, error)
}

func (s *Scheduler) jobs() []job {
	return []job{
		{JobClaimSLA, s.ClaimSLAJob},
		{JobSettlementOverdue, s.SettlementOverdueJob},
		{JobPolicyExpiring, s.PolicyExpiringJob},
		{JobPolicyExpired, s.PolicyExpiredJob},
		{JobInvoiceOverdue, s.InvoiceOverdueJob},
		{JobInvoiceDue, s.InvoiceDueJob},
	}
}

// RunOnce runs every enabled job when this replica holds the leader lock.
func (s *Scheduler) RunOnce(parent context.Context) error {
	release, ok, err := s.leader.Acquire(parent, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire scheduler lock: %w", err)
	}
	if !ok {
		s.log.Debug("scheduler.pass.skipped", zap.String("reason", "not_leader"))
		return nil
	}
	defer release()

	var errs error
	for _, j := range s.jobs() {
		if !s.isJobEnabled(j.name) {
			continue
		}
		errs = errors.Join(errs, s.runJob(parent, j.name, s.cfg.JobTimeout, j.run))
	}
	return errs
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(context.Context) (int, error)) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name)
	s.logJobStart(ctx, run)

	sent, err := fn(ctx)
	run.AddProcessed(sent)
	if err != nil {
		run.IncError()
	}
	s.metrics.SchedulerJob(name, time.Since(start), err)
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next pass picks up the rest
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) isJobEnabled(name string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, name) {
			return true
		}
	}
	return false
}
