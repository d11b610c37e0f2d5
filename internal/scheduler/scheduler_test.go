package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	claimdomain "github.com/smallbiznis/coverdesk/internal/claim/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/config"
	invoicedomain "github.com/smallbiznis/coverdesk/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/coverdesk/internal/notification/domain"
	"github.com/smallbiznis/coverdesk/internal/observability/metrics"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	settlementdomain "github.com/smallbiznis/coverdesk/internal/settlement/domain"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

type fakeClaims struct{ reports []claimdomain.SLAReport }

func (f *fakeClaims) SLABreaches(context.Context) ([]claimdomain.SLAReport, error) {
	return f.reports, nil
}

type fakeSettlements struct{ overdue []settlementdomain.Settlement }

func (f *fakeSettlements) OverdueForPayment(context.Context) ([]settlementdomain.Settlement, error) {
	return f.overdue, nil
}

type fakePolicies struct {
	policies []policydomain.Policy
	err      error
}

func (f *fakePolicies) ExpiringBetween(_ context.Context, from, to time.Time) ([]policydomain.Policy, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []policydomain.Policy
	for _, p := range f.policies {
		if !p.EndDate.Before(from) && !p.EndDate.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeInvoices struct {
	pending     []invoicedomain.Invoice
	markedCalls int
}

func (f *fakeInvoices) MarkOverdue(context.Context) ([]invoicedomain.Invoice, error) {
	f.markedCalls++
	var flagged, kept []invoicedomain.Invoice
	for _, inv := range f.pending {
		if inv.DueDate.Before(clock.Date(now)) {
			flagged = append(flagged, inv)
		} else {
			kept = append(kept, inv)
		}
	}
	f.pending = kept
	return flagged, nil
}

func (f *fakeInvoices) DueWithin(_ context.Context, days int) ([]invoicedomain.Invoice, error) {
	var out []invoicedomain.Invoice
	limit := clock.Date(now).AddDate(0, 0, days)
	for _, inv := range f.pending {
		if !inv.DueDate.After(limit) {
			out = append(out, inv)
		}
	}
	return out, nil
}

type fakeStaff struct{ users []userdomain.User }

func (f *fakeStaff) Staff(context.Context) ([]userdomain.User, error) {
	return f.users, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	seen map[string]bool
	sent []notificationdomain.Message
}

func (d *fakeDispatcher) Notify(ctx context.Context, msgs ...notificationdomain.Message) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msgs...)
	return len(msgs)
}

func (d *fakeDispatcher) NotifyOnce(ctx context.Context, msg notificationdomain.Message) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	key := fmt.Sprintf("%d/%s/%s/%d", msg.Recipient, msg.Type, msg.RelatedObjectType, msg.RelatedObjectID)
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	d.sent = append(d.sent, msg)
	return true, nil
}

func (d *fakeDispatcher) countByType() map[notificationdomain.Type]int {
	out := map[notificationdomain.Type]int{}
	for _, m := range d.sent {
		out[m.Type]++
	}
	return out
}

type fakeLeader struct{ deny bool }

func (l fakeLeader) Acquire(context.Context, time.Duration) (func(), bool, error) {
	if l.deny {
		return nil, false, nil
	}
	return func() {}, true, nil
}

type deps struct {
	claims      *fakeClaims
	settlements *fakeSettlements
	policies    *fakePolicies
	invoices    *fakeInvoices
	staff       *fakeStaff
	dispatcher  *fakeDispatcher
}

func newTestScheduler(t *testing.T, cfg Config, leader Leader, m *metrics.Workflow) (*Scheduler, *deps) {
	t.Helper()
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)

	d := &deps{
		claims:      &fakeClaims{},
		settlements: &fakeSettlements{},
		policies:    &fakePolicies{},
		invoices:    &fakeInvoices{},
		staff:       &fakeStaff{},
		dispatcher:  &fakeDispatcher{},
	}
	s := &Scheduler{
		log:         zap.NewNop(),
		cfg:         cfg.withDefaults(),
		genID:       node,
		clock:       clock.NewFakeClock(now),
		leader:      leader,
		claims:      d.claims,
		settlements: d.settlements,
		policies:    d.policies,
		invoices:    d.invoices,
		staff:       d.staff,
		dispatcher:  d.dispatcher,
		workflow:    config.NewStaticWorkflowConfig(config.DefaultWorkflowConfig()),
		metrics:     m,
	}
	return s, d
}

func seed(d *deps) (assignee, manager, admin snowflake.ID) {
	assignee, manager, admin = 101, 102, 103
	today := clock.Date(now)
	deadline := now.Add(-time.Hour)

	d.staff.users = []userdomain.User{{ID: manager}, {ID: admin}}
	d.claims.reports = []claimdomain.SLAReport{
		{
			Claim: claimdomain.Claim{ID: 1, ClaimNumber: "SIN-2026-000001", AssignedToID: &assignee},
			Status: claimdomain.SLAStatus{
				DaysSinceDocumentRequest: 31,
				Breaches:                 []claimdomain.Breach{claimdomain.BreachDocumentDeadline, claimdomain.BreachHardCap},
			},
		},
		{
			Claim: claimdomain.Claim{ID: 2, ClaimNumber: "SIN-2026-000002"},
			Status: claimdomain.SLAStatus{
				BusinessDaysSinceSubmission: 9,
				Breaches:                    []claimdomain.Breach{claimdomain.BreachInsurerResponse},
			},
		},
	}
	d.settlements.overdue = []settlementdomain.Settlement{{
		ID:               3,
		SettlementNumber: "FIN-2026-000001",
		FinalPayable:     money.MustParse("1200"),
		PaymentDeadline:  &deadline,
		CreatedByID:      manager,
	}}
	d.policies.policies = []policydomain.Policy{
		{ID: 4, PolicyNumber: "POL-2026-000001", EndDate: today.AddDate(0, 0, 5), ResponsibleUserID: manager},
		{ID: 5, PolicyNumber: "POL-2026-000002", EndDate: today.AddDate(0, 0, -2), ResponsibleUserID: manager},
		{ID: 6, PolicyNumber: "POL-2026-000003", EndDate: today.AddDate(0, 3, 0), ResponsibleUserID: manager},
	}
	d.invoices.pending = []invoicedomain.Invoice{
		{ID: 7, InvoiceNumber: "INV-2026-000001", DueDate: today.AddDate(0, 0, -3), Total: money.MustParse("100"), CreatedByID: manager},
		{ID: 8, InvoiceNumber: "INV-2026-000002", DueDate: today.AddDate(0, 0, 4), Total: money.MustParse("200"), CreatedByID: manager},
	}
	return assignee, manager, admin
}

func TestRunOnceAlertsOncePerObject(t *testing.T) {
	s, d := newTestScheduler(t, Config{}, fakeLeader{}, nil)
	assignee, manager, admin := seed(d)

	require.NoError(t, s.RunOnce(context.Background()))

	counts := d.dispatcher.countByType()
	assert.Equal(t, 1, counts[notificationdomain.TypeClaimDocumentDeadline])
	assert.Equal(t, 1, counts[notificationdomain.TypeClaimHardCap])
	assert.Equal(t, 2, counts[notificationdomain.TypeClaimInsurerResponse])
	assert.Equal(t, 1, counts[notificationdomain.TypeSettlementPaymentOverdue])
	assert.Equal(t, 1, counts[notificationdomain.TypePolicyExpiring])
	assert.Equal(t, 1, counts[notificationdomain.TypePolicyExpired])
	assert.Equal(t, 1, counts[notificationdomain.TypeInvoiceOverdue])
	assert.Equal(t, 1, counts[notificationdomain.TypeInvoicePaymentDue])

	var insurerRecipients []snowflake.ID
	for _, m := range d.dispatcher.sent {
		switch m.Type {
		case notificationdomain.TypeClaimHardCap:
			assert.Equal(t, assignee, m.Recipient)
			assert.Equal(t, notificationdomain.PriorityUrgent, m.Priority)
		case notificationdomain.TypeClaimInsurerResponse:
			insurerRecipients = append(insurerRecipients, m.Recipient)
		case notificationdomain.TypePolicyExpiring:
			assert.EqualValues(t, 4, m.RelatedObjectID)
			assert.Equal(t, notificationdomain.PriorityHigh, m.Priority)
			assert.Contains(t, m.Message, "expires in 5 days")
		case notificationdomain.TypeSettlementPaymentOverdue:
			assert.Contains(t, m.Message, "1200.00")
		}
	}
	assert.ElementsMatch(t, []snowflake.ID{manager, admin}, insurerRecipients)

	total := len(d.dispatcher.sent)
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Len(t, d.dispatcher.sent, total)
	assert.Equal(t, 2, d.invoices.markedCalls)
}

func TestRunOnceSkipsWithoutLeadership(t *testing.T) {
	s, d := newTestScheduler(t, Config{}, fakeLeader{deny: true}, nil)
	seed(d)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, d.dispatcher.sent)
	assert.Zero(t, d.invoices.markedCalls)
}

func TestEnabledJobsFilter(t *testing.T) {
	s, d := newTestScheduler(t, Config{EnabledJobs: []string{"POLICY_EXPIRING"}}, fakeLeader{}, nil)
	seed(d)

	require.NoError(t, s.RunOnce(context.Background()))
	require.Len(t, d.dispatcher.sent, 1)
	assert.Equal(t, notificationdomain.TypePolicyExpiring, d.dispatcher.sent[0].Type)
	assert.Zero(t, d.invoices.markedCalls)
}

func TestJobFailureDoesNotStopOtherJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, d := newTestScheduler(t, Config{}, fakeLeader{}, metrics.New(reg))
	seed(d)
	d.policies.err = errors.New("db unavailable")

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobPolicyExpiring)
	assert.Contains(t, err.Error(), JobPolicyExpired)
	assert.Equal(t, 1, d.dispatcher.countByType()[notificationdomain.TypeInvoiceOverdue])

	assert.Equal(t, 1.0, counterValue(t, reg, "coverdesk_scheduler_job_runs_total", map[string]string{"job": JobPolicyExpiring, "outcome": "error"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "coverdesk_scheduler_job_runs_total", map[string]string{"job": JobClaimSLA, "outcome": "success"}))
}

func TestRunJobTimeoutIsSoft(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, _ := newTestScheduler(t, Config{}, fakeLeader{}, metrics.New(reg))

	err := s.runJob(context.Background(), "slow_job", 5*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, counterValue(t, reg, "coverdesk_scheduler_job_runs_total", map[string]string{"job": "slow_job", "outcome": "error"}))
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
