package service

import (
	"context"
	"errors"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/identifier"
	"github.com/smallbiznis/coverdesk/internal/invoice/domain"
	"github.com/smallbiznis/coverdesk/internal/invoice/repository"
	"github.com/smallbiznis/coverdesk/internal/testutil/fixture"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(env *fixture.Env) domain.Service {
	return New(Params{
		DB:         env.DB,
		Log:        env.Log,
		GenID:      env.Node,
		Clock:      env.Clock,
		Repo:       repository.Provide(),
		PolicyRepo: env.Policies,
		Fiscal:     env.Fiscal,
		Generator:  env.Generator,
		AuditSvc:   env.Audit,
	})
}

func at(days int) *time.Time {
	t := fixture.Now.AddDate(0, 0, days)
	return &t
}

func TestCreateDefaultsFromPolicy(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	policy := env.Policy(t, "1000.00")

	invoice, err := svc.Create(context.Background(), fixture.Actor(env.Manager), domain.CreateInvoiceRequest{PolicyID: policy.ID})
	require.NoError(t, err)

	assert.True(t, identifier.IsValid(invoice.InvoiceNumber))
	assert.Equal(t, "INV-2026-000001", invoice.InvoiceNumber)
	assert.Equal(t, domain.PaymentPending, invoice.PaymentStatus)
	assert.True(t, invoice.Premium.Equal(money.MustParse("1000")))
	assert.Equal(t, 30, int(invoice.DueDate.Sub(invoice.InvoiceDate).Hours()/24))
	// A thirty day term earns no discount.
	assert.True(t, invoice.EarlyPaymentDiscount.IsZero())
	assert.Equal(t, "1207.50", invoice.Total.StringFixed(2))
	assert.EqualValues(t, 1, env.AuditCount(t, auditdomain.EntityInvoice, invoice.ID))
}

func TestCreateAppliesRetentionsAndDiscount(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	policy := env.Policy(t, "1000.00")
	env.Retention(t, policy, "RP1", "1", true, false)
	env.Retention(t, policy, "RT2", "2", false, true)

	invoice, err := svc.Create(context.Background(), fixture.Actor(env.Manager), domain.CreateInvoiceRequest{
		PolicyID: policy.ID,
		DueDate:  at(20),
	})
	require.NoError(t, err)

	assert.Equal(t, "52.50", invoice.EarlyPaymentDiscount.StringFixed(2))
	assert.Equal(t, "31.00", invoice.Withholding.StringFixed(2))
	assert.Equal(t, "1124.00", invoice.Total.StringFixed(2))
}

func TestCreateRejectsNegativeTotal(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	policy := env.Policy(t, "1000.00")
	env.Retention(t, policy, "ALL", "100", true, true)

	_, err := svc.Create(context.Background(), fixture.Actor(env.Manager), domain.CreateInvoiceRequest{PolicyID: policy.ID})

	var verr *apperror.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.True(t, verr.Has("total"))

	var count int64
	require.NoError(t, env.DB.Model(&domain.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateUnknownPolicy(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)

	_, err := svc.Create(context.Background(), fixture.Actor(env.Manager), domain.CreateInvoiceRequest{PolicyID: env.Node.Generate()})
	assert.ErrorIs(t, err, domain.ErrPolicyNotFound)
}

func TestUpdateRecomputesOpenInvoice(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	policy := env.Policy(t, "1000.00")
	ctx := context.Background()

	invoice, err := svc.Create(ctx, fixture.Actor(env.Manager), domain.CreateInvoiceRequest{PolicyID: policy.ID})
	require.NoError(t, err)

	premium := money.MustParse("2000")
	updated, err := svc.Update(ctx, fixture.Actor(env.Manager), invoice.ID, domain.UpdateInvoiceRequest{Premium: &premium})
	require.NoError(t, err)
	assert.Equal(t, "2090.00", updated.TaxBase.StringFixed(2))
	assert.Equal(t, "2403.50", updated.Total.StringFixed(2))

	_, err = svc.MarkPaid(ctx, fixture.Actor(env.Manager), invoice.ID, nil)
	require.NoError(t, err)

	_, err = svc.Update(ctx, fixture.Actor(env.Manager), invoice.ID, domain.UpdateInvoiceRequest{Premium: &premium})
	assert.True(t, apperror.IsWorkflowViolation(err))
}

func TestMarkPaidRejectsPaymentBeforeInvoiceDate(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	policy := env.Policy(t, "1000.00")
	ctx := context.Background()

	invoice, err := svc.Create(ctx, fixture.Actor(env.Manager), domain.CreateInvoiceRequest{PolicyID: policy.ID})
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, fixture.Actor(env.Manager), invoice.ID, at(-3))
	assert.True(t, apperror.IsValidation(err))

	paid, err := svc.MarkPaid(ctx, fixture.Actor(env.Manager), invoice.ID, at(2))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, paid.PaymentStatus)
	require.NotNil(t, paid.PaymentDate)
}

func TestCancelRequiresReason(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	policy := env.Policy(t, "1000.00")
	ctx := context.Background()

	invoice, err := svc.Create(ctx, fixture.Actor(env.Manager), domain.CreateInvoiceRequest{PolicyID: policy.ID})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, fixture.Actor(env.Manager), invoice.ID, "  ")
	assert.True(t, apperror.IsValidation(err))

	cancelled, err := svc.Cancel(ctx, fixture.Actor(env.Manager), invoice.ID, "issued twice")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCancelled, cancelled.PaymentStatus)

	_, err = svc.MarkPaid(ctx, fixture.Actor(env.Manager), invoice.ID, nil)
	assert.True(t, apperror.IsWorkflowViolation(err))
}

func TestMarkOverdueFlagsPastDueOnce(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	policy := env.Policy(t, "1000.00")
	ctx := context.Background()

	late, err := svc.Create(ctx, fixture.Actor(env.Manager), domain.CreateInvoiceRequest{
		PolicyID:    policy.ID,
		InvoiceDate: at(-40),
		DueDate:     at(-10),
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, fixture.Actor(env.Manager), domain.CreateInvoiceRequest{PolicyID: policy.ID})
	require.NoError(t, err)

	flagged, err := svc.MarkOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, late.ID, flagged[0].ID)

	got, err := svc.Get(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentOverdue, got.PaymentStatus)

	flagged, err = svc.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, flagged)
}

func TestDueWithin(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	policy := env.Policy(t, "1000.00")
	ctx := context.Background()

	soon, err := svc.Create(ctx, fixture.Actor(env.Manager), domain.CreateInvoiceRequest{
		PolicyID:    policy.ID,
		InvoiceDate: at(-25),
		DueDate:     at(5),
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, fixture.Actor(env.Manager), domain.CreateInvoiceRequest{PolicyID: policy.ID})
	require.NoError(t, err)

	due, err := svc.DueWithin(ctx, 7)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.ID, due[0].ID)
}
