package service

import (
	"context"
	"errors"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	brokerrepo "github.com/smallbiznis/coverdesk/internal/broker/repository"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/internal/policy/domain"
	"github.com/smallbiznis/coverdesk/internal/testutil/fixture"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(env *fixture.Env) domain.Service {
	return New(Params{
		DB:           env.DB,
		Log:          env.Log,
		GenID:        env.Node,
		Clock:        env.Clock,
		Repo:         env.Policies,
		Fiscal:       env.Fiscal,
		CompanyRepo:  env.Companies,
		BrokerRepo:   brokerrepo.Provide(),
		UserRepo:     env.Users,
		CoverageRepo: env.Coverages,
		Generator:    env.Generator,
		AuditSvc:     env.Audit,
		Resolver:     env.Resolver,
	})
}

func createRequest(env *fixture.Env, premium string) domain.CreatePolicyRequest {
	start := clock.Date(fixture.Now)
	return domain.CreatePolicyRequest{
		InsurerID:         env.Company.ID,
		Branch:            "Vehicles",
		StartDate:         start,
		EndDate:           start.AddDate(1, 0, 0),
		InsuredValue:      money.MustParse("25000"),
		Premium:           money.MustParse(premium),
		ResponsibleUserID: env.Manager.ID,
	}
}

func TestCreateDerivesFiscalFields(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)

	policy, err := svc.Create(context.Background(), fixture.Actor(env.Manager), createRequest(env, "1000.00"))
	require.NoError(t, err)

	assert.Equal(t, "POL-2026-000001", policy.PolicyNumber)
	assert.Equal(t, domain.StatusActive, policy.Status)
	assert.Equal(t, "35.00", policy.SuperintendenceContribution.StringFixed(2))
	assert.Equal(t, "5.00", policy.FarmInsuranceContribution.StringFixed(2))
	assert.Equal(t, "10.00", policy.EmissionRight.StringFixed(2))
	assert.Equal(t, "1050.00", policy.TaxBase.StringFixed(2))
	assert.Equal(t, "157.50", policy.VAT.StringFixed(2))
	assert.Equal(t, "1207.50", policy.TotalBilled.StringFixed(2))
	assert.EqualValues(t, 1, env.AuditCount(t, auditdomain.EntityPolicy, policy.ID))
}

func TestCreateRejectsBadInput(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	ctx := context.Background()

	req := createRequest(env, "0")
	req.EndDate = req.StartDate
	_, err := svc.Create(ctx, fixture.Actor(env.Manager), req)
	var verr *apperror.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.True(t, verr.Has("premium"))
	assert.True(t, verr.Has("end_date"))

	req = createRequest(env, "100")
	req.InsurerID = env.Node.Generate()
	_, err = svc.Create(ctx, fixture.Actor(env.Manager), req)
	assert.ErrorIs(t, err, domain.ErrInsurerNotFound)
}

func TestCreateWithExplicitNumber(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	ctx := context.Background()

	req := createRequest(env, "500")
	req.PolicyNumber = "POL-2026-000777"
	policy, err := svc.Create(ctx, fixture.Actor(env.Manager), req)
	require.NoError(t, err)
	assert.Equal(t, "POL-2026-000777", policy.PolicyNumber)

	_, err = svc.Create(ctx, fixture.Actor(env.Manager), req)
	assert.ErrorIs(t, err, domain.ErrDuplicateNumber)

	req.PolicyNumber = "777"
	_, err = svc.Create(ctx, fixture.Actor(env.Manager), req)
	assert.True(t, apperror.IsValidation(err))
}

func TestUpdateRecomputesFiscalFields(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	ctx := context.Background()

	policy, err := svc.Create(ctx, fixture.Actor(env.Manager), createRequest(env, "1000.00"))
	require.NoError(t, err)

	premium := money.MustParse("2000")
	updated, err := svc.Update(ctx, fixture.Actor(env.Manager), policy.ID, domain.UpdatePolicyRequest{Premium: &premium})
	require.NoError(t, err)
	assert.Equal(t, "2090.00", updated.TaxBase.StringFixed(2))
	assert.Equal(t, "313.50", updated.VAT.StringFixed(2))
}

func TestRenewIssuesSuccessor(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	ctx := context.Background()

	policy, err := svc.Create(ctx, fixture.Actor(env.Manager), createRequest(env, "1000.00"))
	require.NoError(t, err)
	env.Coverage(t, policy, "200", "10")

	premium := money.MustParse("1100")
	renewed, successor, err := svc.Renew(ctx, fixture.Actor(env.Manager), policy.ID, domain.RenewPolicyRequest{Premium: &premium})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRenewed, renewed.Status)
	assert.Equal(t, domain.StatusActive, successor.Status)
	assert.NotEqual(t, policy.PolicyNumber, successor.PolicyNumber)
	assert.True(t, successor.StartDate.Equal(policy.EndDate))
	assert.True(t, successor.EndDate.Equal(policy.EndDate.AddDate(1, 0, 0)))
	require.NotNil(t, successor.RenewedFromID)
	assert.Equal(t, policy.ID, *successor.RenewedFromID)
	assert.Equal(t, "1154.00", successor.TaxBase.StringFixed(2))

	coverages, err := env.Coverages.ListByPolicy(ctx, env.DB, successor.ID)
	require.NoError(t, err)
	assert.Len(t, coverages, 1)

	_, _, err = svc.Renew(ctx, fixture.Actor(env.Manager), policy.ID, domain.RenewPolicyRequest{})
	assert.True(t, apperror.IsWorkflowViolation(err))
}

func TestCancelAndExpire(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	ctx := context.Background()

	policy, err := svc.Create(ctx, fixture.Actor(env.Manager), createRequest(env, "1000.00"))
	require.NoError(t, err)

	_, err = svc.MarkExpired(ctx, fixture.Actor(env.Manager), policy.ID)
	assert.True(t, apperror.IsWorkflowViolation(err))

	env.Clock.Advance(366 * 24 * time.Hour)
	expired, err := svc.MarkExpired(ctx, fixture.Actor(env.Manager), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, expired.Status)

	_, err = svc.Cancel(ctx, fixture.Actor(env.Manager), policy.ID, "")
	assert.True(t, apperror.IsValidation(err))

	other, err := svc.Create(ctx, fixture.Actor(env.Manager), createRequest(env, "1000.00"))
	require.NoError(t, err)
	cancelled, err := svc.Cancel(ctx, fixture.Actor(env.Manager), other.ID, "sold the fleet")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "sold the fleet", cancelled.CancellationReason)

	premium := money.MustParse("10")
	_, err = svc.Update(ctx, fixture.Actor(env.Manager), other.ID, domain.UpdatePolicyRequest{Premium: &premium})
	assert.True(t, apperror.IsWorkflowViolation(err))
}

func TestRequesterCannotWritePolicies(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	ctx := context.Background()
	requester := fixture.Actor(env.Requester)

	_, err := svc.Create(ctx, requester, createRequest(env, "1000.00"))
	assert.ErrorIs(t, err, permission.ErrForbidden)

	policy, err := svc.Create(ctx, fixture.Actor(env.Manager), createRequest(env, "1000.00"))
	require.NoError(t, err)

	premium := money.MustParse("2000")
	_, err = svc.Update(ctx, requester, policy.ID, domain.UpdatePolicyRequest{Premium: &premium})
	assert.ErrorIs(t, err, permission.ErrForbidden)
	_, _, err = svc.Renew(ctx, requester, policy.ID, domain.RenewPolicyRequest{})
	assert.ErrorIs(t, err, permission.ErrForbidden)
	_, err = svc.Cancel(ctx, requester, policy.ID, "no longer needed")
	assert.ErrorIs(t, err, permission.ErrForbidden)
	_, err = svc.MarkExpired(ctx, requester, policy.ID)
	assert.ErrorIs(t, err, permission.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, requester, policy.ID), permission.ErrForbidden)

	_, err = svc.Create(ctx, permission.Actor{}, createRequest(env, "1000.00"))
	assert.ErrorIs(t, err, permission.ErrInvalidActor)

	got, err := svc.Get(ctx, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, "1000.00", got.Premium.StringFixed(2))
}

func TestDeleteRefusesReferencedPolicy(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	ctx := context.Background()

	free, err := svc.Create(ctx, fixture.Actor(env.Manager), createRequest(env, "1000.00"))
	require.NoError(t, err)
	env.Coverage(t, free, "100", "0")
	require.NoError(t, svc.Delete(ctx, fixture.Actor(env.Admin), free.ID))
	_, err = svc.Get(ctx, free.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	used, err := svc.Create(ctx, fixture.Actor(env.Manager), createRequest(env, "1000.00"))
	require.NoError(t, err)
	env.Asset(t, env.Requester, used)
	assert.ErrorIs(t, svc.Delete(ctx, fixture.Actor(env.Admin), used.ID), domain.ErrInUse)
}

func TestExpiringBetween(t *testing.T) {
	env := fixture.New(t)
	svc := newService(env)
	ctx := context.Background()

	soon := createRequest(env, "1000.00")
	soon.StartDate = clock.Date(fixture.Now).AddDate(0, -11, 0)
	soon.EndDate = clock.Date(fixture.Now).AddDate(0, 0, 20)
	expiring, err := svc.Create(ctx, fixture.Actor(env.Manager), soon)
	require.NoError(t, err)
	_, err = svc.Create(ctx, fixture.Actor(env.Manager), createRequest(env, "1000.00"))
	require.NoError(t, err)

	from := clock.Date(fixture.Now)
	got, err := svc.ExpiringBetween(ctx, from, from.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, expiring.ID, got[0].ID)
	assert.True(t, got[0].IsExpiringSoon(fixture.Now, 30))
}
