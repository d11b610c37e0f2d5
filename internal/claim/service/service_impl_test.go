package service

import (
	"context"
	"errors"
	"testing"
	"time"

	assetdomain "github.com/smallbiznis/coverdesk/internal/asset/domain"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/claim/domain"
	"github.com/smallbiznis/coverdesk/internal/claim/repository"
	"github.com/smallbiznis/coverdesk/internal/identifier"
	"github.com/smallbiznis/coverdesk/internal/permission"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	settlementdomain "github.com/smallbiznis/coverdesk/internal/settlement/domain"
	settlementrepo "github.com/smallbiznis/coverdesk/internal/settlement/repository"
	settlementservice "github.com/smallbiznis/coverdesk/internal/settlement/service"
	"github.com/smallbiznis/coverdesk/internal/testutil/fixture"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	env         *fixture.Env
	svc         domain.Service
	settlements settlementdomain.Service
	policy      policydomain.Policy
	asset       assetdomain.Asset
}

func newHarness(t *testing.T) *harness {
	env := fixture.New(t)
	claims := repository.Provide()

	settlementParams := settlementservice.Params{
		DB:        env.DB,
		Log:       env.Log,
		GenID:     env.Node,
		Clock:     env.Clock,
		Repo:      settlementrepo.Provide(),
		ClaimRepo: claims,
		Generator: env.Generator,
		AuditSvc:  env.Audit,
		Resolver:  env.Resolver,
	}
	settlements := settlementservice.New(settlementParams)

	svc := New(Params{
		DB:           env.DB,
		Log:          env.Log,
		GenID:        env.Node,
		Clock:        env.Clock,
		Repo:         claims,
		PolicyRepo:   env.Policies,
		AssetRepo:    env.Assets,
		CoverageRepo: env.Coverages,
		UserRepo:     env.Users,
		Generator:    env.Generator,
		AuditSvc:     env.Audit,
		Resolver:     env.Resolver,
		Opener:       settlementservice.NewOpener(settlementParams),
	})

	policy := env.Policy(t, "1000.00")
	asset := env.Asset(t, env.Requester, policy)
	return &harness{
		env:         env,
		svc:         svc,
		settlements: settlements,
		policy:      policy,
		asset:       asset,
	}
}

func (h *harness) report(t *testing.T, loss string) domain.Claim {
	t.Helper()
	claim, err := h.svc.Create(context.Background(), fixture.Actor(h.env.Requester), h.request(loss))
	require.NoError(t, err)
	return claim
}

func (h *harness) request(loss string) domain.CreateClaimRequest {
	return domain.CreateClaimRequest{
		PolicyID:         h.policy.ID,
		AssetID:          h.asset.ID,
		IncidentDate:     fixture.Now.AddDate(0, 0, -2),
		IncidentLocation: "Warehouse 3",
		Cause:            "collision",
		Description:      "Rear bumper and tail lights damaged",
		EstimatedLoss:    money.MustParse(loss),
	}
}

func (h *harness) move(t *testing.T, actor permission.Actor, claim domain.Claim, target domain.Status, notes string) domain.Claim {
	t.Helper()
	out, err := h.svc.Transition(context.Background(), actor, claim.ID, domain.TransitionRequest{Target: target, Notes: notes})
	require.NoError(t, err)
	return out
}

func TestRequesterReportsPendingClaimWithoutTimeline(t *testing.T) {
	h := newHarness(t)

	claim := h.report(t, "1500")

	assert.Equal(t, domain.StatusPending, claim.Status)
	assert.True(t, identifier.IsValid(claim.ClaimNumber))
	assert.Equal(t, "SIN-2026-000001", claim.ClaimNumber)
	assert.Equal(t, h.env.Requester.ID, claim.ReportedByID)

	timeline, err := h.svc.Timeline(context.Background(), fixture.Actor(h.env.Requester), claim.ID)
	require.NoError(t, err)
	assert.Empty(t, timeline)
	assert.EqualValues(t, 1, h.env.AuditCount(t, auditdomain.EntityClaim, claim.ID))
}

func TestManagerReviewAppendsOneTimelineEntry(t *testing.T) {
	h := newHarness(t)
	claim := h.report(t, "1500")

	reviewed := h.move(t, fixture.Actor(h.env.Manager), claim, domain.StatusInReview, "")
	assert.Equal(t, domain.StatusInReview, reviewed.Status)

	timeline, err := h.svc.Timeline(context.Background(), fixture.Actor(h.env.Manager), claim.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, domain.EventStatusChange, timeline[0].EventType)
	assert.Equal(t, domain.StatusPending, timeline[0].OldStatus)
	assert.Equal(t, domain.StatusInReview, timeline[0].NewStatus)
	require.NotNil(t, timeline[0].ActorID)
	assert.Equal(t, h.env.Manager.ID, *timeline[0].ActorID)
}

func TestRequesterCannotApprove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	claim := h.report(t, "1500")
	h.move(t, fixture.Actor(h.env.Manager), claim, domain.StatusInReview, "")

	_, err := h.svc.Transition(ctx, fixture.Actor(h.env.Requester), claim.ID, domain.TransitionRequest{Target: domain.StatusApproved})

	var violation *apperror.WorkflowViolation
	require.True(t, errors.As(err, &violation), "got %v", err)
	assert.Equal(t, "in_review", violation.From)
	assert.Equal(t, "approved", violation.To)

	got, err := h.svc.Get(ctx, fixture.Actor(h.env.Requester), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInReview, got.Status)

	timeline, err := h.svc.Timeline(ctx, fixture.Actor(h.env.Manager), claim.ID)
	require.NoError(t, err)
	assert.Len(t, timeline, 1)
}

func TestIllegalEdgeIsWorkflowViolation(t *testing.T) {
	h := newHarness(t)
	claim := h.report(t, "1500")

	_, err := h.svc.Transition(context.Background(), fixture.Actor(h.env.Admin), claim.ID, domain.TransitionRequest{Target: domain.StatusPaid})
	assert.True(t, apperror.IsWorkflowViolation(err))
}

func TestRejectRequiresReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	claim := h.report(t, "1500")
	h.move(t, fixture.Actor(h.env.Manager), claim, domain.StatusInReview, "")

	_, err := h.svc.Transition(ctx, fixture.Actor(h.env.Manager), claim.ID, domain.TransitionRequest{Target: domain.StatusRejected})
	assert.True(t, apperror.IsValidation(err))

	rejected := h.move(t, fixture.Actor(h.env.Manager), claim, domain.StatusRejected, "not covered")
	assert.Equal(t, "not covered", rejected.RejectionReason)
}

func TestSettlingOpensSettlementWithResolvedDeductible(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	manager := fixture.Actor(h.env.Manager)
	coverage := h.env.Coverage(t, h.policy, "200", "5")

	claim := h.report(t, "1500")
	claim, err := h.svc.AssignCoverage(ctx, manager, claim.ID, coverage.ID)
	require.NoError(t, err)
	// max(200, 5% of 1500)
	assert.Equal(t, "200.00", claim.DeductibleAmount.StringFixed(2))

	h.move(t, manager, claim, domain.StatusInReview, "")
	approved := money.MustParse("1400")
	claim, err = h.svc.Transition(ctx, manager, claim.ID, domain.TransitionRequest{Target: domain.StatusApproved, ApprovedAmount: &approved})
	require.NoError(t, err)
	h.move(t, manager, claim, domain.StatusSettled, "")

	settlement, err := h.settlements.GetByClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, settlementdomain.StatusApproved, settlement.Status)
	assert.Equal(t, "1400.00", settlement.TotalClaimed.StringFixed(2))
	assert.Equal(t, "1200.00", settlement.FinalPayable.StringFixed(2))

	signed, err := h.settlements.SignAndCascade(ctx, manager, settlement.ID)
	require.NoError(t, err)
	require.NotNil(t, signed.PaymentDeadline)
	assert.Equal(t, fixture.Now.Add(72*time.Hour), signed.PaymentDeadline.UTC())

	paid, err := h.svc.Get(ctx, manager, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentDate)
}

func TestCoverageFromAnotherPolicyIsRejected(t *testing.T) {
	h := newHarness(t)
	other := h.env.Policy(t, "500.00")
	coverage := h.env.Coverage(t, other, "100", "0")
	claim := h.report(t, "1500")

	_, err := h.svc.AssignCoverage(context.Background(), fixture.Actor(h.env.Manager), claim.ID, coverage.ID)
	assert.ErrorIs(t, err, domain.ErrCoverageMismatch)
}

func TestIncidentOutsidePolicyPeriod(t *testing.T) {
	h := newHarness(t)
	req := h.request("1500")
	req.IncidentDate = h.policy.StartDate.AddDate(0, 0, -1)

	_, err := h.svc.Create(context.Background(), fixture.Actor(h.env.Requester), req)

	var verr *apperror.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.True(t, verr.Has("incident_date"))
}

func TestRequesterScoping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	claim := h.report(t, "1500")
	stranger := h.env.User(t, "stranger", permission.RoleRequester)

	_, err := h.svc.Get(ctx, fixture.Actor(stranger), claim.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.svc.Create(ctx, fixture.Actor(stranger), h.request("100"))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	mine, err := h.svc.List(ctx, fixture.Actor(stranger), domain.ListClaimRequest{})
	require.NoError(t, err)
	assert.Empty(t, mine.Claims)

	all, err := h.svc.List(ctx, fixture.Actor(h.env.Manager), domain.ListClaimRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Claims, 1)
}

func TestReporterEditsOnlyWhilePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	claim := h.report(t, "1500")
	location := "Warehouse 4"

	updated, err := h.svc.Update(ctx, fixture.Actor(h.env.Requester), claim.ID, domain.UpdateClaimRequest{IncidentLocation: &location})
	require.NoError(t, err)
	assert.Equal(t, location, updated.IncidentLocation)

	h.move(t, fixture.Actor(h.env.Manager), claim, domain.StatusInReview, "")
	_, err = h.svc.Update(ctx, fixture.Actor(h.env.Requester), claim.ID, domain.UpdateClaimRequest{IncidentLocation: &location})
	assert.True(t, apperror.IsWorkflowViolation(err))
}

func TestDocumentUploadIsAudited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	claim := h.report(t, "1500")

	doc, err := h.svc.AttachDocument(ctx, fixture.Actor(h.env.Requester), claim.ID, domain.AttachDocumentRequest{
		DocumentType: domain.DocumentPhotos,
		Name:         "bumper.jpg",
		StorageKey:   "claims/bumper.jpg",
		SizeBytes:    2048,
	})
	require.NoError(t, err)
	assert.Equal(t, h.env.Requester.ID, doc.UploadedByID)

	docs, err := h.svc.Documents(ctx, fixture.Actor(h.env.Manager), claim.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	timeline, err := h.svc.Timeline(ctx, fixture.Actor(h.env.Manager), claim.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, domain.EventDocumentUploaded, timeline[0].EventType)

	var uploads int64
	require.NoError(t, h.env.DB.Model(&auditdomain.AuditLog{}).
		Where("entity_id = ? AND action_type = ?", claim.ID, auditdomain.ActionDocumentUpload).
		Count(&uploads).Error)
	assert.EqualValues(t, 1, uploads)
}

func TestSLABreaches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	manager := fixture.Actor(h.env.Manager)
	claim := h.report(t, "1500")

	_, err := h.svc.RequestDocuments(ctx, manager, claim.ID, "police report")
	require.NoError(t, err)

	h.env.Clock.Advance(8 * 24 * time.Hour)
	reports, err := h.svc.SLABreaches(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)

	h.env.Clock.Advance(24 * time.Hour)
	reports, err = h.svc.SLABreaches(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Status.Has(domain.BreachDocumentDeadline))
	assert.False(t, reports[0].Status.Has(domain.BreachHardCap))

	_, err = h.svc.CompleteDocuments(ctx, fixture.Actor(h.env.Requester), claim.ID)
	require.NoError(t, err)
	reports, err = h.svc.SLABreaches(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestArchiveOnlyTerminalClaims(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	manager := fixture.Actor(h.env.Manager)
	claim := h.report(t, "1500")

	_, err := h.svc.Archive(ctx, manager, claim.ID)
	assert.True(t, apperror.IsWorkflowViolation(err))

	h.move(t, manager, claim, domain.StatusInReview, "")
	h.move(t, manager, claim, domain.StatusRejected, "duplicate report")
	archived, err := h.svc.Archive(ctx, manager, claim.ID)
	require.NoError(t, err)
	assert.NotNil(t, archived.ArchivedAt)

	list, err := h.svc.List(ctx, manager, domain.ListClaimRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Claims)
}

func TestCreateRejectsZeroLoss(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), fixture.Actor(h.env.Requester), h.request("0"))

	var verr *apperror.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.True(t, verr.Has("estimated_loss"))
}

func TestApprovalBelowDeductibleIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	manager := fixture.Actor(h.env.Manager)
	coverage := h.env.Coverage(t, h.policy, "500", "0")

	claim := h.report(t, "1500")
	claim, err := h.svc.AssignCoverage(ctx, manager, claim.ID, coverage.ID)
	require.NoError(t, err)
	h.move(t, manager, claim, domain.StatusInReview, "")

	tooLow := money.MustParse("300")
	_, err = h.svc.Transition(ctx, manager, claim.ID, domain.TransitionRequest{Target: domain.StatusApproved, ApprovedAmount: &tooLow})
	var verr *apperror.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.True(t, verr.Has("approved_amount"))

	got, err := h.svc.Get(ctx, manager, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInReview, got.Status)
	assert.Nil(t, got.ApprovedAmount)

	enough := money.MustParse("800")
	claim, err = h.svc.Transition(ctx, manager, claim.ID, domain.TransitionRequest{Target: domain.StatusApproved, ApprovedAmount: &enough})
	require.NoError(t, err)
	settled := h.move(t, manager, claim, domain.StatusSettled, "")
	assert.Equal(t, domain.StatusSettled, settled.Status)

	settlement, err := h.settlements.GetByClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", settlement.FinalPayable.StringFixed(2))
}

func TestCoverageOnApprovedClaimCannotExceedPayable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	manager := fixture.Actor(h.env.Manager)

	claim := h.report(t, "1500")
	h.move(t, manager, claim, domain.StatusInReview, "")
	claim = h.move(t, manager, claim, domain.StatusApproved, "")

	steep := h.env.Coverage(t, h.policy, "2000", "0")
	_, err := h.svc.AssignCoverage(ctx, manager, claim.ID, steep.ID)
	var verr *apperror.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.True(t, verr.Has("approved_amount"))

	got, err := h.svc.Get(ctx, manager, claim.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CoverageID)
	assert.True(t, got.DeductibleAmount.IsZero())

	mild := h.env.Coverage(t, h.policy, "100", "0")
	claim, err = h.svc.AssignCoverage(ctx, manager, claim.ID, mild.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", claim.DeductibleAmount.StringFixed(2))

	settled := h.move(t, manager, claim, domain.StatusSettled, "")
	assert.Equal(t, domain.StatusSettled, settled.Status)
}
