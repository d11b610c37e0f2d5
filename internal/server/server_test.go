package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	brokerrepo "github.com/smallbiznis/coverdesk/internal/broker/repository"
	"github.com/smallbiznis/coverdesk/internal/clock"
	coverageservice "github.com/smallbiznis/coverdesk/internal/coverage/service"
	"github.com/smallbiznis/coverdesk/internal/observability"
	"github.com/smallbiznis/coverdesk/internal/permission"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	policyservice "github.com/smallbiznis/coverdesk/internal/policy/service"
	"github.com/smallbiznis/coverdesk/internal/ratelimit"
	"github.com/smallbiznis/coverdesk/internal/testutil/fixture"
	userservice "github.com/smallbiznis/coverdesk/internal/user/service"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	env    *fixture.Env
	server *Server
	engine *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := fixture.New(t)

	enforcer, err := permission.NewEnforcer(permission.DefaultTable())
	require.NoError(t, err)

	s := NewServer(ServerParams{
		Gin:        NewEngine(observability.Config{Environment: "test"}, nil),
		Authorizer: permission.NewAuthorizer(enforcer, env.Log),
		UserSvc: userservice.New(userservice.Params{
			DB:       env.DB,
			Log:      env.Log,
			GenID:    env.Node,
			Clock:    env.Clock,
			Repo:     env.Users,
			AuditSvc: env.Audit,
		}),
		PolicySvc: policyservice.New(policyservice.Params{
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
		}),
		CoverageSvc: coverageservice.New(coverageservice.Params{
			DB:         env.DB,
			Log:        env.Log,
			GenID:      env.Node,
			Clock:      env.Clock,
			Repo:       env.Coverages,
			PolicyRepo: env.Policies,
			AuditSvc:   env.Audit,
		}),
		AuditSvc: env.Audit,
	})
	return &harness{env: env, server: s, engine: s.Engine()}
}

func (h *harness) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func (h *harness) policyBody(premium string) map[string]any {
	start := clock.Date(fixture.Now)
	return map[string]any{
		"insurer_id":          h.env.Company.ID.String(),
		"branch":              "Vehicles",
		"start_date":          start.Format(time.RFC3339),
		"end_date":            start.AddDate(1, 0, 0).Format(time.RFC3339),
		"insured_value":       "25000",
		"premium":             premium,
		"responsible_user_id": h.env.Manager.ID.String(),
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestActorResolution(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/policies", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w).Type)

	w = h.do(t, http.MethodGet, "/api/policies", "not-a-number", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/api/policies", "424242", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	require.NoError(t, h.env.DB.Model(&h.env.Manager).Update("is_active", false).Error)
	w = h.do(t, http.MethodGet, "/api/policies", h.env.Manager.ID.String(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/api/me", h.env.Requester.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouteGuardUsesRoleCapabilities(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/policies", h.env.Requester.ID.String(), h.policyBody("1000.00"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeError(t, w).Type)

	w = h.do(t, http.MethodGet, "/api/audit_logs", h.env.Requester.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodGet, "/api/audit_logs", h.env.Admin.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndFetchPolicy(t *testing.T) {
	h := newHarness(t)
	manager := h.env.Manager.ID.String()

	w := h.do(t, http.MethodPost, "/api/policies", manager, h.policyBody("1000.00"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data policydomain.Policy `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "POL-2026-000001", created.Data.PolicyNumber)
	assert.Equal(t, "1207.50", created.Data.TotalBilled.StringFixed(2))

	w = h.do(t, http.MethodGet, "/api/policies/"+created.Data.ID.String(), manager, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/policies/987654321", manager, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodGet, "/api/policies/abc", manager, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidationAndWorkflowErrors(t *testing.T) {
	h := newHarness(t)
	manager := h.env.Manager.ID.String()

	w := h.do(t, http.MethodPost, "/api/policies", manager, h.policyBody("0"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	assert.Equal(t, "validation_error", payload.Type)
	fields := make([]string, 0, len(payload.Errors))
	for _, f := range payload.Errors {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "premium")

	req := httptest.NewRequest(http.MethodPost, "/api/policies", bytes.NewBufferString("{"))
	req.Header.Set(userIDHeader, manager)
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	w = h.do(t, http.MethodPost, "/api/policies", manager, h.policyBody("1000.00"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data policydomain.Policy `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	path := "/api/policies/" + created.Data.ID.String()

	w = h.do(t, http.MethodPost, path+"/cancel", manager, map[string]any{"reason": "sold the fleet"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodPatch, path, manager, map[string]any{"group": "Fleet"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "workflow_violation", decodeError(t, w).Type)
}

func TestDeductibleQuoteRequiresLoss(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/coverages/12345/deductible", h.env.Manager.ID.String(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/coverages/12345/deductible?loss=100", h.env.Manager.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", apperror.NewValidationError("premium", "positive", "must be positive"), http.StatusBadRequest, "validation_error"},
		{"workflow", &apperror.WorkflowViolation{Entity: "claim", From: "paid", To: "pending", Reason: "terminal"}, http.StatusConflict, "workflow_violation"},
		{"duplicate identifier", apperror.ErrDuplicateIdentifier, http.StatusConflict, "conflict"},
		{"in use", policydomain.ErrInUse, http.StatusConflict, "conflict"},
		{"bad reference", policydomain.ErrInsurerNotFound, http.StatusUnprocessableEntity, "invalid_reference"},
		{"forbidden", permission.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}
}

type fixedBucket struct {
	allow bool
}

func (b fixedBucket) Take(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: b.allow, Limit: 20, RetryAfter: 1500 * time.Millisecond}, nil
}

func TestWriteRateLimitOnlyThrottlesMutations(t *testing.T) {
	h := newHarness(t)
	h.server.writeLimiter = ratelimit.NewWithBucket(fixedBucket{allow: false})
	manager := h.env.Manager.ID.String()

	w := h.do(t, http.MethodGet, "/api/policies", manager, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodPost, "/api/policies", manager, h.policyBody("1000.00"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, w).Type)
}
