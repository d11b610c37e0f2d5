package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	assetdomain "github.com/smallbiznis/coverdesk/internal/asset/domain"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	brokerdomain "github.com/smallbiznis/coverdesk/internal/broker/domain"
	claimdomain "github.com/smallbiznis/coverdesk/internal/claim/domain"
	companydomain "github.com/smallbiznis/coverdesk/internal/company/domain"
	coveragedomain "github.com/smallbiznis/coverdesk/internal/coverage/domain"
	invoicedomain "github.com/smallbiznis/coverdesk/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/coverdesk/internal/notification/domain"
	"github.com/smallbiznis/coverdesk/internal/permission"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	settlementdomain "github.com/smallbiznis/coverdesk/internal/settlement/domain"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string                `json:"type"`
	Message string                `json:"message"`
	Code    string                `json:"code,omitempty"`
	Errors  []apperror.FieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not_found")
	ErrRateLimited  = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return apperror.NewValidationError("request", "invalid_request", "invalid request")
}

func mapError(err error) (int, errorPayload) {
	var verr *apperror.ValidationError
	if errors.As(err, &verr) && verr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  verr.Fields,
		}
	}

	var violation *apperror.WorkflowViolation
	if errors.As(err, &violation) {
		return http.StatusConflict, errorPayload{
			Type:    "workflow_violation",
			Message: violation.Reason,
			Code:    violation.Entity + ":" + violation.From + "->" + violation.To,
		}
	}

	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, permission.ErrInvalidActor),
		errors.Is(err, userdomain.ErrInactive):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, permission.ErrForbidden),
		errors.Is(err, claimdomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found", Code: err.Error()}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: "conflict", Code: err.Error()}
	case isBadReferenceError(err):
		return http.StatusUnprocessableEntity, errorPayload{Type: "invalid_reference", Message: "referenced record is not usable", Code: err.Error()}
	case errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidEntity):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  []apperror.FieldError{{Field: "query", Code: err.Error(), Message: "invalid value"}},
		}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, policydomain.ErrNotFound),
		errors.Is(err, coveragedomain.ErrNotFound),
		errors.Is(err, assetdomain.ErrNotFound),
		errors.Is(err, claimdomain.ErrNotFound),
		errors.Is(err, settlementdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, notificationdomain.ErrNotFound),
		errors.Is(err, companydomain.ErrCompanyNotFound),
		errors.Is(err, brokerdomain.ErrNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, apperror.ErrDuplicateIdentifier),
		errors.Is(err, policydomain.ErrDuplicateNumber),
		errors.Is(err, policydomain.ErrInUse),
		errors.Is(err, assetdomain.ErrDuplicateCode),
		errors.Is(err, companydomain.ErrDuplicateRUC),
		errors.Is(err, companydomain.ErrDuplicateCode),
		errors.Is(err, companydomain.ErrOverlappingTier),
		errors.Is(err, brokerdomain.ErrDuplicateRUC),
		errors.Is(err, userdomain.ErrUsernameTaken),
		errors.Is(err, settlementdomain.ErrAlreadyExists),
		errors.Is(err, settlementdomain.ErrClaimNotReady),
		errors.Is(err, coveragedomain.ErrPolicyClosed):
		return true
	default:
		return false
	}
}

// isBadReferenceError covers request bodies pointing at rows that do not exist
// or do not fit together.
func isBadReferenceError(err error) bool {
	switch {
	case errors.Is(err, policydomain.ErrInsurerNotFound),
		errors.Is(err, policydomain.ErrBrokerNotFound),
		errors.Is(err, policydomain.ErrUserNotFound),
		errors.Is(err, coveragedomain.ErrPolicyNotFound),
		errors.Is(err, assetdomain.ErrPolicyNotFound),
		errors.Is(err, assetdomain.ErrCustodianNotFound),
		errors.Is(err, claimdomain.ErrPolicyNotFound),
		errors.Is(err, claimdomain.ErrAssetNotFound),
		errors.Is(err, claimdomain.ErrCoverageNotFound),
		errors.Is(err, claimdomain.ErrCoverageMismatch),
		errors.Is(err, claimdomain.ErrAssigneeInvalid),
		errors.Is(err, settlementdomain.ErrClaimNotFound),
		errors.Is(err, invoicedomain.ErrPolicyNotFound),
		errors.Is(err, companydomain.ErrRetentionTypeNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog feeds the request logger the same taxonomy clients see.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Code
	if code == "" {
		code = err.Error()
	}
	return payload.Type, code
}
