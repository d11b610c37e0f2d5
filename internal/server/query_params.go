package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
)

// pathID parses a snowflake path parameter, answering 404 for garbage so
// malformed ids look the same as unknown ones.
func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		AbortWithError(c, ErrNotFound)
		return 0, false
	}
	return id, true
}

func parseOptionalInt(value string, field string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 0 {
		return 0, apperror.NewValidationError(field, "invalid", "must be a non-negative integer")
	}
	return parsed, nil
}

func parseDecimalQuery(value string, field string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, apperror.NewValidationError(field, "required", "is required")
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, apperror.NewValidationError(field, "invalid", "must be a decimal amount")
	}
	return parsed, nil
}

// bindJSON binds the body, treating an empty body as an empty object.
func bindJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		AbortWithError(c, invalidRequestError())
		return false
	}
	return true
}
