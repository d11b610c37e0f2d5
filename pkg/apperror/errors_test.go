package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	var c Collector
	require.NoError(t, c.Err())

	c.Add("end_date", "after", "end_date must be after start_date")
	require.NoError(t, c.Merge(NewValidationError("premium", "positive", "premium must be positive")))

	err := c.Err()
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("end_date"))
	assert.True(t, verr.Has("premium"))
	assert.False(t, verr.Has("vat"))

	other := errors.New("db down")
	assert.Equal(t, other, c.Merge(other))
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("transition: %w", &WorkflowViolation{Entity: "claim", From: "pending", To: "paid", Reason: "illegal"})
	assert.True(t, IsWorkflowViolation(wrapped))
	assert.False(t, IsValidation(wrapped))

	dispatch := &NotificationDispatchError{Recipient: "42", Type: "claim_update", Err: errors.New("smtp")}
	assert.Contains(t, dispatch.Error(), "claim_update")
	assert.EqualError(t, errors.Unwrap(dispatch), "smtp")
}

func TestValidateStruct(t *testing.T) {
	type payload struct {
		Name string `json:"name" validate:"required"`
		RUC  string `json:"ruc" validate:"len=13,numeric"`
	}

	err := ValidateStruct(payload{RUC: "123"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has("name"))
	assert.True(t, verr.Has("ruc"))

	assert.NoError(t, ValidateStruct(payload{Name: "Seguros Sur", RUC: "1790012345001"}))
}
