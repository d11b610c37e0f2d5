package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/permission"
)

type CreatePolicyRequest struct {
	PolicyNumber      string          `json:"policy_number"`
	InsurerID         snowflake.ID    `json:"insurer_id" validate:"required"`
	BrokerID          *snowflake.ID   `json:"broker_id"`
	Group             string          `json:"group" validate:"max=100"`
	Subgroup          string          `json:"subgroup" validate:"max=100"`
	Branch            string          `json:"branch" validate:"max=100"`
	StartDate         time.Time       `json:"start_date"`
	EndDate           time.Time       `json:"end_date"`
	IssueDate         *time.Time      `json:"issue_date"`
	InsuredValue      decimal.Decimal `json:"insured_value"`
	Premium           decimal.Decimal `json:"premium"`
	ResponsibleUserID snowflake.ID    `json:"responsible_user_id"`
	Notes             string          `json:"notes"`
}

type UpdatePolicyRequest struct {
	BrokerID          *snowflake.ID    `json:"broker_id"`
	Group             *string          `json:"group"`
	Subgroup          *string          `json:"subgroup"`
	Branch            *string          `json:"branch"`
	StartDate         *time.Time       `json:"start_date"`
	EndDate           *time.Time       `json:"end_date"`
	InsuredValue      *decimal.Decimal `json:"insured_value"`
	Premium           *decimal.Decimal `json:"premium"`
	ResponsibleUserID *snowflake.ID    `json:"responsible_user_id"`
	Notes             *string          `json:"notes"`
}

type RenewPolicyRequest struct {
	EndDate      *time.Time       `json:"end_date"`
	InsuredValue *decimal.Decimal `json:"insured_value"`
	Premium      *decimal.Decimal `json:"premium"`
}

type ListPolicyRequest struct {
	Status    string `form:"status"`
	InsurerID string `form:"insurer_id"`
}

type Service interface {
	Create(ctx context.Context, actor permission.Actor, req CreatePolicyRequest) (Policy, error)
	Update(ctx context.Context, actor permission.Actor, id snowflake.ID, req UpdatePolicyRequest) (Policy, error)
	Get(ctx context.Context, id snowflake.ID) (Policy, error)
	List(ctx context.Context, req ListPolicyRequest) ([]Policy, error)
	// Renew issues the successor policy and marks the current one renewed.
	Renew(ctx context.Context, actor permission.Actor, id snowflake.ID, req RenewPolicyRequest) (renewed Policy, successor Policy, err error)
	Cancel(ctx context.Context, actor permission.Actor, id snowflake.ID, reason string) (Policy, error)
	MarkExpired(ctx context.Context, actor permission.Actor, id snowflake.ID) (Policy, error)
	Delete(ctx context.Context, actor permission.Actor, id snowflake.ID) error
	// ExpiringBetween lists active policies whose end date falls in [from, to].
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]Policy, error)
}

var (
	ErrNotFound        = errors.New("policy_not_found")
	ErrInUse           = errors.New("policy_in_use")
	ErrInsurerNotFound = errors.New("insurer_not_found")
	ErrBrokerNotFound  = errors.New("broker_not_found")
	ErrUserNotFound    = errors.New("responsible_user_not_found")
	ErrDuplicateNumber = errors.New("duplicate_policy_number")
)
