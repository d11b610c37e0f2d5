package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/permission"
)

type CreateUserRequest struct {
	Username string          `json:"username" validate:"required,max=150"`
	FullName string          `json:"full_name" validate:"max=200"`
	Email    string          `json:"email" validate:"required,email"`
	Role     permission.Role `json:"role" validate:"required,oneof=admin insurance_manager requester"`
}

type Service interface {
	Create(ctx context.Context, actor permission.Actor, req CreateUserRequest) (User, error)
	Get(ctx context.Context, id snowflake.ID) (User, error)
	List(ctx context.Context) ([]User, error)
	// Staff returns the active admins and insurance managers.
	Staff(ctx context.Context) ([]User, error)
}

var (
	ErrNotFound      = errors.New("user_not_found")
	ErrInactive      = errors.New("user_inactive")
	ErrUsernameTaken = errors.New("username_taken")
)
