package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error)
	ListActiveByRoles(ctx context.Context, db *gorm.DB, roles ...permission.Role) ([]User, error)
	List(ctx context.Context, db *gorm.DB) ([]User, error)
}
