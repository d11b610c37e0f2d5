package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, username, full_name, email, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.FullName,
		user.Email,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, username, full_name, email, role, is_active, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, username, full_name, email, role, is_active, created_at, updated_at
		 FROM users WHERE username = ?`,
		strings.TrimSpace(username),
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) ListActiveByRoles(ctx context.Context, db *gorm.DB, roles ...permission.Role) ([]domain.User, error) {
	var users []domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("is_active = ? AND role IN ?", true, roles).
		Order("id asc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var users []domain.User
	if err := db.WithContext(ctx).Order("username asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
