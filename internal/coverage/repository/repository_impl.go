package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/coverage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, coverage *domain.Coverage) error {
	return db.WithContext(ctx).Create(coverage).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, coverage *domain.Coverage) error {
	return db.WithContext(ctx).Save(coverage).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Coverage, error) {
	var coverage domain.Coverage
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&coverage).Error; err != nil {
		return nil, err
	}
	if coverage.ID == 0 {
		return nil, nil
	}
	return &coverage, nil
}

func (r *repo) ListByPolicy(ctx context.Context, db *gorm.DB, policyID snowflake.ID) ([]domain.Coverage, error) {
	var coverages []domain.Coverage
	err := db.WithContext(ctx).
		Where("policy_id = ?", policyID).
		Order("id asc").
		Find(&coverages).Error
	if err != nil {
		return nil, err
	}
	return coverages, nil
}
