package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/settlement/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *domain.Settlement) error {
	return db.WithContext(ctx).Create(s).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, s *domain.Settlement) error {
	return db.WithContext(ctx).Save(s).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Settlement, error) {
	return r.first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Settlement, error) {
	return r.first(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) FindByClaimID(ctx context.Context, db *gorm.DB, claimID snowflake.ID) (*domain.Settlement, error) {
	return r.first(db.WithContext(ctx).Where("claim_id = ?", claimID))
}

func (r *repo) first(stmt *gorm.DB) (*domain.Settlement, error) {
	var s domain.Settlement
	if err := stmt.Limit(1).Find(&s).Error; err != nil {
		return nil, err
	}
	if s.ID == 0 {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, status domain.Status) ([]domain.Settlement, error) {
	var items []domain.Settlement
	stmt := db.WithContext(ctx).Model(&domain.Settlement{})
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	if err := stmt.Order("id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListPastDeadline(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Settlement, error) {
	var items []domain.Settlement
	err := db.WithContext(ctx).
		Where("status = ? AND payment_deadline < ?", domain.StatusSigned, now).
		Order("payment_deadline asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
