package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/policy/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, policy *domain.Policy) error {
	return db.WithContext(ctx).Create(policy).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, policy *domain.Policy) error {
	return db.WithContext(ctx).Save(policy).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM policies WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Policy, error) {
	return r.find(db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Policy, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repo) find(db *gorm.DB, id snowflake.ID) (*domain.Policy, error) {
	var policy domain.Policy
	if err := db.Where("id = ?", id).Limit(1).Find(&policy).Error; err != nil {
		return nil, err
	}
	if policy.ID == 0 {
		return nil, nil
	}
	return &policy, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Policy, error) {
	var policies []domain.Policy
	stmt := db.WithContext(ctx).Model(&domain.Policy{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.InsurerID != 0 {
		stmt = stmt.Where("insurer_id = ?", filter.InsurerID)
	}
	if filter.EndAfter != nil {
		stmt = stmt.Where("end_date >= ?", *filter.EndAfter)
	}
	if filter.EndBefore != nil {
		stmt = stmt.Where("end_date <= ?", *filter.EndBefore)
	}
	if err := stmt.Order("end_date asc, id asc").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *repo) CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(1) FROM claims WHERE policy_id = ?) +
			(SELECT COUNT(1) FROM invoices WHERE policy_id = ?) +
			(SELECT COUNT(1) FROM assets WHERE insurance_policy_id = ?)`,
		id, id, id,
	).Scan(&total).Error
	return total, err
}
