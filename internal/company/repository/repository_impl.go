package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/company/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertCompany(ctx context.Context, db *gorm.DB, company *domain.InsuranceCompany) error {
	return db.WithContext(ctx).Create(company).Error
}

func (r *repo) FindCompany(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.InsuranceCompany, error) {
	var company domain.InsuranceCompany
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, ruc, contact_email, phone, is_active, created_at, updated_at
		 FROM insurance_companies WHERE id = ?`,
		id,
	).Scan(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *repo) ListCompanies(ctx context.Context, db *gorm.DB) ([]domain.InsuranceCompany, error) {
	var companies []domain.InsuranceCompany
	if err := db.WithContext(ctx).Order("name asc").Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *repo) InsertEmissionRight(ctx context.Context, db *gorm.DB, row *domain.EmissionRight) error {
	return db.WithContext(ctx).Create(row).Error
}

func (r *repo) ListEmissionRights(ctx context.Context, db *gorm.DB, activeOn *time.Time) ([]domain.EmissionRight, error) {
	var rows []domain.EmissionRight
	stmt := db.WithContext(ctx).Model(&domain.EmissionRight{})
	if activeOn != nil {
		stmt = stmt.
			Where("is_active = ?", true).
			Where("valid_from <= ?", *activeOn).
			Where("valid_until IS NULL OR valid_until >= ?", *activeOn)
	}
	if err := stmt.Order("min_amount asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) InsertRetentionType(ctx context.Context, db *gorm.DB, row *domain.RetentionType) error {
	return db.WithContext(ctx).Create(row).Error
}

func (r *repo) FindRetentionType(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RetentionType, error) {
	var row domain.RetentionType
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) ListRetentionTypes(ctx context.Context, db *gorm.DB) ([]domain.RetentionType, error) {
	var rows []domain.RetentionType
	if err := db.WithContext(ctx).Order("code asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) InsertPolicyRetention(ctx context.Context, db *gorm.DB, row *domain.PolicyRetention) error {
	return db.WithContext(ctx).Omit("RetentionType").Create(row).Error
}

func (r *repo) ListActivePolicyRetentions(ctx context.Context, db *gorm.DB, policyID snowflake.ID) ([]domain.PolicyRetention, error) {
	var rows []domain.PolicyRetention
	err := db.WithContext(ctx).
		Preload("RetentionType").
		Where("policy_id = ? AND is_active = ?", policyID, true).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
