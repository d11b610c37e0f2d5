package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/asset/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, asset *domain.Asset) error {
	return db.WithContext(ctx).Create(asset).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, asset *domain.Asset) error {
	return db.WithContext(ctx).Save(asset).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Asset, error) {
	var asset domain.Asset
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&asset).Error; err != nil {
		return nil, err
	}
	if asset.ID == 0 {
		return nil, nil
	}
	return &asset, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Asset, error) {
	var assets []domain.Asset
	stmt := db.WithContext(ctx).Model(&domain.Asset{})
	if filter.CustodianID != 0 {
		stmt = stmt.Where("custodian_id = ?", filter.CustodianID)
	}
	if filter.PolicyID != 0 {
		stmt = stmt.Where("insurance_policy_id = ?", filter.PolicyID)
	}
	if err := stmt.Order("asset_code asc").Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}
