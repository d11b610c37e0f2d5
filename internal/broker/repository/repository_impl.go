package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/broker/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, broker *domain.Broker) error {
	return db.WithContext(ctx).Create(broker).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Broker, error) {
	var broker domain.Broker
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&broker).Error; err != nil {
		return nil, err
	}
	if broker.ID == 0 {
		return nil, nil
	}
	return &broker, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Broker, error) {
	var brokers []domain.Broker
	if err := db.WithContext(ctx).Order("name asc").Find(&brokers).Error; err != nil {
		return nil, err
	}
	return brokers, nil
}
