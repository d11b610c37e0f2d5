package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"gorm.io/gorm"
)

type Broker struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name                 string          `gorm:"type:varchar(200);not null" json:"name"`
	RUC                  string          `gorm:"column:ruc;type:varchar(13);not null;uniqueIndex" json:"ruc"`
	Email                string          `gorm:"type:varchar(254)" json:"email,omitempty"`
	Phone                string          `gorm:"type:varchar(32)" json:"phone,omitempty"`
	CommissionPercentage decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"commission_percentage"`
	IsActive             bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt            time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null" json:"updated_at"`
}

func (Broker) TableName() string { return "brokers" }

type CreateBrokerRequest struct {
	Name                 string          `json:"name" validate:"required,max=200"`
	RUC                  string          `json:"ruc" validate:"required,len=13,numeric"`
	Email                string          `json:"email" validate:"omitempty,email"`
	Phone                string          `json:"phone" validate:"max=32"`
	CommissionPercentage decimal.Decimal `json:"commission_percentage"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, broker *Broker) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Broker, error)
	List(ctx context.Context, db *gorm.DB) ([]Broker, error)
}

type Service interface {
	Create(ctx context.Context, actor permission.Actor, req CreateBrokerRequest) (Broker, error)
	Get(ctx context.Context, id snowflake.ID) (Broker, error)
	List(ctx context.Context) ([]Broker, error)
}

var (
	ErrNotFound     = errors.New("broker_not_found")
	ErrDuplicateRUC = errors.New("duplicate_ruc")
)
