package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Save(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.find(db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repo) find(db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	if err := db.Where("id = ?", id).Limit(1).Find(&invoice).Error; err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.PolicyID != 0 {
		stmt = stmt.Where("policy_id = ?", filter.PolicyID)
	}
	if filter.PaymentStatus != "" {
		stmt = stmt.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.DueAfter != nil {
		stmt = stmt.Where("due_date >= ?", *filter.DueAfter)
	}
	if filter.DueBefore != nil {
		stmt = stmt.Where("due_date <= ?", *filter.DueBefore)
	}
	if err := stmt.Order("due_date asc, id asc").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, cutoff time.Time, at time.Time) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("payment_status = ? AND due_date < ?", domain.PaymentPending, cutoff).
			Order("id asc").
			Find(&invoices).Error; err != nil {
			return err
		}
		if len(invoices) == 0 {
			return nil
		}
		ids := make([]snowflake.ID, 0, len(invoices))
		for i := range invoices {
			ids = append(ids, invoices[i].ID)
			invoices[i].PaymentStatus = domain.PaymentOverdue
			invoices[i].UpdatedAt = at
		}
		return tx.Model(&domain.Invoice{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"payment_status": domain.PaymentOverdue, "updated_at": at}).Error
	})
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
