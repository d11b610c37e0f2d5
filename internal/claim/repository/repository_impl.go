package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/claim/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, claim *domain.Claim) error {
	return db.WithContext(ctx).Create(claim).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, claim *domain.Claim) error {
	return db.WithContext(ctx).Save(claim).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Claim, error) {
	return r.find(db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Claim, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repo) find(db *gorm.DB, id snowflake.ID) (*domain.Claim, error) {
	var claim domain.Claim
	if err := db.Where("id = ?", id).Limit(1).Find(&claim).Error; err != nil {
		return nil, err
	}
	if claim.ID == 0 {
		return nil, nil
	}
	return &claim, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Claim, error) {
	var claims []domain.Claim
	stmt := db.WithContext(ctx).Model(&domain.Claim{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.PolicyID != 0 {
		stmt = stmt.Where("policy_id = ?", filter.PolicyID)
	}
	if filter.ReportedByID != 0 {
		stmt = stmt.Where("reported_by_id = ?", filter.ReportedByID)
	}
	if !filter.IncludeArchived {
		stmt = stmt.Where("archived_at IS NULL")
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}
	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *repo) ListAwaiting(ctx context.Context, db *gorm.DB) ([]domain.Claim, error) {
	var claims []domain.Claim
	err := db.WithContext(ctx).
		Where("archived_at IS NULL").
		Where("status NOT IN ?", []domain.Status{domain.StatusPaid, domain.StatusRejected}).
		Where("((document_request_date IS NOT NULL AND document_completion_date IS NULL) OR (insurer_submission_date IS NOT NULL AND insurer_response_date IS NULL))").
		Order("id asc").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *repo) AppendTimeline(ctx context.Context, db *gorm.DB, entry *domain.TimelineEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListTimeline(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]domain.TimelineEntry, error) {
	var entries []domain.TimelineEntry
	err := db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("created_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) InsertDocument(ctx context.Context, db *gorm.DB, doc *domain.Document) error {
	return db.WithContext(ctx).Create(doc).Error
}

func (r *repo) ListDocuments(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]domain.Document, error) {
	var docs []domain.Document
	err := db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("id asc").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}
