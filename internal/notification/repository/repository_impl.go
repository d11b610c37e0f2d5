package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/notification/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return db.WithContext(ctx).Create(n).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Notification, error) {
	var n domain.Notification
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&n).Error; err != nil {
		return nil, err
	}
	if n.ID == 0 {
		return nil, nil
	}
	return &n, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Notification, error) {
	var items []domain.Notification
	stmt := db.WithContext(ctx).Where("user_id = ?", filter.UserID)
	if filter.UnreadOnly {
		stmt = stmt.Where("is_read = ?", false)
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}
	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountUnread(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notifications SET is_read = ?, read_at = ? WHERE id = ? AND is_read = ?`,
		true, at, id, false,
	).Error
}

func (r *repo) MarkAllRead(ctx context.Context, db *gorm.DB, userID snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE notifications SET is_read = ?, read_at = ? WHERE user_id = ? AND is_read = ?`,
		true, at, userID, false,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ExistsSince(ctx context.Context, db *gorm.DB, key domain.DedupeKey, since time.Time) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("user_id = ? AND notification_type = ? AND related_object_type = ? AND related_object_id = ? AND created_at >= ?",
			key.UserID, key.Type, key.RelatedObjectType, key.RelatedObjectID, since).
		Count(&count).Error
	return count > 0, err
}
