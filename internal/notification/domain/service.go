package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID     snowflake.ID
	UnreadOnly bool
	BeforeID   snowflake.ID
	Limit      int
}

type DedupeKey struct {
	UserID            snowflake.ID
	Type              Type
	RelatedObjectType string
	RelatedObjectID   snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Notification, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Notification, error)
	CountUnread(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error)
	MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	MarkAllRead(ctx context.Context, db *gorm.DB, userID snowflake.ID, at time.Time) (int64, error)
	ExistsSince(ctx context.Context, db *gorm.DB, key DedupeKey, since time.Time) (bool, error)
}

// Dispatcher persists notifications and hands them to the email channel.
// Failures are logged and counted, never returned to the caller's mutation.
type Dispatcher interface {
	Notify(ctx context.Context, msgs ...Message) int
	// NotifyOnce skips a message already sent to the recipient for the same
	// object since the start of the current day.
	NotifyOnce(ctx context.Context, msg Message) (bool, error)
}

type ListNotificationRequest struct {
	UnreadOnly bool `form:"unread_only"`
	pagination.Pagination
}

type ListNotificationResponse struct {
	Notifications []Notification      `json:"notifications"`
	PageInfo      pagination.PageInfo `json:"page_info"`
}

type Inbox interface {
	List(ctx context.Context, userID snowflake.ID, req ListNotificationRequest) (ListNotificationResponse, error)
	UnreadCount(ctx context.Context, userID snowflake.ID) (int64, error)
	MarkRead(ctx context.Context, userID, id snowflake.ID) (Notification, error)
	MarkAllRead(ctx context.Context, userID snowflake.ID) (int64, error)
}

var ErrNotFound = errors.New("notification_not_found")
