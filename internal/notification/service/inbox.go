package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/notification/domain"
	"github.com/smallbiznis/coverdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type InboxParams struct {
	fx.In

	DB    *gorm.DB
	Clock clock.Clock
	Repo  domain.Repository
}

type Inbox struct {
	db    *gorm.DB
	clock clock.Clock
	repo  domain.Repository
}

func NewInbox(p InboxParams) domain.Inbox {
	return &Inbox{db: p.DB, clock: p.Clock, repo: p.Repo}
}

func (i *Inbox) List(ctx context.Context, userID snowflake.ID, req domain.ListNotificationRequest) (domain.ListNotificationResponse, error) {
	beforeID, err := pagination.DecodeCursorID(strings.TrimSpace(req.PageToken))
	if err != nil {
		return domain.ListNotificationResponse{}, err
	}
	limit := req.Limit()
	items, err := i.repo.List(ctx, i.db, domain.ListFilter{
		UserID:     userID,
		UnreadOnly: req.UnreadOnly,
		BeforeID:   snowflake.ID(beforeID),
		Limit:      limit,
	})
	if err != nil {
		return domain.ListNotificationResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, limit, func(n domain.Notification) int64 { return n.ID.Int64() })
	if items == nil {
		items = []domain.Notification{}
	}
	return domain.ListNotificationResponse{Notifications: items, PageInfo: pageInfo}, nil
}

func (i *Inbox) UnreadCount(ctx context.Context, userID snowflake.ID) (int64, error) {
	return i.repo.CountUnread(ctx, i.db, userID)
}

// MarkRead only touches the recipient's own notifications.
func (i *Inbox) MarkRead(ctx context.Context, userID, id snowflake.ID) (domain.Notification, error) {
	n, err := i.repo.FindByID(ctx, i.db, id)
	if err != nil {
		return domain.Notification{}, err
	}
	if n == nil || n.UserID != userID {
		return domain.Notification{}, domain.ErrNotFound
	}
	if n.IsRead {
		return *n, nil
	}
	now := i.clock.Now()
	if err := i.repo.MarkRead(ctx, i.db, id, now); err != nil {
		return domain.Notification{}, err
	}
	n.IsRead = true
	n.ReadAt = &now
	return *n, nil
}

func (i *Inbox) MarkAllRead(ctx context.Context, userID snowflake.ID) (int64, error) {
	return i.repo.MarkAllRead(ctx, i.db, userID, i.clock.Now())
}
