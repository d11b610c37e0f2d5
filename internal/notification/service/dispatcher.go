package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/config"
	"github.com/smallbiznis/coverdesk/internal/notification/domain"
	"github.com/smallbiznis/coverdesk/internal/observability/metrics"
	"github.com/smallbiznis/coverdesk/internal/providers/email"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DispatcherParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Repo     domain.Repository
	UserRepo userdomain.Repository
	Email    email.Provider
	Metrics  *metrics.Workflow `optional:"true"`
}

type Dispatcher struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	baseURL  string
	repo     domain.Repository
	userRepo userdomain.Repository
	email    email.Provider
	metrics  *metrics.Workflow
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	provider := p.Email
	if provider == nil {
		provider = email.NoOpProvider{}
	}
	return &Dispatcher{
		db:       p.DB,
		log:      p.Log.Named("notification.dispatcher"),
		genID:    p.GenID,
		clock:    p.Clock,
		baseURL:  p.Config.SMTP.BaseURL,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		email:    provider,
		metrics:  p.Metrics,
	}
}

// Notify delivers every message and returns how many reached the inbox.
func (d *Dispatcher) Notify(ctx context.Context, msgs ...domain.Message) int {
	delivered := 0
	for _, msg := range msgs {
		if err := d.deliver(ctx, msg); err != nil {
			d.report(msg, err)
			continue
		}
		delivered++
	}
	return delivered
}

func (d *Dispatcher) NotifyOnce(ctx context.Context, msg domain.Message) (bool, error) {
	exists, err := d.repo.ExistsSince(ctx, d.db, domain.DedupeKey{
		UserID:            msg.Recipient,
		Type:              msg.Type,
		RelatedObjectType: msg.RelatedObjectType,
		RelatedObjectID:   msg.RelatedObjectID,
	}, clock.Date(d.clock.Now()))
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := d.deliver(ctx, msg); err != nil {
		d.report(msg, err)
		return false, err
	}
	return true, nil
}

func (d *Dispatcher) deliver(ctx context.Context, msg domain.Message) error {
	if msg.Recipient == 0 {
		return errors.New("recipient is required")
	}
	priority := msg.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	n := domain.Notification{
		ID:                d.genID.Generate(),
		UserID:            msg.Recipient,
		NotificationType:  msg.Type,
		Title:             strings.TrimSpace(msg.Title),
		Message:           strings.TrimSpace(msg.Message),
		Priority:          priority,
		Link:              msg.Link,
		RelatedObjectType: msg.RelatedObjectType,
		CreatedAt:         d.clock.Now(),
	}
	if msg.RelatedObjectID != 0 {
		id := msg.RelatedObjectID
		n.RelatedObjectID = &id
	}
	if err := d.repo.Insert(ctx, d.db, &n); err != nil {
		return err
	}
	d.metrics.Notification(string(msg.Type), nil)

	d.sendEmail(ctx, msg)
	return nil
}

// sendEmail is best effort; the inbox row is the record of delivery.
func (d *Dispatcher) sendEmail(ctx context.Context, msg domain.Message) {
	user, err := d.userRepo.FindByID(ctx, d.db, msg.Recipient)
	if err != nil || user == nil || user.Email == "" {
		return
	}
	out, err := email.RenderNotice([]string{user.Email}, d.baseURL, email.Notice{
		Title:   msg.Title,
		Message: msg.Message,
		Link:    msg.Link,
	})
	if err == nil {
		err = d.email.Send(ctx, out)
	}
	if err != nil {
		d.report(msg, err)
	}
}

func (d *Dispatcher) report(msg domain.Message, err error) {
	dispatchErr := &apperror.NotificationDispatchError{
		Recipient: msg.Recipient.String(),
		Type:      string(msg.Type),
		Err:       err,
	}
	d.metrics.Notification(string(msg.Type), dispatchErr)
	d.log.Warn("notification dispatch failed",
		zap.String("notification_type", string(msg.Type)),
		zap.String("recipient", msg.Recipient.String()),
		zap.Error(dispatchErr),
	)
}
