package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/claim/domain"
	notificationdomain "github.com/smallbiznis/coverdesk/internal/notification/domain"
	"github.com/smallbiznis/coverdesk/internal/permission"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	reporterTargets = map[domain.Status]bool{
		domain.StatusNeedsChanges: true,
		domain.StatusRejected:     true,
		domain.StatusApproved:     true,
		domain.StatusPaid:         true,
	}
	staffTargets = map[domain.Status]bool{
		domain.StatusInReview: true,
		domain.StatusSettled:  true,
		domain.StatusRejected: true,
		domain.StatusPaid:     true,
	}
)

type NotifierParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	UserRepo   userdomain.Repository
	Dispatcher notificationdomain.Dispatcher
}

type Notifier struct {
	db         *gorm.DB
	log        *zap.Logger
	userRepo   userdomain.Repository
	dispatcher notificationdomain.Dispatcher
}

func NewNotifier(p NotifierParams) *Notifier {
	return &Notifier{
		db:         p.DB,
		log:        p.Log.Named("claim.notifier"),
		userRepo:   p.UserRepo,
		dispatcher: p.Dispatcher,
	}
}

// Recipients resolves who hears about claim entering its current status.
func (n *Notifier) Recipients(ctx context.Context, claim domain.Claim, actor permission.Actor) ([]snowflake.ID, error) {
	seen := map[snowflake.ID]bool{}
	var out []snowflake.ID
	add := func(id snowflake.ID) {
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	if reporterTargets[claim.Status] {
		add(claim.ReportedByID)
	}
	if staffTargets[claim.Status] {
		staff, err := n.userRepo.ListActiveByRoles(ctx, n.db, permission.RoleAdmin, permission.RoleInsuranceManager)
		if err != nil {
			return out, err
		}
		for _, u := range staff {
			if u.ID == actor.UserID {
				continue
			}
			add(u.ID)
		}
	}
	return out, nil
}

func (n *Notifier) ClaimStatusChanged(ctx context.Context, claim domain.Claim, from domain.Status, actor permission.Actor) {
	recipients, err := n.Recipients(ctx, claim, actor)
	if err != nil {
		n.log.Warn("resolve claim notification recipients", zap.String("claim_id", claim.ID.String()), zap.Error(err))
	}
	if len(recipients) == 0 {
		return
	}

	title, message, priority := describe(claim, from)
	msgs := make([]notificationdomain.Message, 0, len(recipients))
	for _, id := range recipients {
		msgs = append(msgs, notificationdomain.Message{
			Recipient:         id,
			Type:              notificationdomain.TypeClaimStatusChanged,
			Title:             title,
			Message:           message,
			Priority:          priority,
			Link:              fmt.Sprintf("/claims/%s", claim.ID),
			RelatedObjectType: "claim",
			RelatedObjectID:   claim.ID,
		})
	}
	n.dispatcher.Notify(ctx, msgs...)
}

func describe(claim domain.Claim, from domain.Status) (string, string, notificationdomain.Priority) {
	title := fmt.Sprintf("Claim %s: %s", claim.ClaimNumber, claim.Status)
	switch claim.Status {
	case domain.StatusNeedsChanges:
		return title, "The claim needs changes: " + claim.ValidationComments, notificationdomain.PriorityHigh
	case domain.StatusRejected:
		return title, "The claim was rejected: " + claim.RejectionReason, notificationdomain.PriorityHigh
	case domain.StatusApproved:
		msg := "The claim was approved."
		if claim.ApprovedAmount != nil {
			msg = "The claim was approved for " + claim.ApprovedAmount.StringFixed(2) + "."
		}
		return title, msg, notificationdomain.PriorityNormal
	case domain.StatusPaid:
		return title, "The claim has been paid.", notificationdomain.PriorityNormal
	case domain.StatusSettled:
		return title, "The claim is settled and awaits settlement signature.", notificationdomain.PriorityNormal
	}
	return title, fmt.Sprintf("The claim moved from %s to %s.", from, claim.Status), notificationdomain.PriorityNormal
}
