package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/money"
)

type Status string

const (
	StatusPending      Status = "pending"
	StatusInReview     Status = "in_review"
	StatusNeedsChanges Status = "needs_changes"
	StatusApproved     Status = "approved"
	StatusRejected     Status = "rejected"
	StatusSettled      Status = "settled"
	StatusPaid         Status = "paid"
)

var transitions = map[Status][]Status{
	StatusPending:      {StatusInReview},
	StatusInReview:     {StatusNeedsChanges, StatusApproved, StatusRejected},
	StatusNeedsChanges: {StatusPending, StatusInReview},
	StatusApproved:     {StatusSettled, StatusRejected},
	StatusSettled:      {StatusPaid},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInReview, StatusNeedsChanges, StatusApproved,
		StatusRejected, StatusSettled, StatusPaid:
		return true
	}
	return false
}

// Terminal statuses have no outgoing edges.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Next lists the statuses reachable from s in one step.
func (s Status) Next() []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

func (s Status) CanMoveTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// TransitionInput carries the target-specific data of a status change.
type TransitionInput struct {
	Target         Status
	Notes          string
	ApprovedAmount *decimal.Decimal
	Now            time.Time
}

// StateMachine decides and applies claim status changes.
type StateMachine struct {
	resolver *permission.Resolver
}

func NewStateMachine(resolver *permission.Resolver) *StateMachine {
	return &StateMachine{resolver: resolver}
}

// CanTransition reports whether actor may move claim to target.
func (m *StateMachine) CanTransition(claim Claim, target Status, actor permission.Actor) bool {
	return m.check(claim, target, actor) == ""
}

func (m *StateMachine) check(claim Claim, target Status, actor permission.Actor) string {
	switch {
	case !actor.Valid():
		return "actor is not a valid user"
	case !m.resolver.HasPermission(actor.Role, permission.ClaimsTransition):
		return "role " + string(actor.Role) + " cannot change claim status"
	case claim.Archived():
		return "claim is archived"
	case !claim.Status.CanMoveTo(target):
		return "transition is not allowed"
	}
	return ""
}

// Apply moves claim to in.Target and returns the timeline entry to append.
// claim is left untouched when an error is returned.
func (m *StateMachine) Apply(claim *Claim, actor permission.Actor, in TransitionInput) (TimelineEntry, error) {
	from := claim.Status
	if reason := m.check(*claim, in.Target, actor); reason != "" {
		return TimelineEntry{}, &apperror.WorkflowViolation{
			Entity: "claim",
			From:   string(from),
			To:     string(in.Target),
			Reason: reason,
		}
	}

	next := *claim
	next.Status = in.Target
	next.UpdatedAt = in.Now

	switch in.Target {
	case StatusRejected:
		if in.Notes != "" {
			next.RejectionReason = in.Notes
		}
		if next.RejectionReason == "" {
			return TimelineEntry{}, apperror.NewValidationError("notes", "required", "a rejection reason is required")
		}
	case StatusApproved:
		if in.ApprovedAmount != nil {
			amount := money.Round2(*in.ApprovedAmount)
			next.ApprovedAmount = &amount
		}
	case StatusPaid:
		if next.PaymentDate == nil {
			paid := in.Now
			next.PaymentDate = &paid
		}
	case StatusNeedsChanges:
		next.ValidationComments = in.Notes
	}

	if err := next.Validate(); err != nil {
		return TimelineEntry{}, err
	}

	*claim = next
	actorID := actor.UserID
	return TimelineEntry{
		ClaimID:   claim.ID,
		EventType: EventStatusChange,
		OldStatus: from,
		NewStatus: in.Target,
		ActorID:   &actorID,
		Notes:     in.Notes,
		CreatedAt: in.Now,
	}, nil
}
