package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	claimdomain "github.com/smallbiznis/coverdesk/internal/claim/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	notificationdomain "github.com/smallbiznis/coverdesk/internal/notification/domain"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ClaimSLAJob alerts the assignee, or all staff when nobody is assigned,
// about every SLA breach on an open claim.
func (s *Scheduler) ClaimSLAJob(ctx context.Context) (int, error) {
	reports, err := s.claims.SLABreaches(ctx)
	if err != nil {
		return 0, err
	}
	if len(reports) == 0 {
		return 0, nil
	}

	var staff []snowflake.ID
	sent := 0
	for _, report := range reports {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		c := report.Claim
		recipients := []snowflake.ID{}
		if c.AssignedToID != nil {
			recipients = append(recipients, *c.AssignedToID)
		} else {
			if staff == nil {
				if staff, err = s.staffIDs(ctx); err != nil {
					return sent, err
				}
			}
			recipients = staff
		}

		for _, breach := range report.Status.Breaches {
			msg := claimBreachMessage(c, breach, report.Status)
			for _, recipient := range recipients {
				msg.Recipient = recipient
				sent += s.notifyOnce(ctx, msg)
			}
		}
	}
	return sent, nil
}

func claimBreachMessage(c claimdomain.Claim, breach claimdomain.Breach, status claimdomain.SLAStatus) notificationdomain.Message {
	msg := notificationdomain.Message{
		Link:              "/claims/" + c.ID.String(),
		RelatedObjectType: "claim",
		RelatedObjectID:   c.ID,
	}
	switch breach {
	case claimdomain.BreachHardCap:
		msg.Type = notificationdomain.TypeClaimHardCap
		msg.Priority = notificationdomain.PriorityUrgent
		msg.Title = "Claim past its maximum handling time: " + c.ClaimNumber
		msg.Message = fmt.Sprintf("Claim %s has waited %d days for documents, beyond the maximum allowed.", c.ClaimNumber, status.DaysSinceDocumentRequest)
	case claimdomain.BreachInsurerResponse:
		msg.Type = notificationdomain.TypeClaimInsurerResponse
		msg.Priority = notificationdomain.PriorityHigh
		msg.Title = "Insurer response overdue: " + c.ClaimNumber
		msg.Message = fmt.Sprintf("The insurer has not answered claim %s after %d business days.", c.ClaimNumber, status.BusinessDaysSinceSubmission)
	default:
		msg.Type = notificationdomain.TypeClaimDocumentDeadline
		msg.Priority = notificationdomain.PriorityHigh
		msg.Title = "Claim documents overdue: " + c.ClaimNumber
		msg.Message = fmt.Sprintf("Claim %s has waited %d days for the requested documents.", c.ClaimNumber, status.DaysSinceDocumentRequest)
	}
	return msg
}

// SettlementOverdueJob alerts the settlement author once a signed settlement
// passes its payment deadline unpaid.
func (s *Scheduler) SettlementOverdueJob(ctx context.Context) (int, error) {
	overdue, err := s.settlements.OverdueForPayment(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, st := range overdue {
		deadline := ""
		if st.PaymentDeadline != nil {
			deadline = st.PaymentDeadline.Format("2006-01-02 15:04")
		}
		sent += s.notifyOnce(ctx, notificationdomain.Message{
			Recipient:         st.CreatedByID,
			Type:              notificationdomain.TypeSettlementPaymentOverdue,
			Priority:          notificationdomain.PriorityUrgent,
			Title:             "Settlement payment overdue: " + st.SettlementNumber,
			Message:           fmt.Sprintf("Settlement %s for %s was due for payment by %s.", st.SettlementNumber, st.FinalPayable.StringFixed(2), deadline),
			Link:              "/settlements/" + st.ID.String(),
			RelatedObjectType: "settlement",
			RelatedObjectID:   st.ID,
		})
	}
	return sent, nil
}

func (s *Scheduler) PolicyExpiringJob(ctx context.Context) (int, error) {
	now := s.clock.Now()
	today := clock.Date(now)
	window := s.workflow.Get().Alerts.PolicyExpiringDays
	policies, err := s.policies.ExpiringBetween(ctx, today, today.AddDate(0, 0, window))
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, p := range policies {
		days := p.DaysUntilExpiry(now)
		priority := notificationdomain.PriorityNormal
		if days <= 7 {
			priority = notificationdomain.PriorityHigh
		}
		sent += s.notifyOnce(ctx, notificationdomain.Message{
			Recipient:         p.ResponsibleUserID,
			Type:              notificationdomain.TypePolicyExpiring,
			Priority:          priority,
			Title:             "Policy expiring: " + p.PolicyNumber,
			Message:           fmt.Sprintf("Policy %s expires in %d days (%s).", p.PolicyNumber, days, p.EndDate.Format(dateLayout)),
			Link:              "/policies/" + p.ID.String(),
			RelatedObjectType: "policy",
			RelatedObjectID:   p.ID,
		})
	}
	return sent, nil
}

// PolicyExpiredJob alerts on active policies whose end date passed within the
// last week. Expiring them stays a manual step.
func (s *Scheduler) PolicyExpiredJob(ctx context.Context) (int, error) {
	today := clock.Date(s.clock.Now())
	policies, err := s.policies.ExpiringBetween(ctx, today.AddDate(0, 0, -7), today.AddDate(0, 0, -1))
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, p := range policies {
		sent += s.notifyOnce(ctx, notificationdomain.Message{
			Recipient:         p.ResponsibleUserID,
			Type:              notificationdomain.TypePolicyExpired,
			Priority:          notificationdomain.PriorityUrgent,
			Title:             "Policy expired: " + p.PolicyNumber,
			Message:           fmt.Sprintf("Policy %s ended on %s and is still active.", p.PolicyNumber, p.EndDate.Format(dateLayout)),
			Link:              "/policies/" + p.ID.String(),
			RelatedObjectType: "policy",
			RelatedObjectID:   p.ID,
		})
	}
	return sent, nil
}

// InvoiceOverdueJob flags pending invoices past due and alerts their authors.
func (s *Scheduler) InvoiceOverdueJob(ctx context.Context) (int, error) {
	flagged, err := s.invoices.MarkOverdue(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	sent := 0
	for _, inv := range flagged {
		sent += s.notifyOnce(ctx, notificationdomain.Message{
			Recipient:         inv.CreatedByID,
			Type:              notificationdomain.TypeInvoiceOverdue,
			Priority:          notificationdomain.PriorityHigh,
			Title:             "Invoice overdue: " + inv.InvoiceNumber,
			Message:           fmt.Sprintf("Invoice %s for %s is %d days overdue.", inv.InvoiceNumber, inv.Total.StringFixed(2), clock.DaysBetween(inv.DueDate, now)),
			Link:              "/invoices/" + inv.ID.String(),
			RelatedObjectType: "invoice",
			RelatedObjectID:   inv.ID,
		})
	}
	return sent, nil
}

func (s *Scheduler) InvoiceDueJob(ctx context.Context) (int, error) {
	invoices, err := s.invoices.DueWithin(ctx, s.workflow.Get().Alerts.PaymentDueDays)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	sent := 0
	for _, inv := range invoices {
		sent += s.notifyOnce(ctx, notificationdomain.Message{
			Recipient:         inv.CreatedByID,
			Type:              notificationdomain.TypeInvoicePaymentDue,
			Priority:          notificationdomain.PriorityNormal,
			Title:             "Invoice payment due: " + inv.InvoiceNumber,
			Message:           fmt.Sprintf("Invoice %s for %s is due in %d days (%s).", inv.InvoiceNumber, inv.Total.StringFixed(2), clock.DaysBetween(now, inv.DueDate), inv.DueDate.Format(dateLayout)),
			Link:              "/invoices/" + inv.ID.String(),
			RelatedObjectType: "invoice",
			RelatedObjectID:   inv.ID,
		})
	}
	return sent, nil
}

func (s *Scheduler) staffIDs(ctx context.Context) ([]snowflake.ID, error) {
	users, err := s.staff.Staff(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// notifyOnce returns 1 when the alert went out, 0 when it was a duplicate or failed.
func (s *Scheduler) notifyOnce(ctx context.Context, msg notificationdomain.Message) int {
	if msg.Recipient == 0 {
		return 0
	}
	sent, err := s.dispatcher.NotifyOnce(ctx, msg)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logAlertError(ctx, "scheduler.alert.failed", err,
				zap.String("notification_type", string(msg.Type)),
				zap.String("related_object_id", msg.RelatedObjectID.String()),
			)
		}
		return 0
	}
	if sent {
		return 1
	}
	return 0
}
