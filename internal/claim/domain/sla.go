package domain

import (
	"time"

	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/config"
)

type Breach string

const (
	BreachDocumentDeadline Breach = "document_deadline"
	BreachHardCap          Breach = "hard_cap"
	BreachInsurerResponse  Breach = "insurer_response"
)

// SLAStatus is a read-only view of a claim's deadlines at a point in time.
type SLAStatus struct {
	DaysSinceDocumentRequest    int      `json:"days_since_document_request"`
	BusinessDaysSinceSubmission int      `json:"business_days_since_submission"`
	Breaches                    []Breach `json:"breaches"`
}

func (s SLAStatus) Has(b Breach) bool {
	for _, got := range s.Breaches {
		if got == b {
			return true
		}
	}
	return false
}

func EvaluateSLA(c Claim, now time.Time, cfg config.SLAConfig) SLAStatus {
	out := SLAStatus{Breaches: []Breach{}}

	if c.DocumentRequestDate != nil && c.DocumentCompletionDate == nil {
		days := clock.DaysBetween(*c.DocumentRequestDate, now)
		out.DaysSinceDocumentRequest = days
		if days > cfg.DocumentDeadlineDays {
			out.Breaches = append(out.Breaches, BreachDocumentDeadline)
		}
		if days > cfg.MaxDays {
			out.Breaches = append(out.Breaches, BreachHardCap)
		}
	}

	if c.InsurerSubmissionDate != nil && c.InsurerResponseDate == nil {
		days := clock.BusinessDaysBetween(*c.InsurerSubmissionDate, now)
		out.BusinessDaysSinceSubmission = days
		if days > cfg.InsurerResponseBusinessDays {
			out.Breaches = append(out.Breaches, BreachInsurerResponse)
		}
	}
	return out
}
