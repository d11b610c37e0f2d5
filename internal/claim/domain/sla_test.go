package domain

import (
	"testing"
	"time"

	"github.com/smallbiznis/coverdesk/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateSLADocumentDeadlines(t *testing.T) {
	cfg := config.DefaultWorkflowConfig().SLA
	requested := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		days     int
		breaches []Breach
	}{
		{0, []Breach{}},
		{8, []Breach{}},
		{9, []Breach{BreachDocumentDeadline}},
		{30, []Breach{BreachDocumentDeadline}},
		{31, []Breach{BreachDocumentDeadline, BreachHardCap}},
	}
	for _, tc := range cases {
		claim := claimIn(StatusInReview)
		claim.DocumentRequestDate = &requested

		got := EvaluateSLA(claim, requested.AddDate(0, 0, tc.days), cfg)
		assert.Equal(t, tc.days, got.DaysSinceDocumentRequest)
		assert.Equal(t, tc.breaches, got.Breaches, "day %d", tc.days)
	}

	completed := requested.AddDate(0, 0, 2)
	claim := claimIn(StatusInReview)
	claim.DocumentRequestDate = &requested
	claim.DocumentCompletionDate = &completed
	assert.Empty(t, EvaluateSLA(claim, requested.AddDate(0, 0, 40), cfg).Breaches)
}

func TestEvaluateSLAInsurerResponseCountsBusinessDays(t *testing.T) {
	cfg := config.DefaultWorkflowConfig().SLA
	// Friday.
	submitted := time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		calendarDays int
		businessDays int
		breach       bool
	}{
		{1, 0, false},
		{3, 1, false},
		{12, 8, false},
		{13, 9, true},
	}
	for _, tc := range cases {
		claim := claimIn(StatusInReview)
		claim.InsurerSubmissionDate = &submitted

		got := EvaluateSLA(claim, submitted.AddDate(0, 0, tc.calendarDays), cfg)
		assert.Equal(t, tc.businessDays, got.BusinessDaysSinceSubmission, "+%d days", tc.calendarDays)
		assert.Equal(t, tc.breach, got.Has(BreachInsurerResponse), "+%d days", tc.calendarDays)
	}

	responded := submitted.AddDate(0, 0, 20)
	claim := claimIn(StatusInReview)
	claim.InsurerSubmissionDate = &submitted
	claim.InsurerResponseDate = &responded
	assert.False(t, EvaluateSLA(claim, submitted.AddDate(0, 0, 30), cfg).Has(BreachInsurerResponse))
}

func TestEvaluateSLAUsesConfiguredThresholds(t *testing.T) {
	requested := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	claim := claimIn(StatusInReview)
	claim.DocumentRequestDate = &requested

	cfg := config.SLAConfig{DocumentDeadlineDays: 2, MaxDays: 4, InsurerResponseBusinessDays: 1}
	assert.Equal(t, []Breach{BreachDocumentDeadline}, EvaluateSLA(claim, requested.AddDate(0, 0, 3), cfg).Breaches)
	assert.Equal(t, []Breach{BreachDocumentDeadline, BreachHardCap}, EvaluateSLA(claim, requested.AddDate(0, 0, 5), cfg).Breaches)
}
