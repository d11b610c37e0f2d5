package service

import (
	claimdomain "github.com/smallbiznis/coverdesk/internal/claim/domain"
)

// NewOpener lets the claim state machine open settlements inside the claim's
// own transaction.
func NewOpener(p Params) claimdomain.SettlementOpener {
	return newService(p)
}
