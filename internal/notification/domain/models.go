package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	TypeClaimStatusChanged       Type = "claim_status_changed"
	TypeClaimDocumentDeadline    Type = "claim_document_deadline"
	TypeClaimHardCap             Type = "claim_hard_cap"
	TypeClaimInsurerResponse     Type = "claim_insurer_response"
	TypeSettlementPaymentOverdue Type = "settlement_payment_overdue"
	TypePolicyExpiring           Type = "policy_expiring"
	TypePolicyExpired            Type = "policy_expired"
	TypeInvoicePaymentDue        Type = "invoice_payment_due"
	TypeInvoiceOverdue           Type = "invoice_overdue"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Notification struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID            snowflake.ID  `gorm:"not null;index:idx_notifications_user" json:"user_id"`
	NotificationType  Type          `gorm:"type:varchar(40);not null" json:"notification_type"`
	Title             string        `gorm:"type:varchar(255);not null" json:"title"`
	Message           string        `gorm:"type:text;not null" json:"message"`
	Priority          Priority      `gorm:"type:varchar(10);not null" json:"priority"`
	Link              string        `gorm:"type:varchar(500)" json:"link,omitempty"`
	IsRead            bool          `gorm:"not null;default:false;index:idx_notifications_user" json:"is_read"`
	ReadAt            *time.Time    `json:"read_at,omitempty"`
	RelatedObjectType string        `gorm:"type:varchar(40)" json:"related_object_type,omitempty"`
	RelatedObjectID   *snowflake.ID `json:"related_object_id,omitempty"`
	CreatedAt         time.Time     `gorm:"not null;index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// Message is the trigger contract: one notification for one recipient.
type Message struct {
	Recipient         snowflake.ID
	Type              Type
	Title             string
	Message           string
	Priority          Priority
	Link              string
	RelatedObjectType string
	RelatedObjectID   snowflake.ID
}
