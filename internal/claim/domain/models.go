package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
)

type Claim struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	ClaimNumber      string           `gorm:"type:varchar(32);not null;uniqueIndex" json:"claim_number"`
	PolicyID         snowflake.ID     `gorm:"not null;index" json:"policy_id"`
	AssetID          snowflake.ID     `gorm:"not null;index" json:"asset_id"`
	CoverageID       *snowflake.ID    `json:"coverage_id,omitempty"`
	IncidentDate     time.Time        `gorm:"not null" json:"incident_date"`
	ReportDate       time.Time        `gorm:"not null" json:"report_date"`
	IncidentLocation string           `gorm:"type:varchar(255);not null" json:"incident_location"`
	Cause            string           `gorm:"type:varchar(255)" json:"cause"`
	Description      string           `gorm:"type:text;not null" json:"description"`
	EstimatedLoss    decimal.Decimal  `gorm:"type:numeric(15,2);not null" json:"estimated_loss"`
	ApprovedAmount   *decimal.Decimal `gorm:"type:numeric(15,2)" json:"approved_amount,omitempty"`
	DeductibleAmount decimal.Decimal  `gorm:"type:numeric(15,2);not null" json:"deductible_amount"`
	Status           Status           `gorm:"type:varchar(20);not null;index" json:"status"`
	RejectionReason  string           `gorm:"type:text" json:"rejection_reason,omitempty"`
	PaymentDate      *time.Time       `json:"payment_date,omitempty"`
	ReportedByID     snowflake.ID     `gorm:"not null;index" json:"reported_by_id"`
	AssignedToID     *snowflake.ID    `gorm:"index" json:"assigned_to_id,omitempty"`

	DocumentRequestDate    *time.Time `json:"document_request_date,omitempty"`
	DocumentCompletionDate *time.Time `json:"document_completion_date,omitempty"`
	InsurerSubmissionDate  *time.Time `json:"insurer_submission_date,omitempty"`
	InsurerResponseDate    *time.Time `json:"insurer_response_date,omitempty"`

	ValidationComments string     `gorm:"type:text" json:"validation_comments,omitempty"`
	ArchivedAt         *time.Time `json:"archived_at,omitempty"`
	CreatedAt          time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null" json:"updated_at"`
}

func (Claim) TableName() string { return "claims" }

func (c Claim) Validate() error {
	var col apperror.Collector
	if c.PolicyID == 0 {
		col.Add("policy_id", "required", "policy_id is required")
	}
	if c.AssetID == 0 {
		col.Add("asset_id", "required", "asset_id is required")
	}
	if c.IncidentLocation == "" {
		col.Add("incident_location", "required", "incident_location is required")
	}
	if c.Description == "" {
		col.Add("description", "required", "description is required")
	}
	if c.IncidentDate.IsZero() {
		col.Add("incident_date", "required", "incident_date is required")
	} else if c.ReportDate.Before(c.IncidentDate) {
		col.Add("report_date", "before_incident_date", "report_date cannot be before incident_date")
	}
	if !c.EstimatedLoss.IsPositive() {
		col.Add("estimated_loss", "positive", "estimated_loss must be greater than zero")
	}
	if c.ApprovedAmount != nil {
		if c.ApprovedAmount.IsNegative() {
			col.Add("approved_amount", "non_negative", "approved_amount cannot be negative")
		} else if c.ApprovedAmount.GreaterThan(c.EstimatedLoss) {
			col.Add("approved_amount", "exceeds_estimated_loss", "approved_amount cannot exceed estimated_loss")
		}
	}
	if c.Status == StatusApproved || c.Status == StatusSettled {
		if c.PayableAmount().LessThan(c.DeductibleAmount) {
			col.Add("approved_amount", "below_deductible", "the approved amount cannot be below the deductible")
		}
	}
	if c.Status == StatusRejected && c.RejectionReason == "" {
		col.Add("rejection_reason", "required", "a rejected claim needs a rejection reason")
	}
	if c.Status == StatusPaid && c.PaymentDate == nil {
		col.Add("payment_date", "required", "a paid claim needs a payment date")
	}
	return col.Err()
}

// PayableAmount is the approved amount, or the estimated loss while no
// amount has been approved.
func (c Claim) PayableAmount() decimal.Decimal {
	if c.ApprovedAmount != nil {
		return *c.ApprovedAmount
	}
	return c.EstimatedLoss
}

// OwnedBy reports whether userID reported the claim.
func (c Claim) OwnedBy(userID snowflake.ID) bool {
	return c.ReportedByID == userID
}

func (c Claim) Archived() bool {
	return c.ArchivedAt != nil
}

type EventType string

const (
	EventStatusChange       EventType = "status_change"
	EventDocumentUploaded   EventType = "document_uploaded"
	EventComment            EventType = "comment"
	EventDocumentsRequested EventType = "documents_requested"
	EventDocumentsCompleted EventType = "documents_completed"
	EventInsurerSubmission  EventType = "insurer_submission"
	EventInsurerResponse    EventType = "insurer_response"
	EventCoverageAssigned   EventType = "coverage_assigned"
)

// TimelineEntry is append-only.
type TimelineEntry struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	ClaimID   snowflake.ID  `gorm:"not null;index" json:"claim_id"`
	EventType EventType     `gorm:"type:varchar(32);not null" json:"event_type"`
	OldStatus Status        `gorm:"type:varchar(20)" json:"old_status,omitempty"`
	NewStatus Status        `gorm:"type:varchar(20)" json:"new_status,omitempty"`
	ActorID   *snowflake.ID `json:"actor_id,omitempty"`
	Notes     string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
}

func (TimelineEntry) TableName() string { return "claim_timeline" }

type DocumentType string

const (
	DocumentInitialReport DocumentType = "initial_report"
	DocumentPhotos        DocumentType = "photos"
	DocumentPoliceReport  DocumentType = "police_report"
	DocumentAppraisal     DocumentType = "appraisal"
	DocumentInvoice       DocumentType = "invoice"
	DocumentSettlement    DocumentType = "settlement"
	DocumentOther         DocumentType = "other"
)

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentInitialReport, DocumentPhotos, DocumentPoliceReport, DocumentAppraisal,
		DocumentInvoice, DocumentSettlement, DocumentOther:
		return true
	}
	return false
}

// Document is metadata for a file kept in external storage.
type Document struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	ClaimID      snowflake.ID `gorm:"not null;index" json:"claim_id"`
	DocumentType DocumentType `gorm:"type:varchar(20);not null" json:"document_type"`
	Name         string       `gorm:"type:varchar(255);not null" json:"name"`
	StorageKey   string       `gorm:"type:varchar(500);not null" json:"storage_key"`
	SizeBytes    int64        `gorm:"not null" json:"size_bytes"`
	IsRequired   bool         `gorm:"not null;default:false" json:"is_required"`
	UploadedByID snowflake.ID `gorm:"not null" json:"uploaded_by_id"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
}

func (Document) TableName() string { return "claim_documents" }
