package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateClaimRequest struct {
	PolicyID         snowflake.ID    `json:"policy_id" validate:"required"`
	AssetID          snowflake.ID    `json:"asset_id" validate:"required"`
	IncidentDate     time.Time       `json:"incident_date"`
	ReportDate       *time.Time      `json:"report_date"`
	IncidentLocation string          `json:"incident_location" validate:"required,max=255"`
	Cause            string          `json:"cause" validate:"max=255"`
	Description      string          `json:"description" validate:"required"`
	EstimatedLoss    decimal.Decimal `json:"estimated_loss"`
}

type UpdateClaimRequest struct {
	IncidentDate     *time.Time       `json:"incident_date"`
	IncidentLocation *string          `json:"incident_location"`
	Cause            *string          `json:"cause"`
	Description      *string          `json:"description"`
	EstimatedLoss    *decimal.Decimal `json:"estimated_loss"`
}

type TransitionRequest struct {
	Target         Status           `json:"status" validate:"required"`
	Notes          string           `json:"notes"`
	ApprovedAmount *decimal.Decimal `json:"approved_amount"`
}

type AttachDocumentRequest struct {
	DocumentType DocumentType `json:"document_type" validate:"required"`
	Name         string       `json:"name" validate:"required,max=255"`
	StorageKey   string       `json:"storage_key" validate:"required,max=500"`
	SizeBytes    int64        `json:"size_bytes" validate:"gte=0"`
	IsRequired   bool         `json:"is_required"`
}

type ListClaimRequest struct {
	Status          string `form:"status"`
	PolicyID        string `form:"policy_id"`
	IncludeArchived bool   `form:"include_archived"`
	pagination.Pagination
}

type ListClaimResponse struct {
	Claims   []Claim             `json:"claims"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type ListFilter struct {
	Status          Status
	PolicyID        snowflake.ID
	ReportedByID    snowflake.ID
	IncludeArchived bool
	BeforeID        snowflake.ID
	Limit           int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, claim *Claim) error
	Update(ctx context.Context, db *gorm.DB, claim *Claim) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Claim, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Claim, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Claim, error)
	// ListAwaiting returns open claims with a pending document request or
	// insurer submission.
	ListAwaiting(ctx context.Context, db *gorm.DB) ([]Claim, error)

	AppendTimeline(ctx context.Context, db *gorm.DB, entry *TimelineEntry) error
	ListTimeline(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]TimelineEntry, error)

	InsertDocument(ctx context.Context, db *gorm.DB, doc *Document) error
	ListDocuments(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]Document, error)
}

// SettlementOpener opens the settlement of a claim entering settled. It must
// be idempotent and run inside tx.
type SettlementOpener interface {
	OpenForClaim(ctx context.Context, tx *gorm.DB, claim Claim, actor permission.Actor) error
}

// StatusNotifier is told about committed status changes.
type StatusNotifier interface {
	ClaimStatusChanged(ctx context.Context, claim Claim, from Status, actor permission.Actor)
}

// SLAReport pairs a claim with its breaches.
type SLAReport struct {
	Claim  Claim     `json:"claim"`
	Status SLAStatus `json:"sla"`
}

type Service interface {
	Create(ctx context.Context, actor permission.Actor, req CreateClaimRequest) (Claim, error)
	Update(ctx context.Context, actor permission.Actor, id snowflake.ID, req UpdateClaimRequest) (Claim, error)
	Get(ctx context.Context, actor permission.Actor, id snowflake.ID) (Claim, error)
	List(ctx context.Context, actor permission.Actor, req ListClaimRequest) (ListClaimResponse, error)

	CanTransition(ctx context.Context, actor permission.Actor, id snowflake.ID, target Status) (bool, error)
	Transition(ctx context.Context, actor permission.Actor, id snowflake.ID, req TransitionRequest) (Claim, error)
	AssignCoverage(ctx context.Context, actor permission.Actor, id, coverageID snowflake.ID) (Claim, error)
	AssignHandler(ctx context.Context, actor permission.Actor, id, userID snowflake.ID) (Claim, error)

	AddComment(ctx context.Context, actor permission.Actor, id snowflake.ID, text string) (TimelineEntry, error)
	AttachDocument(ctx context.Context, actor permission.Actor, id snowflake.ID, req AttachDocumentRequest) (Document, error)
	Documents(ctx context.Context, actor permission.Actor, id snowflake.ID) ([]Document, error)
	Timeline(ctx context.Context, actor permission.Actor, id snowflake.ID) ([]TimelineEntry, error)

	RequestDocuments(ctx context.Context, actor permission.Actor, id snowflake.ID, notes string) (Claim, error)
	CompleteDocuments(ctx context.Context, actor permission.Actor, id snowflake.ID) (Claim, error)
	SubmitToInsurer(ctx context.Context, actor permission.Actor, id snowflake.ID, notes string) (Claim, error)
	RecordInsurerResponse(ctx context.Context, actor permission.Actor, id snowflake.ID, notes string) (Claim, error)
	Archive(ctx context.Context, actor permission.Actor, id snowflake.ID) (Claim, error)

	SLA(ctx context.Context, actor permission.Actor, id snowflake.ID) (SLAStatus, error)
	// SLABreaches evaluates every awaiting claim and keeps those in breach.
	SLABreaches(ctx context.Context) ([]SLAReport, error)
}

var (
	ErrNotFound         = errors.New("claim_not_found")
	ErrForbidden        = errors.New("claim_forbidden")
	ErrPolicyNotFound   = errors.New("policy_not_found")
	ErrAssetNotFound    = errors.New("asset_not_found")
	ErrCoverageNotFound = errors.New("coverage_not_found")
	ErrCoverageMismatch = errors.New("coverage_not_on_policy")
	ErrAssigneeInvalid  = errors.New("assignee_not_staff")
)
