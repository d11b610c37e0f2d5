package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/smallbiznis/coverdesk/internal/asset/domain"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/claim/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/config"
	coveragedomain "github.com/smallbiznis/coverdesk/internal/coverage/domain"
	"github.com/smallbiznis/coverdesk/internal/identifier"
	"github.com/smallbiznis/coverdesk/internal/observability/metrics"
	"github.com/smallbiznis/coverdesk/internal/permission"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/db/pagination"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	PolicyRepo   policydomain.Repository
	AssetRepo    assetdomain.Repository
	CoverageRepo coveragedomain.Repository
	UserRepo     userdomain.Repository
	Generator    *identifier.Generator
	AuditSvc     auditdomain.Service
	Resolver     *permission.Resolver
	Workflow     *config.WorkflowConfigHolder
	Opener       domain.SettlementOpener `optional:"true"`
	Notifier     domain.StatusNotifier   `optional:"true"`
	Metrics      *metrics.Workflow       `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	policyRepo   policydomain.Repository
	assetRepo    assetdomain.Repository
	coverageRepo coveragedomain.Repository
	userRepo     userdomain.Repository
	generator    *identifier.Generator
	auditSvc     auditdomain.Service
	resolver     *permission.Resolver
	machine      *domain.StateMachine
	workflow     *config.WorkflowConfigHolder
	opener       domain.SettlementOpener
	notifier     domain.StatusNotifier
	metrics      *metrics.Workflow
}

func New(p Params) domain.Service {
	workflow := p.Workflow
	if workflow == nil {
		workflow = config.NewStaticWorkflowConfig(config.DefaultWorkflowConfig())
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("claim.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		policyRepo:   p.PolicyRepo,
		assetRepo:    p.AssetRepo,
		coverageRepo: p.CoverageRepo,
		userRepo:     p.UserRepo,
		generator:    p.Generator,
		auditSvc:     p.AuditSvc,
		resolver:     p.Resolver,
		machine:      domain.NewStateMachine(p.Resolver),
		workflow:     workflow,
		opener:       p.Opener,
		notifier:     p.Notifier,
		metrics:      p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, actor permission.Actor, req domain.CreateClaimRequest) (domain.Claim, error) {
	if err := s.resolver.Require(actor, permission.ClaimsCreate); err != nil {
		return domain.Claim{}, err
	}
	req.IncidentLocation = strings.TrimSpace(req.IncidentLocation)
	req.Description = strings.TrimSpace(req.Description)
	if err := apperror.ValidateStruct(req); err != nil {
		return domain.Claim{}, err
	}

	now := s.clock.Now()
	reportDate := clock.Date(now)
	if req.ReportDate != nil {
		reportDate = clock.Date(*req.ReportDate)
	}

	var out domain.Claim
	err := s.generator.WithRetry(ctx, identifier.Claim, func() error {
		claim := domain.Claim{
			ID:               s.genID.Generate(),
			PolicyID:         req.PolicyID,
			AssetID:          req.AssetID,
			IncidentDate:     clock.Date(req.IncidentDate),
			ReportDate:       reportDate,
			IncidentLocation: req.IncidentLocation,
			Cause:            strings.TrimSpace(req.Cause),
			Description:      req.Description,
			EstimatedLoss:    money.Round2(req.EstimatedLoss),
			DeductibleAmount: money.Zero,
			Status:           domain.StatusPending,
			ReportedByID:     actor.UserID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := claim.Validate(); err != nil {
			return err
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.checkPolicyAndAsset(ctx, tx, actor, claim); err != nil {
				return err
			}
			number, err := s.generator.Next(ctx, tx, identifier.Claim, now.Year())
			if err != nil {
				return err
			}
			claim.ClaimNumber = number
			if err := s.repo.Insert(ctx, tx, &claim); err != nil {
				return err
			}
			out = claim
			return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				ActorID:     actor.UserID,
				ActionType:  auditdomain.ActionCreate,
				EntityType:  auditdomain.EntityClaim,
				EntityID:    claim.ID,
				Description: "claim " + claim.ClaimNumber + " reported",
				NewValues:   auditdomain.Snapshot(claim),
			})
		})
	})
	if err != nil {
		return domain.Claim{}, err
	}

	s.log.Info("claim reported",
		zap.String("claim_number", out.ClaimNumber),
		zap.String("claim_id", out.ID.String()),
		zap.String("reported_by", actor.UserID.String()),
	)
	return out, nil
}

func (s *Service) Update(ctx context.Context, actor permission.Actor, id snowflake.ID, req domain.UpdateClaimRequest) (domain.Claim, error) {
	return s.mutate(ctx, actor, id, func(tx *gorm.DB, claim *domain.Claim) (*domain.TimelineEntry, string, error) {
		if err := s.checkEditable(actor, *claim); err != nil {
			return nil, "", err
		}
		if req.IncidentDate != nil {
			claim.IncidentDate = clock.Date(*req.IncidentDate)
		}
		if req.IncidentLocation != nil {
			claim.IncidentLocation = strings.TrimSpace(*req.IncidentLocation)
		}
		if req.Cause != nil {
			claim.Cause = strings.TrimSpace(*req.Cause)
		}
		if req.Description != nil {
			claim.Description = strings.TrimSpace(*req.Description)
		}
		if req.EstimatedLoss != nil {
			claim.EstimatedLoss = money.Round2(*req.EstimatedLoss)
			if err := s.refreshDeductible(ctx, tx, claim); err != nil {
				return nil, "", err
			}
		}
		return nil, "claim " + claim.ClaimNumber + " updated", nil
	})
}

func (s *Service) Get(ctx context.Context, actor permission.Actor, id snowflake.ID) (domain.Claim, error) {
	claim, err := s.visible(ctx, s.db, actor, id)
	if err != nil {
		return domain.Claim{}, err
	}
	return *claim, nil
}

func (s *Service) List(ctx context.Context, actor permission.Actor, req domain.ListClaimRequest) (domain.ListClaimResponse, error) {
	beforeID, err := pagination.DecodeCursorID(strings.TrimSpace(req.PageToken))
	if err != nil {
		return domain.ListClaimResponse{}, err
	}
	filter := domain.ListFilter{
		Status:          domain.Status(strings.TrimSpace(req.Status)),
		IncludeArchived: req.IncludeArchived,
		BeforeID:        snowflake.ID(beforeID),
		Limit:           req.Limit(),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.ListClaimResponse{}, apperror.NewValidationError("status", "invalid", "status is not recognised")
	}
	if id := strings.TrimSpace(req.PolicyID); id != "" {
		policyID, err := snowflake.ParseString(id)
		if err != nil {
			return domain.ListClaimResponse{}, apperror.NewValidationError("policy_id", "invalid", "policy_id is not a valid id")
		}
		filter.PolicyID = policyID
	}
	if !actor.Role.IsStaff() {
		filter.ReportedByID = actor.UserID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListClaimResponse{}, err
	}
	claims, pageInfo := pagination.Trim(items, filter.Limit, func(c domain.Claim) int64 { return c.ID.Int64() })
	if claims == nil {
		claims = []domain.Claim{}
	}
	return domain.ListClaimResponse{Claims: claims, PageInfo: pageInfo}, nil
}

func (s *Service) CanTransition(ctx context.Context, actor permission.Actor, id snowflake.ID, target domain.Status) (bool, error) {
	claim, err := s.visible(ctx, s.db, actor, id)
	if err != nil {
		return false, err
	}
	return s.machine.CanTransition(*claim, target, actor), nil
}

func (s *Service) Transition(ctx context.Context, actor permission.Actor, id snowflake.ID, req domain.TransitionRequest) (domain.Claim, error) {
	var (
		out  domain.Claim
		from domain.Status
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := s.visible(ctx, tx, actor, id, true)
		if err != nil {
			return err
		}
		from = claim.Status

		entry, err := s.machine.Apply(claim, actor, domain.TransitionInput{
			Target:         req.Target,
			Notes:          strings.TrimSpace(req.Notes),
			ApprovedAmount: req.ApprovedAmount,
			Now:            s.clock.Now(),
		})
		if err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, claim); err != nil {
			return err
		}
		entry.ID = s.genID.Generate()
		if err := s.repo.AppendTimeline(ctx, tx, &entry); err != nil {
			return err
		}
		if claim.Status == domain.StatusSettled && s.opener != nil {
			if err := s.opener.OpenForClaim(ctx, tx, *claim, actor); err != nil {
				return err
			}
		}

		out = *claim
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionStatusChange,
			EntityType:  auditdomain.EntityClaim,
			EntityID:    claim.ID,
			Description: "claim " + claim.ClaimNumber + " " + string(from) + " -> " + string(claim.Status),
			OldValues:   map[string]any{"status": from},
			NewValues:   map[string]any{"status": claim.Status},
		})
	})
	s.metrics.ClaimTransition(string(from), string(req.Target), err)
	if err != nil {
		return domain.Claim{}, err
	}

	s.log.Info("claim status changed",
		zap.String("claim_number", out.ClaimNumber),
		zap.String("from", string(from)),
		zap.String("to", string(out.Status)),
		zap.String("actor_id", actor.UserID.String()),
	)
	if s.notifier != nil {
		s.notifier.ClaimStatusChanged(ctx, out, from, actor)
	}
	return out, nil
}

func (s *Service) AssignCoverage(ctx context.Context, actor permission.Actor, id, coverageID snowflake.ID) (domain.Claim, error) {
	if err := s.resolver.Require(actor, permission.ClaimsTransition); err != nil {
		return domain.Claim{}, err
	}
	return s.mutate(ctx, actor, id, func(tx *gorm.DB, claim *domain.Claim) (*domain.TimelineEntry, string, error) {
		if claim.Status.Terminal() {
			return nil, "", closedViolation(*claim, "coverage cannot change on a closed claim")
		}
		coverage, err := s.coverageRepo.FindByID(ctx, tx, coverageID)
		if err != nil {
			return nil, "", err
		}
		if coverage == nil {
			return nil, "", domain.ErrCoverageNotFound
		}
		if coverage.PolicyID != claim.PolicyID {
			return nil, "", domain.ErrCoverageMismatch
		}
		claim.CoverageID = &coverage.ID
		claim.DeductibleAmount = coveragedomain.ResolveDeductible(*coverage, claim.EstimatedLoss)

		entry := s.entry(*claim, actor, domain.EventCoverageAssigned,
			"coverage "+coverage.Name+" assigned, deductible "+claim.DeductibleAmount.StringFixed(2))
		return &entry, "claim " + claim.ClaimNumber + " coverage assigned", nil
	})
}

func (s *Service) AssignHandler(ctx context.Context, actor permission.Actor, id, userID snowflake.ID) (domain.Claim, error) {
	if err := s.resolver.Require(actor, permission.ClaimsTransition); err != nil {
		return domain.Claim{}, err
	}
	return s.mutate(ctx, actor, id, func(tx *gorm.DB, claim *domain.Claim) (*domain.TimelineEntry, string, error) {
		user, err := s.userRepo.FindByID(ctx, tx, userID)
		if err != nil {
			return nil, "", err
		}
		if user == nil || !user.IsActive || !user.Role.IsStaff() {
			return nil, "", domain.ErrAssigneeInvalid
		}
		claim.AssignedToID = &user.ID
		return nil, "claim " + claim.ClaimNumber + " assigned to " + user.Username, nil
	})
}

func (s *Service) AddComment(ctx context.Context, actor permission.Actor, id snowflake.ID, text string) (domain.TimelineEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.TimelineEntry{}, apperror.NewValidationError("comment", "required", "comment cannot be empty")
	}
	var out domain.TimelineEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := s.visible(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		out = s.entry(*claim, actor, domain.EventComment, text)
		return s.repo.AppendTimeline(ctx, tx, &out)
	})
	if err != nil {
		return domain.TimelineEntry{}, err
	}
	return out, nil
}

func (s *Service) AttachDocument(ctx context.Context, actor permission.Actor, id snowflake.ID, req domain.AttachDocumentRequest) (domain.Document, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.StorageKey = strings.TrimSpace(req.StorageKey)
	if err := apperror.ValidateStruct(req); err != nil {
		return domain.Document{}, err
	}
	if !req.DocumentType.Valid() {
		return domain.Document{}, apperror.NewValidationError("document_type", "invalid", "document_type is not recognised")
	}

	var out domain.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := s.visible(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if claim.Archived() {
			return closedViolation(*claim, "claim is archived")
		}
		doc := domain.Document{
			ID:           s.genID.Generate(),
			ClaimID:      claim.ID,
			DocumentType: req.DocumentType,
			Name:         req.Name,
			StorageKey:   req.StorageKey,
			SizeBytes:    req.SizeBytes,
			IsRequired:   req.IsRequired,
			UploadedByID: actor.UserID,
			CreatedAt:    s.clock.Now(),
		}
		if err := s.repo.InsertDocument(ctx, tx, &doc); err != nil {
			return err
		}
		entry := s.entry(*claim, actor, domain.EventDocumentUploaded, string(doc.DocumentType)+": "+doc.Name)
		if err := s.repo.AppendTimeline(ctx, tx, &entry); err != nil {
			return err
		}
		out = doc
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionDocumentUpload,
			EntityType:  auditdomain.EntityClaim,
			EntityID:    claim.ID,
			Description: "document " + doc.Name + " uploaded to claim " + claim.ClaimNumber,
			NewValues:   auditdomain.Snapshot(doc),
		})
	})
	if err != nil {
		return domain.Document{}, err
	}
	return out, nil
}

func (s *Service) Documents(ctx context.Context, actor permission.Actor, id snowflake.ID) ([]domain.Document, error) {
	claim, err := s.visible(ctx, s.db, actor, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListDocuments(ctx, s.db, claim.ID)
}

func (s *Service) Timeline(ctx context.Context, actor permission.Actor, id snowflake.ID) ([]domain.TimelineEntry, error) {
	claim, err := s.visible(ctx, s.db, actor, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTimeline(ctx, s.db, claim.ID)
}

func (s *Service) RequestDocuments(ctx context.Context, actor permission.Actor, id snowflake.ID, notes string) (domain.Claim, error) {
	if err := s.resolver.Require(actor, permission.ClaimsTransition); err != nil {
		return domain.Claim{}, err
	}
	return s.mutate(ctx, actor, id, func(tx *gorm.DB, claim *domain.Claim) (*domain.TimelineEntry, string, error) {
		if claim.Status.Terminal() {
			return nil, "", closedViolation(*claim, "documents cannot be requested on a closed claim")
		}
		now := s.clock.Now()
		claim.DocumentRequestDate = &now
		claim.DocumentCompletionDate = nil
		entry := s.entry(*claim, actor, domain.EventDocumentsRequested, strings.TrimSpace(notes))
		return &entry, "documents requested for claim " + claim.ClaimNumber, nil
	})
}

func (s *Service) CompleteDocuments(ctx context.Context, actor permission.Actor, id snowflake.ID) (domain.Claim, error) {
	return s.mutate(ctx, actor, id, func(tx *gorm.DB, claim *domain.Claim) (*domain.TimelineEntry, string, error) {
		if !actor.Role.IsStaff() && !claim.OwnedBy(actor.UserID) {
			return nil, "", domain.ErrNotFound
		}
		if claim.DocumentRequestDate == nil || claim.DocumentCompletionDate != nil {
			return nil, "", closedViolation(*claim, "no document request is open")
		}
		now := s.clock.Now()
		claim.DocumentCompletionDate = &now
		entry := s.entry(*claim, actor, domain.EventDocumentsCompleted, "")
		return &entry, "documents completed for claim " + claim.ClaimNumber, nil
	})
}

func (s *Service) SubmitToInsurer(ctx context.Context, actor permission.Actor, id snowflake.ID, notes string) (domain.Claim, error) {
	if err := s.resolver.Require(actor, permission.ClaimsTransition); err != nil {
		return domain.Claim{}, err
	}
	return s.mutate(ctx, actor, id, func(tx *gorm.DB, claim *domain.Claim) (*domain.TimelineEntry, string, error) {
		if claim.Status.Terminal() {
			return nil, "", closedViolation(*claim, "a closed claim cannot be submitted")
		}
		if claim.InsurerSubmissionDate != nil && claim.InsurerResponseDate == nil {
			return nil, "", closedViolation(*claim, "claim is already awaiting an insurer response")
		}
		now := s.clock.Now()
		claim.InsurerSubmissionDate = &now
		claim.InsurerResponseDate = nil
		entry := s.entry(*claim, actor, domain.EventInsurerSubmission, strings.TrimSpace(notes))
		return &entry, "claim " + claim.ClaimNumber + " submitted to insurer", nil
	})
}

func (s *Service) RecordInsurerResponse(ctx context.Context, actor permission.Actor, id snowflake.ID, notes string) (domain.Claim, error) {
	if err := s.resolver.Require(actor, permission.ClaimsTransition); err != nil {
		return domain.Claim{}, err
	}
	return s.mutate(ctx, actor, id, func(tx *gorm.DB, claim *domain.Claim) (*domain.TimelineEntry, string, error) {
		if claim.InsurerSubmissionDate == nil || claim.InsurerResponseDate != nil {
			return nil, "", closedViolation(*claim, "claim is not awaiting an insurer response")
		}
		now := s.clock.Now()
		claim.InsurerResponseDate = &now
		entry := s.entry(*claim, actor, domain.EventInsurerResponse, strings.TrimSpace(notes))
		return &entry, "insurer responded on claim " + claim.ClaimNumber, nil
	})
}

func (s *Service) Archive(ctx context.Context, actor permission.Actor, id snowflake.ID) (domain.Claim, error) {
	if err := s.resolver.Require(actor, permission.ClaimsTransition); err != nil {
		return domain.Claim{}, err
	}
	return s.mutate(ctx, actor, id, func(tx *gorm.DB, claim *domain.Claim) (*domain.TimelineEntry, string, error) {
		if !claim.Status.Terminal() {
			return nil, "", closedViolation(*claim, "only paid or rejected claims can be archived")
		}
		if claim.Archived() {
			return nil, "", closedViolation(*claim, "claim is already archived")
		}
		now := s.clock.Now()
		claim.ArchivedAt = &now
		return nil, "claim " + claim.ClaimNumber + " archived", nil
	})
}

func (s *Service) SLA(ctx context.Context, actor permission.Actor, id snowflake.ID) (domain.SLAStatus, error) {
	claim, err := s.visible(ctx, s.db, actor, id)
	if err != nil {
		return domain.SLAStatus{}, err
	}
	return domain.EvaluateSLA(*claim, s.clock.Now(), s.workflow.Get().SLA), nil
}

func (s *Service) SLABreaches(ctx context.Context) ([]domain.SLAReport, error) {
	claims, err := s.repo.ListAwaiting(ctx, s.db)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	cfg := s.workflow.Get().SLA

	out := make([]domain.SLAReport, 0)
	for _, claim := range claims {
		status := domain.EvaluateSLA(claim, now, cfg)
		if len(status.Breaches) == 0 {
			continue
		}
		out = append(out, domain.SLAReport{Claim: claim, Status: status})
	}
	return out, nil
}

type mutation func(tx *gorm.DB, claim *domain.Claim) (*domain.TimelineEntry, string, error)

// mutate locks the claim, applies fn, then persists the claim, the optional
// timeline entry and an audit record in one transaction.
func (s *Service) mutate(ctx context.Context, actor permission.Actor, id snowflake.ID, fn mutation) (domain.Claim, error) {
	var out domain.Claim
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim, err := s.visible(ctx, tx, actor, id, true)
		if err != nil {
			return err
		}
		before := auditdomain.Snapshot(claim)

		entry, description, err := fn(tx, claim)
		if err != nil {
			return err
		}
		if err := claim.Validate(); err != nil {
			return err
		}
		claim.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, claim); err != nil {
			return err
		}
		if entry != nil {
			if err := s.repo.AppendTimeline(ctx, tx, entry); err != nil {
				return err
			}
		}

		oldValues, newValues := auditdomain.Changes(before, auditdomain.Snapshot(claim))
		out = *claim
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionUpdate,
			EntityType:  auditdomain.EntityClaim,
			EntityID:    claim.ID,
			Description: description,
			OldValues:   oldValues,
			NewValues:   newValues,
		})
	})
	if err != nil {
		return domain.Claim{}, err
	}
	return out, nil
}

// visible loads the claim, hiding claims a requester did not report.
func (s *Service) visible(ctx context.Context, tx *gorm.DB, actor permission.Actor, id snowflake.ID, forUpdate ...bool) (*domain.Claim, error) {
	if !actor.Valid() {
		return nil, permission.ErrInvalidActor
	}
	find := s.repo.FindByID
	if len(forUpdate) > 0 && forUpdate[0] {
		find = s.repo.FindByIDForUpdate
	}
	claim, err := find(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if claim == nil {
		return nil, domain.ErrNotFound
	}
	if !actor.Role.IsStaff() && !claim.OwnedBy(actor.UserID) {
		return nil, domain.ErrNotFound
	}
	return claim, nil
}

func (s *Service) checkEditable(actor permission.Actor, claim domain.Claim) error {
	if claim.Archived() || claim.Status.Terminal() {
		return closedViolation(claim, "closed claims cannot be edited")
	}
	if actor.Role.IsStaff() {
		if !s.resolver.HasPermission(actor.Role, permission.ClaimsWrite) {
			return domain.ErrForbidden
		}
		return nil
	}
	if claim.Status != domain.StatusPending && claim.Status != domain.StatusNeedsChanges {
		return closedViolation(claim, "the reporter can only edit pending claims or claims that need changes")
	}
	return nil
}

func (s *Service) checkPolicyAndAsset(ctx context.Context, tx *gorm.DB, actor permission.Actor, claim domain.Claim) error {
	policy, err := s.policyRepo.FindByID(ctx, tx, claim.PolicyID)
	if err != nil {
		return err
	}
	if policy == nil {
		return domain.ErrPolicyNotFound
	}
	if !policy.CoversDate(claim.IncidentDate) {
		return apperror.NewValidationError("incident_date", "outside_coverage", "incident_date is outside the policy coverage period")
	}

	asset, err := s.assetRepo.FindByID(ctx, tx, claim.AssetID)
	if err != nil {
		return err
	}
	if asset == nil {
		return domain.ErrAssetNotFound
	}
	if !actor.Role.IsStaff() && asset.CustodianID != actor.UserID {
		return domain.ErrForbidden
	}
	return nil
}

func (s *Service) refreshDeductible(ctx context.Context, tx *gorm.DB, claim *domain.Claim) error {
	if claim.CoverageID == nil {
		return nil
	}
	coverage, err := s.coverageRepo.FindByID(ctx, tx, *claim.CoverageID)
	if err != nil {
		return err
	}
	if coverage == nil {
		return domain.ErrCoverageNotFound
	}
	claim.DeductibleAmount = coveragedomain.ResolveDeductible(*coverage, claim.EstimatedLoss)
	return nil
}

func (s *Service) entry(claim domain.Claim, actor permission.Actor, event domain.EventType, notes string) domain.TimelineEntry {
	actorID := actor.UserID
	return domain.TimelineEntry{
		ID:        s.genID.Generate(),
		ClaimID:   claim.ID,
		EventType: event,
		ActorID:   &actorID,
		Notes:     notes,
		CreatedAt: s.clock.Now(),
	}
}

func closedViolation(claim domain.Claim, reason string) error {
	return &apperror.WorkflowViolation{
		Entity: "claim",
		From:   string(claim.Status),
		To:     string(claim.Status),
		Reason: reason,
	}
}
