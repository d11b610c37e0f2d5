package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/coverdesk/internal/asset/domain"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/identifier"
	"github.com/smallbiznis/coverdesk/internal/permission"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/db"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	PolicyRepo policydomain.Repository
	UserRepo   userdomain.Repository
	Generator  *identifier.Generator
	AuditSvc   auditdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	policyRepo policydomain.Repository
	userRepo   userdomain.Repository
	generator  *identifier.Generator
	auditSvc   auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("asset.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		policyRepo: p.PolicyRepo,
		userRepo:   p.UserRepo,
		generator:  p.Generator,
		auditSvc:   p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, actor permission.Actor, req domain.CreateAssetRequest) (domain.Asset, error) {
	if err := apperror.ValidateStruct(req); err != nil {
		return domain.Asset{}, err
	}

	now := s.clock.Now()
	code := strings.TrimSpace(req.AssetCode)
	condition := req.Condition
	if condition == "" {
		condition = domain.ConditionGood
	}
	currentValue := req.AcquisitionCost
	if req.CurrentValue != nil {
		currentValue = *req.CurrentValue
	}

	var out domain.Asset
	create := func() error {
		asset := domain.Asset{
			ID:                s.genID.Generate(),
			AssetCode:         code,
			Name:              strings.TrimSpace(req.Name),
			Description:       strings.TrimSpace(req.Description),
			AssetType:         req.AssetType,
			Brand:             strings.TrimSpace(req.Brand),
			Model:             strings.TrimSpace(req.Model),
			SerialNumber:      strings.TrimSpace(req.SerialNumber),
			Location:          strings.TrimSpace(req.Location),
			AcquisitionDate:   clock.Date(req.AcquisitionDate),
			AcquisitionCost:   money.Round2(req.AcquisitionCost),
			CurrentValue:      money.Round2(currentValue),
			Condition:         condition,
			CustodianID:       req.CustodianID,
			InsurancePolicyID: req.InsurancePolicyID,
			IsInsured:         req.IsInsured,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := asset.Validate(); err != nil {
			return err
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.checkReferences(ctx, tx, asset); err != nil {
				return err
			}
			if asset.AssetCode == "" {
				generated, err := s.generator.Next(ctx, tx, identifier.Asset, now.Year())
				if err != nil {
					return err
				}
				asset.AssetCode = generated
			}
			if err := s.repo.Insert(ctx, tx, &asset); err != nil {
				return err
			}
			out = asset
			return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
				ActorID:     actor.UserID,
				ActionType:  auditdomain.ActionCreate,
				EntityType:  auditdomain.EntityAsset,
				EntityID:    asset.ID,
				Description: "asset " + asset.AssetCode + " registered",
				NewValues:   auditdomain.Snapshot(asset),
			})
		})
	}

	var err error
	if code != "" {
		if err = create(); err != nil && db.IsDuplicateKeyErr(err) {
			return domain.Asset{}, domain.ErrDuplicateCode
		}
	} else {
		err = s.generator.WithRetry(ctx, identifier.Asset, create)
	}
	if err != nil {
		return domain.Asset{}, err
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, actor permission.Actor, id snowflake.ID, req domain.UpdateAssetRequest) (domain.Asset, error) {
	var out domain.Asset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		asset, err := s.find(ctx, tx, id)
		if err != nil {
			return err
		}
		before := auditdomain.Snapshot(asset)

		if req.Name != nil {
			asset.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			asset.Description = strings.TrimSpace(*req.Description)
		}
		if req.Location != nil {
			asset.Location = strings.TrimSpace(*req.Location)
		}
		if req.CurrentValue != nil {
			asset.CurrentValue = money.Round2(*req.CurrentValue)
		}
		if req.Condition != nil {
			asset.Condition = *req.Condition
		}
		if req.CustodianID != nil {
			asset.CustodianID = *req.CustodianID
		}
		if req.InsurancePolicyID != nil {
			if *req.InsurancePolicyID == 0 {
				asset.InsurancePolicyID = nil
			} else {
				asset.InsurancePolicyID = req.InsurancePolicyID
			}
		}
		if req.IsInsured != nil {
			asset.IsInsured = *req.IsInsured
		}
		if err := asset.Validate(); err != nil {
			return err
		}
		if err := s.checkReferences(ctx, tx, *asset); err != nil {
			return err
		}
		asset.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, asset); err != nil {
			return err
		}

		oldValues, newValues := auditdomain.Changes(before, auditdomain.Snapshot(asset))
		out = *asset
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionUpdate,
			EntityType:  auditdomain.EntityAsset,
			EntityID:    asset.ID,
			Description: "asset " + asset.AssetCode + " updated",
			OldValues:   oldValues,
			NewValues:   newValues,
		})
	})
	if err != nil {
		return domain.Asset{}, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor permission.Actor, id snowflake.ID) (domain.Asset, error) {
	asset, err := s.find(ctx, s.db, id)
	if err != nil {
		return domain.Asset{}, err
	}
	if !actor.Role.IsStaff() && asset.CustodianID != actor.UserID {
		return domain.Asset{}, domain.ErrNotFound
	}
	return *asset, nil
}

func (s *Service) List(ctx context.Context, actor permission.Actor) ([]domain.Asset, error) {
	filter := domain.ListFilter{}
	if !actor.Role.IsStaff() {
		filter.CustodianID = actor.UserID
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) RefreshValue(ctx context.Context, actor permission.Actor, id snowflake.ID) (domain.Asset, error) {
	var out domain.Asset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		asset, err := s.find(ctx, tx, id)
		if err != nil {
			return err
		}
		previous := asset.CurrentValue
		asset.CurrentValue = asset.DepreciatedValue(s.clock.Now())
		asset.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, asset); err != nil {
			return err
		}
		out = *asset
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionUpdate,
			EntityType:  auditdomain.EntityAsset,
			EntityID:    asset.ID,
			Description: "asset " + asset.AssetCode + " value refreshed by depreciation",
			OldValues:   map[string]any{"current_value": previous.StringFixed(2)},
			NewValues:   map[string]any{"current_value": asset.CurrentValue.StringFixed(2)},
		})
	})
	if err != nil {
		return domain.Asset{}, err
	}
	return out, nil
}

func (s *Service) HasValidInsurance(ctx context.Context, id snowflake.ID) (bool, error) {
	asset, err := s.find(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	if asset.InsurancePolicyID == nil {
		return false, nil
	}
	policy, err := s.policyRepo.FindByID(ctx, s.db, *asset.InsurancePolicyID)
	if err != nil {
		return false, err
	}
	return asset.HasValidInsurance(policy, s.clock.Now()), nil
}

func (s *Service) find(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Asset, error) {
	asset, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, domain.ErrNotFound
	}
	return asset, nil
}

func (s *Service) checkReferences(ctx context.Context, tx *gorm.DB, asset domain.Asset) error {
	custodian, err := s.userRepo.FindByID(ctx, tx, asset.CustodianID)
	if err != nil {
		return err
	}
	if custodian == nil {
		return domain.ErrCustodianNotFound
	}
	if custodian.Role != permission.RoleRequester {
		return apperror.NewValidationError("custodian_id", "role", "custodian must have the requester role")
	}
	if asset.InsurancePolicyID != nil {
		policy, err := s.policyRepo.FindByID(ctx, tx, *asset.InsurancePolicyID)
		if err != nil {
			return err
		}
		if policy == nil {
			return domain.ErrPolicyNotFound
		}
	}
	return nil
}
