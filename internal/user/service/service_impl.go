package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	"github.com/smallbiznis/coverdesk/internal/clock"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/internal/user/domain"
	"github.com/smallbiznis/coverdesk/pkg/apperror"
	"github.com/smallbiznis/coverdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("user.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, actor permission.Actor, req domain.CreateUserRequest) (domain.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := apperror.ValidateStruct(req); err != nil {
		return domain.User{}, err
	}

	now := s.clock.Now()
	user := domain.User{
		ID:        s.genID.Generate(),
		Username:  req.Username,
		FullName:  strings.TrimSpace(req.FullName),
		Email:     req.Email,
		Role:      req.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &user); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrUsernameTaken
			}
			return err
		}
		return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
			ActorID:     actor.UserID,
			ActionType:  auditdomain.ActionCreate,
			EntityType:  auditdomain.EntityUser,
			EntityID:    user.ID,
			Description: "user " + user.Username + " created",
			NewValues:   auditdomain.Snapshot(user),
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Staff(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListActiveByRoles(ctx, s.db, permission.RoleAdmin, permission.RoleInsuranceManager)
}
