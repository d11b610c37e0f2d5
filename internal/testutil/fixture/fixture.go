// Package fixture builds a migrated in-memory database with the shared
// collaborators most service tests need.
package fixture

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	assetdomain "github.com/smallbiznis/coverdesk/internal/asset/domain"
	assetrepo "github.com/smallbiznis/coverdesk/internal/asset/repository"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	auditrepo "github.com/smallbiznis/coverdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/coverdesk/internal/audit/service"
	"github.com/smallbiznis/coverdesk/internal/clock"
	companydomain "github.com/smallbiznis/coverdesk/internal/company/domain"
	companyrepo "github.com/smallbiznis/coverdesk/internal/company/repository"
	companyservice "github.com/smallbiznis/coverdesk/internal/company/service"
	coveragedomain "github.com/smallbiznis/coverdesk/internal/coverage/domain"
	coveragerepo "github.com/smallbiznis/coverdesk/internal/coverage/repository"
	"github.com/smallbiznis/coverdesk/internal/fiscal"
	"github.com/smallbiznis/coverdesk/internal/identifier"
	"github.com/smallbiznis/coverdesk/internal/migration"
	"github.com/smallbiznis/coverdesk/internal/permission"
	policydomain "github.com/smallbiznis/coverdesk/internal/policy/domain"
	policyrepo "github.com/smallbiznis/coverdesk/internal/policy/repository"
	"github.com/smallbiznis/coverdesk/internal/testutil"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	userrepo "github.com/smallbiznis/coverdesk/internal/user/repository"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// Now is the fixed instant every fixture clock starts at (a Tuesday).
var Now = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

type Env struct {
	DB        *gorm.DB
	Log       *zap.Logger
	Node      *snowflake.Node
	Clock     *clock.FakeClock
	Generator *identifier.Generator
	Resolver  *permission.Resolver

	Audit  auditdomain.Service
	Fiscal companydomain.FiscalSource

	Users     userdomain.Repository
	Companies companydomain.Repository
	Policies  policydomain.Repository
	Coverages coveragedomain.Repository
	Assets    assetdomain.Repository
	AuditLogs auditdomain.Repository

	Admin     userdomain.User
	Manager   userdomain.User
	Requester userdomain.User
	Company   companydomain.InsuranceCompany
}

func New(t *testing.T) *Env {
	t.Helper()

	db := testutil.Open(t)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(Now)

	env := &Env{
		DB:        db,
		Log:       log,
		Node:      node,
		Clock:     fake,
		Generator: identifier.NewGenerator(identifier.Params{Log: log}),
		Resolver:  permission.NewResolver(permission.DefaultTable()),
		Users:     userrepo.Provide(),
		Companies: companyrepo.Provide(),
		Policies:  policyrepo.Provide(),
		Coverages: coveragerepo.Provide(),
		Assets:    assetrepo.Provide(),
		AuditLogs: auditrepo.Provide(),
	}
	env.Audit = auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  env.AuditLogs,
	})
	env.Fiscal = companyservice.New(companyservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Repo:     env.Companies,
		AuditSvc: env.Audit,
	})

	env.Admin = env.User(t, "admin", permission.RoleAdmin)
	env.Manager = env.User(t, "manager", permission.RoleInsuranceManager)
	env.Requester = env.User(t, "requester", permission.RoleRequester)

	env.Company = companydomain.InsuranceCompany{
		ID:        node.Generate(),
		Name:      "Seguros Andinos",
		RUC:       "1790012345001",
		IsActive:  true,
		CreatedAt: Now,
		UpdatedAt: Now,
	}
	require.NoError(t, db.Create(&env.Company).Error)

	tier := companydomain.EmissionRight{
		ID:        node.Generate(),
		MinAmount: money.MustParse("0"),
		MaxAmount: money.MustParse("10000"),
		Fee:       money.MustParse("10.00"),
		ValidFrom: Now.AddDate(-1, 0, 0),
		IsActive:  true,
		CreatedAt: Now,
	}
	require.NoError(t, db.Create(&tier).Error)
	return env
}

func Actor(u userdomain.User) permission.Actor {
	return permission.Actor{UserID: u.ID, Role: u.Role}
}

func (e *Env) User(t *testing.T, username string, role permission.Role) userdomain.User {
	t.Helper()
	u := userdomain.User{
		ID:        e.Node.Generate(),
		Username:  username,
		FullName:  username,
		Email:     username + "@example.com",
		Role:      role,
		IsActive:  true,
		CreatedAt: Now,
		UpdatedAt: Now,
	}
	require.NoError(t, e.DB.Create(&u).Error)
	return u
}

// Policy stores an active policy running from thirty days ago for a year.
func (e *Env) Policy(t *testing.T, premium string) policydomain.Policy {
	t.Helper()
	ctx := context.Background()

	table, err := e.Fiscal.EmissionTable(ctx, e.DB, Now)
	require.NoError(t, err)

	start := clock.Date(Now).AddDate(0, 0, -30)
	p := policydomain.Policy{
		ID:                e.Node.Generate(),
		InsurerID:         e.Company.ID,
		Branch:            "Property",
		StartDate:         start,
		EndDate:           start.AddDate(1, 0, 0),
		IssueDate:         start,
		InsuredValue:      money.MustParse("50000"),
		Premium:           money.MustParse(premium),
		Status:            policydomain.StatusActive,
		ResponsibleUserID: e.Manager.ID,
		CreatedAt:         Now,
		UpdatedAt:         Now,
	}
	p.ApplyFiscal(fiscal.Compute(p.Premium, table))

	number, err := e.Generator.Next(ctx, e.DB, identifier.Policy, Now.Year())
	require.NoError(t, err)
	p.PolicyNumber = number
	require.NoError(t, e.Policies.Insert(ctx, e.DB, &p))
	return p
}

func (e *Env) Coverage(t *testing.T, policy policydomain.Policy, fixed, pct string) coveragedomain.Coverage {
	t.Helper()
	c := coveragedomain.Coverage{
		ID:                   e.Node.Generate(),
		PolicyID:             policy.ID,
		Name:                 "All risks",
		InsuredLimit:         money.MustParse("20000"),
		DeductibleFixed:      money.MustParse(fixed),
		DeductiblePercentage: money.MustParse(pct),
		CreatedAt:            Now,
		UpdatedAt:            Now,
	}
	require.NoError(t, e.Coverages.Insert(context.Background(), e.DB, &c))
	return c
}

// Asset stores an insured asset held by custodian.
func (e *Env) Asset(t *testing.T, custodian userdomain.User, policy policydomain.Policy) assetdomain.Asset {
	t.Helper()
	ctx := context.Background()

	code, err := e.Generator.Next(ctx, e.DB, identifier.Asset, Now.Year())
	require.NoError(t, err)
	a := assetdomain.Asset{
		ID:                e.Node.Generate(),
		AssetCode:         code,
		Name:              "Delivery van",
		AssetType:         assetdomain.TypeVehicle,
		Location:          "Quito",
		AcquisitionDate:   clock.Date(Now).AddDate(-1, 0, 0),
		AcquisitionCost:   money.MustParse("20000"),
		CurrentValue:      money.MustParse("18000"),
		Condition:         assetdomain.ConditionGood,
		CustodianID:       custodian.ID,
		InsurancePolicyID: &policy.ID,
		IsInsured:         true,
		CreatedAt:         Now,
		UpdatedAt:         Now,
	}
	require.NoError(t, e.Assets.Insert(ctx, e.DB, &a))
	return a
}

// AuditCount counts audit rows for one entity.
func (e *Env) AuditCount(t *testing.T, entity auditdomain.EntityType, id snowflake.ID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.DB.Model(&auditdomain.AuditLog{}).
		Where("entity_type = ? AND entity_id = ?", entity, id).
		Count(&n).Error)
	return n
}

// Retention attaches an active withholding of pct to policy.
func (e *Env) Retention(t *testing.T, policy policydomain.Policy, code, pct string, onPremium, onTotal bool) companydomain.PolicyRetention {
	t.Helper()
	rt := companydomain.RetentionType{
		ID:         e.Node.Generate(),
		Name:       "Retention " + code,
		Code:       code,
		Percentage: money.MustParse(pct),
		IsActive:   true,
		CreatedAt:  Now,
	}
	require.NoError(t, e.DB.Create(&rt).Error)

	pr := companydomain.PolicyRetention{
		ID:               e.Node.Generate(),
		PolicyID:         policy.ID,
		RetentionTypeID:  rt.ID,
		AppliesToPremium: onPremium,
		AppliesToTotal:   onTotal,
		IsActive:         true,
		CreatedAt:        Now,
	}
	require.NoError(t, e.DB.Omit("RetentionType").Create(&pr).Error)
	return pr
}
