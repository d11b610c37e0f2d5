package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/coverdesk/internal/audit/domain"
	auditrepo "github.com/smallbiznis/coverdesk/internal/audit/repository"
	"github.com/smallbiznis/coverdesk/internal/clock"
	obscontext "github.com/smallbiznis/coverdesk/internal/observability/context"
	"github.com/smallbiznis/coverdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var start = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock, *snowflake.Node) {
	db := testutil.Open(t)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fake := clock.NewFakeClock(start)
	svc := NewService(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: fake,
		Repo:  auditrepo.Provide(),
	})
	return svc, db, fake, node
}

func TestRecordCapturesActorAndRequest(t *testing.T) {
	svc, db, _, node := setup(t)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithClient(ctx, "10.0.0.7", "curl/8")

	actor := node.Generate()
	entity := node.Generate()
	require.NoError(t, svc.Record(ctx, db, auditdomain.Entry{
		ActorID:     actor,
		ActionType:  auditdomain.ActionUpdate,
		EntityType:  auditdomain.EntityPolicy,
		EntityID:    entity,
		Description: " premium changed ",
		OldValues:   map[string]any{"premium": "1000.00"},
		NewValues:   map[string]any{"premium": "2000.00"},
	}))

	var row auditdomain.AuditLog
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, auditdomain.ActorTypeUser, row.ActorType)
	require.NotNil(t, row.ActorID)
	assert.Equal(t, actor, *row.ActorID)
	assert.Equal(t, "premium changed", row.Description)
	assert.Equal(t, "2000.00", row.NewValues["premium"])
	require.NotNil(t, row.RequestID)
	assert.Equal(t, "req-1", *row.RequestID)
	require.NotNil(t, row.IPAddress)
	assert.Equal(t, "10.0.0.7", *row.IPAddress)
}

func TestRecordSystemActorAndValidation(t *testing.T) {
	svc, db, _, node := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, nil, auditdomain.Entry{
		ActionType: auditdomain.ActionStatusChange,
		EntityType: auditdomain.EntityInvoice,
		EntityID:   node.Generate(),
	}))
	var row auditdomain.AuditLog
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, auditdomain.ActorTypeSystem, row.ActorType)
	assert.Nil(t, row.ActorID)

	err := svc.Record(ctx, db, auditdomain.Entry{EntityType: auditdomain.EntityClaim, EntityID: 1})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
	err = svc.Record(ctx, db, auditdomain.Entry{ActionType: auditdomain.ActionCreate, EntityType: auditdomain.EntityClaim})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidEntity)
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	svc, db, _, node := setup(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Record(ctx, tx, auditdomain.Entry{
			ActionType: auditdomain.ActionCreate,
			EntityType: auditdomain.EntityClaim,
			EntityID:   node.Generate(),
		}); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	var count int64
	require.NoError(t, db.Model(&auditdomain.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListFiltersAndPages(t *testing.T) {
	svc, db, fake, node := setup(t)
	ctx := context.Background()

	claim := node.Generate()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, db, auditdomain.Entry{
			ActionType: auditdomain.ActionStatusChange,
			EntityType: auditdomain.EntityClaim,
			EntityID:   claim,
		}))
		fake.Advance(time.Hour)
	}
	require.NoError(t, svc.Record(ctx, db, auditdomain.Entry{
		ActionType: auditdomain.ActionCreate,
		EntityType: auditdomain.EntityPolicy,
		EntityID:   node.Generate(),
	}))

	req := auditdomain.ListAuditLogRequest{EntityType: "claim", EntityID: claim.String()}
	req.PageSize = 2
	page, err := svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, page.AuditLogs, 2)
	require.True(t, page.HasMore)
	assert.Greater(t, page.AuditLogs[0].ID, page.AuditLogs[1].ID)

	req.PageToken = page.NextPageToken
	page, err = svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, page.AuditLogs, 1)
	assert.False(t, page.HasMore)

	from, to := start.Add(2*time.Hour), start
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &from, EndAt: &to})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{EntityID: "abc"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidEntity)
}
