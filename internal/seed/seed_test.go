package seed

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/coverdesk/internal/company/domain"
	"github.com/smallbiznis/coverdesk/internal/permission"
	"github.com/smallbiznis/coverdesk/internal/testutil"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"github.com/smallbiznis/coverdesk/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunIsIdempotent(t *testing.T) {
	db := testutil.Open(t)
	require.NoError(t, db.AutoMigrate(&companydomain.EmissionRight{}, &userdomain.User{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	opts := Options{AdminUsername: "root", AdminEmail: "Root@Example.com"}
	require.NoError(t, Run(db, node, opts, zaptest.NewLogger(t)))
	require.NoError(t, Run(db, node, opts, zaptest.NewLogger(t)))

	var tiers int64
	require.NoError(t, db.Model(&companydomain.EmissionRight{}).Count(&tiers).Error)
	assert.EqualValues(t, len(defaultTiers), tiers)

	var users []userdomain.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, permission.RoleAdmin, users[0].Role)
	assert.Equal(t, "root@example.com", users[0].Email)
}

func TestRunSkipsAdminWithoutCredentials(t *testing.T) {
	db := testutil.Open(t)
	require.NoError(t, db.AutoMigrate(&companydomain.EmissionRight{}, &userdomain.User{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	require.NoError(t, Run(db, node, Options{}, nil))

	var users int64
	require.NoError(t, db.Model(&userdomain.User{}).Count(&users).Error)
	assert.Zero(t, users)
}

func TestDefaultTiersFormAValidTable(t *testing.T) {
	rows := make([]companydomain.EmissionRight, 0, len(defaultTiers))
	for i := range defaultTiers {
		rows = append(rows, companydomain.EmissionRight{
			MinAmount: money.MustParse(defaultTiers[i].min),
			MaxAmount: money.MustParse(defaultTiers[i].max),
			Fee:       money.MustParse(defaultTiers[i].fee),
		})
	}
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i-1].Tier().Overlaps(rows[i].Tier()), "tier %d overlaps %d", i-1, i)
	}
}
