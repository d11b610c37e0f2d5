package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultTable(t *testing.T) {
	r := NewResolver(DefaultTable())

	for _, c := range allCapabilities {
		assert.True(t, r.HasPermission(RoleAdmin, c), "admin should hold %s", c)
	}

	assert.True(t, r.HasPermission(RoleInsuranceManager, ClaimsTransition))
	assert.True(t, r.HasPermission(RoleInsuranceManager, PoliciesWrite))
	assert.True(t, r.HasPermission(RoleInsuranceManager, AssetsRead))
	assert.False(t, r.HasPermission(RoleInsuranceManager, AssetsManage))
	assert.False(t, r.HasPermission(RoleInsuranceManager, ClaimsCreate))

	assert.True(t, r.HasPermission(RoleRequester, ClaimsCreate))
	assert.True(t, r.HasPermission(RoleRequester, ClaimsWrite))
	assert.False(t, r.HasPermission(RoleRequester, ClaimsTransition))
	assert.False(t, r.HasPermission(RoleRequester, PoliciesRead))

	assert.False(t, r.HasPermission(Role("auditor"), ClaimsRead))
}

func TestNewTableCopiesInput(t *testing.T) {
	grants := map[Role][]Capability{RoleRequester: {ClaimsRead}}
	table := NewTable(grants)
	grants[RoleRequester][0] = PoliciesWrite
	grants[RoleAdmin] = []Capability{ClaimsRead}

	r := NewResolver(table)
	assert.True(t, r.HasPermission(RoleRequester, ClaimsRead))
	assert.False(t, r.HasPermission(RoleRequester, PoliciesWrite))
	assert.False(t, r.HasPermission(RoleAdmin, ClaimsRead))
}

func TestRequire(t *testing.T) {
	r := NewResolver(DefaultTable())
	assert.ErrorIs(t, r.Require(Actor{}, ClaimsRead), ErrInvalidActor)
	assert.ErrorIs(t, r.Require(Actor{UserID: 7, Role: RoleRequester}, ClaimsTransition), ErrForbidden)
	assert.NoError(t, r.Require(Actor{UserID: 7, Role: RoleInsuranceManager}, ClaimsTransition))
}

func TestAuthorizerMatchesTable(t *testing.T) {
	table := DefaultTable()
	enforcer, err := NewEnforcer(table)
	require.NoError(t, err)
	authz := NewAuthorizer(enforcer, zap.NewNop())
	resolver := NewResolver(table)

	for _, role := range []Role{RoleAdmin, RoleInsuranceManager, RoleRequester} {
		for _, c := range allCapabilities {
			err := authz.Authorize(context.Background(), Actor{UserID: 1, Role: role}, c)
			if resolver.HasPermission(role, c) {
				assert.NoError(t, err, "%s/%s", role, c)
			} else {
				assert.ErrorIs(t, err, ErrForbidden, "%s/%s", role, c)
			}
		}
	}
}
