package permission

import (
	"context"
	_ "embed"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/zap"
)

//go:embed model.conf
var modelText string

// NewEnforcer builds an in-memory enforcer seeded once from table.
func NewEnforcer(table Table) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}

	var rules [][]string
	for _, role := range table.Roles() {
		for _, c := range table.Capabilities(role) {
			rules = append(rules, []string{string(role), string(c)})
		}
	}
	if len(rules) > 0 {
		if _, err := enforcer.AddPolicies(rules); err != nil {
			return nil, err
		}
	}
	return enforcer, nil
}

// Authorizer guards HTTP routes.
type Authorizer struct {
	enforcer *casbin.SyncedEnforcer
	log      *zap.Logger
}

func NewAuthorizer(enforcer *casbin.SyncedEnforcer, log *zap.Logger) *Authorizer {
	return &Authorizer{enforcer: enforcer, log: log.Named("permission.authorizer")}
}

func (a *Authorizer) Authorize(ctx context.Context, actor Actor, c Capability) error {
	if !actor.Valid() {
		return ErrInvalidActor
	}
	allowed, err := a.enforcer.Enforce(string(actor.Role), string(c))
	if err != nil {
		return err
	}
	if !allowed {
		a.log.Info("authorization denied",
			zap.String("actor_id", actor.UserID.String()),
			zap.String("role", string(actor.Role)),
			zap.String("capability", string(c)),
		)
		return ErrForbidden
	}
	return nil
}
