package permission

import "errors"

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidActor = errors.New("invalid_actor")
)

type Resolver struct {
	table Table
}

func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

func (r *Resolver) HasPermission(role Role, c Capability) bool {
	return r.table.has(role, c)
}

// Require returns ErrForbidden unless actor holds c.
func (r *Resolver) Require(actor Actor, c Capability) error {
	if !actor.Valid() {
		return ErrInvalidActor
	}
	if !r.HasPermission(actor.Role, c) {
		return ErrForbidden
	}
	return nil
}
