package permission

import (
	"sort"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin            Role = "admin"
	RoleInsuranceManager Role = "insurance_manager"
	RoleRequester        Role = "requester"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInsuranceManager, RoleRequester:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role manages the back office.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleInsuranceManager
}

type Capability string

const (
	UsersRead  Capability = "users_read"
	UsersWrite Capability = "users_write"

	PoliciesRead  Capability = "policies_read"
	PoliciesWrite Capability = "policies_write"

	CoveragesRead  Capability = "coverages_read"
	CoveragesWrite Capability = "coverages_write"

	ClaimsRead       Capability = "claims_read"
	ClaimsWrite      Capability = "claims_write"
	ClaimsCreate     Capability = "claims_create"
	ClaimsTransition Capability = "claims_transition"

	SettlementsRead  Capability = "settlements_read"
	SettlementsWrite Capability = "settlements_write"
	SettlementsSign  Capability = "settlements_sign"

	InvoicesRead  Capability = "invoices_read"
	InvoicesWrite Capability = "invoices_write"

	AssetsRead   Capability = "assets_read"
	AssetsManage Capability = "assets_manage"

	InsurersRead  Capability = "insurers_read"
	InsurersWrite Capability = "insurers_write"
	BrokersRead   Capability = "brokers_read"
	BrokersWrite  Capability = "brokers_write"

	NotificationsRead Capability = "notifications_read"
	AuditRead         Capability = "audit_read"
	SettingsManage    Capability = "settings_manage"
)

var allCapabilities = []Capability{
	UsersRead, UsersWrite,
	PoliciesRead, PoliciesWrite,
	CoveragesRead, CoveragesWrite,
	ClaimsRead, ClaimsWrite, ClaimsCreate, ClaimsTransition,
	SettlementsRead, SettlementsWrite, SettlementsSign,
	InvoicesRead, InvoicesWrite,
	AssetsRead, AssetsManage,
	InsurersRead, InsurersWrite, BrokersRead, BrokersWrite,
	NotificationsRead, AuditRead, SettingsManage,
}

// Table is a read-only role to capability mapping.
type Table struct {
	grants map[Role]map[Capability]struct{}
}

// NewTable copies grants so later changes to the input have no effect.
func NewTable(grants map[Role][]Capability) Table {
	t := Table{grants: make(map[Role]map[Capability]struct{}, len(grants))}
	for role, caps := range grants {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		t.grants[role] = set
	}
	return t
}

func DefaultTable() Table {
	return NewTable(map[Role][]Capability{
		RoleAdmin: allCapabilities,
		RoleInsuranceManager: {
			PoliciesRead, PoliciesWrite,
			CoveragesRead, CoveragesWrite,
			ClaimsRead, ClaimsWrite, ClaimsTransition,
			SettlementsRead, SettlementsWrite, SettlementsSign,
			InvoicesRead, InvoicesWrite,
			AssetsRead,
			InsurersRead, BrokersRead,
			NotificationsRead, AuditRead,
		},
		RoleRequester: {
			ClaimsRead, ClaimsWrite, ClaimsCreate,
			AssetsRead,
			NotificationsRead,
		},
	})
}

func (t Table) has(role Role, c Capability) bool {
	set, ok := t.grants[role]
	if !ok {
		return false
	}
	_, ok = set[c]
	return ok
}

// Capabilities returns the sorted capabilities granted to role.
func (t Table) Capabilities(role Role) []Capability {
	set := t.grants[role]
	out := make([]Capability, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t Table) Roles() []Role {
	out := make([]Role, 0, len(t.grants))
	for r := range t.grants {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Actor is the user performing a mutation.
type Actor struct {
	UserID snowflake.ID
	Role   Role
}

func (a Actor) Valid() bool {
	return a.UserID != 0 && a.Role.Valid()
}
