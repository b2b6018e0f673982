package domain

import "sort"

// Role is a named compensation role entitled to a share of a commission payment.
type Role string

// Named roles. OTG is the residual role that absorbs unallocated commission and rounding.
const (
	RoleRD1 Role = "RD1"
	RoleRD2 Role = "RD2"
	RoleRD3 Role = "RD3"
	RoleSA1 Role = "SA1"
	RoleSA2 Role = "SA2"
	RoleSA3 Role = "SA3"
	RoleSE1 Role = "SE1"
	RoleSE2 Role = "SE2"
	RoleMA1 Role = "MA1"
	RoleMA2 Role = "MA2"
	RolePA1 Role = "PA1"
	RolePA2 Role = "PA2"
	RoleRF1 Role = "RF1"
	RoleRF2 Role = "RF2"
	RoleCS1 Role = "CS1"
	RoleCS2 Role = "CS2"

	ResidualRole Role = "OTG"
)

var namedRoles = []Role{
	RoleRD1, RoleRD2, RoleRD3,
	RoleSA1, RoleSA2, RoleSA3,
	RoleSE1, RoleSE2,
	RoleMA1, RoleMA2,
	RolePA1, RolePA2,
	RoleRF1, RoleRF2,
	RoleCS1, RoleCS2,
}

// NamedRoles returns every non-residual role in display order.
func NamedRoles() []Role {
	out := make([]Role, len(namedRoles))
	copy(out, namedRoles)
	return out
}

// AllRoles returns the named roles followed by the residual role.
func AllRoles() []Role {
	return append(NamedRoles(), ResidualRole)
}

// IsKnownRole reports whether r is one of the fixed roles.
func IsKnownRole(r Role) bool {
	if r == ResidualRole {
		return true
	}
	for _, known := range namedRoles {
		if known == r {
			return true
		}
	}
	return false
}

// RoleSplitMap maps every known role to its share of one commission amount.
// Maps produced by the allocator always sum to the originating amount exactly.
type RoleSplitMap map[Role]Cents

// NewRoleSplitMap returns a map holding a zero share for every known role.
func NewRoleSplitMap() RoleSplitMap {
	m := make(RoleSplitMap, len(namedRoles)+1)
	for _, r := range AllRoles() {
		m[r] = 0
	}
	return m
}

// Sum adds every share, residual included.
func (m RoleSplitMap) Sum() Cents {
	var total Cents
	for _, v := range m {
		total += v
	}
	return total
}

// NonResidualSum adds every share except the residual role's.
func (m RoleSplitMap) NonResidualSum() Cents {
	var total Cents
	for r, v := range m {
		if r != ResidualRole {
			total += v
		}
	}
	return total
}

// Residual returns the OTG share.
func (m RoleSplitMap) Residual() Cents {
	return m[ResidualRole]
}

// Clone returns an independent copy of m.
func (m RoleSplitMap) Clone() RoleSplitMap {
	out := make(RoleSplitMap, len(m))
	for r, v := range m {
		out[r] = v
	}
	return out
}

// NonZero returns the roles with a non-zero share, sorted by name.
func (m RoleSplitMap) NonZero() []Role {
	var roles []Role
	for r, v := range m {
		if v != 0 {
			roles = append(roles, r)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
