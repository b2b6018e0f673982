// Package aggregation builds and incrementally maintains per-period seller statements.
package aggregation

import "github.com/iho/commissions/internal/domain"

// DefaultRoleGroups returns the reporting buckets in display order.
func DefaultRoleGroups() []domain.RoleGroup {
	return []domain.RoleGroup{
		{Name: "RD1", Roles: []domain.Role{domain.RoleRD1}},
		{Name: "RD2-RD3", Roles: []domain.Role{domain.RoleRD2, domain.RoleRD3}},
		{Name: "SA1", Roles: []domain.Role{domain.RoleSA1}},
		{Name: "SA2-SA3", Roles: []domain.Role{domain.RoleSA2, domain.RoleSA3}},
		{Name: "SE", Roles: []domain.Role{domain.RoleSE1, domain.RoleSE2}},
		{Name: "MA", Roles: []domain.Role{domain.RoleMA1, domain.RoleMA2}},
		{Name: "PA", Roles: []domain.Role{domain.RolePA1, domain.RolePA2}},
		{Name: "RF", Roles: []domain.Role{domain.RoleRF1, domain.RoleRF2}},
		{Name: "CS", Roles: []domain.Role{domain.RoleCS1, domain.RoleCS2}},
	}
}

// affects reports whether row carries a non-zero share for any of g's roles.
func affects(g domain.RoleGroup, row *domain.MatchedRow) bool {
	for _, r := range g.Roles {
		if row.Split[r] != 0 {
			return true
		}
	}
	return false
}
