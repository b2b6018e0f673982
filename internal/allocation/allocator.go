// Package allocation splits a commission amount into cent-exact role shares.
package allocation

import (
	"fmt"

	"github.com/iho/commissions/internal/domain"
)

// NearZeroThreshold is the largest absolute amount, in cents, sent entirely to the residual role.
const NearZeroThreshold domain.Cents = 3

// maxRemainderPasses bounds the corrective remainder passes.
const maxRemainderPasses = 2

// Result is the outcome of one split.
type Result struct {
	Shares   domain.RoleSplitMap
	Warnings []string
}

// Allocator applies a RuleTable to commission amounts. It holds no mutable state and is safe
// for concurrent use.
type Allocator struct {
	table *RuleTable
}

// New creates an allocator over table. A nil table means DefaultRuleTable.
func New(table *RuleTable) *Allocator {
	if table == nil {
		table = DefaultRuleTable()
	}
	return &Allocator{table: table}
}

// Table returns the allocator's rule table.
func (a *Allocator) Table() *RuleTable {
	return a.table
}

// Split allocates amount across the roles named by codes. The returned shares always sum to
// amount exactly. Unknown codes are ignored and their share falls to the residual role. A code
// repeated after normalisation credits its role once.
func (a *Allocator) Split(amount domain.Cents, codes []string) (Result, error) {
	shares := domain.NewRoleSplitMap()

	if amount.Abs() <= NearZeroThreshold {
		shares[domain.ResidualRole] = amount
		return Result{Shares: shares}, nil
	}

	seen := make(map[string]struct{}, len(codes))
	for _, raw := range codes {
		code := NormalizeCode(raw)
		if !domain.IsUsableRoleCode(code) {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		// Self-tagged residual codes never take a direct percentage.
		if isResidualCode(code) {
			continue
		}

		if haCodeRegex.MatchString(code) {
			if _, discard := a.table.haDiscard[code]; discard {
				continue
			}
			if bp, ok := a.table.haResidual[code]; ok {
				shares[domain.ResidualRole] += PercentOf(amount, bp)
			}
			continue
		}

		if rate, ok := a.table.rates[code]; ok {
			shares[rate.Role] += PercentOf(amount, rate.BasisPoints)
		}
	}

	for pass := 0; pass < maxRemainderPasses; pass++ {
		diff := amount - shares.Sum()
		if diff == 0 {
			break
		}
		shares[domain.ResidualRole] += diff
	}

	var warnings []string
	nonResidual := shares.NonResidualSum()
	if amount < 0 {
		for _, r := range domain.NamedRoles() {
			if shares[r] > 0 {
				warnings = append(warnings, fmt.Sprintf("role %s share %s is positive on negative amount %s", r, shares[r], amount))
			}
		}
		shares[domain.ResidualRole] = amount - nonResidual
	}
	if nonResidual.Abs() > amount.Abs() {
		warnings = append(warnings, fmt.Sprintf("named roles allocate %s, more than amount %s", nonResidual, amount))
	}

	if sum := shares.Sum(); sum != amount {
		return Result{}, fmt.Errorf("%w: shares sum to %s, amount is %s", domain.ErrAllocationImbalance, sum, amount)
	}
	return Result{Shares: shares, Warnings: warnings}, nil
}

// PercentOf returns amount * bp / 10000 rounded half away from zero, in integer arithmetic.
func PercentOf(amount domain.Cents, bp int64) domain.Cents {
	n := int64(amount) * bp
	q, r := n/BasisPointsScale, n%BasisPointsScale
	switch {
	case 2*r >= BasisPointsScale:
		q++
	case 2*r <= -BasisPointsScale:
		q--
	}
	return domain.Cents(q)
}
