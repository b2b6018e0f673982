package matching

import (
	"strings"

	"github.com/iho/commissions/internal/domain"
)

// Resolve picks the candidate that owns row. Candidates must be in registry order.
// The first rule that singles out a candidate wins:
//  1. no candidates: no resolution
//  2. narrow to candidates with usable role codes when only some have them
//  3. a single remaining candidate
//  4. exact normalised account-name match
//  5. account-name containment in either direction
//  6. first candidate with a usable primary code
//  7. first candidate
func Resolve(candidates []*Candidate, row *domain.CarrierStatementRow) (*Candidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	pool := candidates
	if len(pool) > 1 {
		withCodes := make([]*Candidate, 0, len(pool))
		for _, c := range pool {
			if c.HasUsableRoleCode() {
				withCodes = append(withCodes, c)
			}
		}
		if len(withCodes) > 0 && len(withCodes) < len(pool) {
			pool = withCodes
		}
	}

	if len(pool) == 1 {
		return pool[0], true
	}

	if name := domain.NormalizeAccountName(row.AccountName); name != "" {
		for _, c := range pool {
			if domain.NormalizeAccountName(c.AccountName) == name {
				return c, true
			}
		}
		for _, c := range pool {
			candidate := domain.NormalizeAccountName(c.AccountName)
			if candidate == "" {
				continue
			}
			if strings.Contains(candidate, name) || strings.Contains(name, candidate) {
				return c, true
			}
		}
	}

	for _, c := range pool {
		if domain.IsUsableRoleCode(c.PrimaryCode) {
			return c, true
		}
	}

	return pool[0], true
}
