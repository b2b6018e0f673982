package aggregation

import (
	"sort"

	"github.com/iho/commissions/internal/domain"
)

// Duplicate reports stored documents superseded for one (period, role group).
// Documents above one means a genuine conflict; one means a lone legacy ID was re-keyed.
type Duplicate struct {
	Period     string
	RoleGroup  string
	KeptID     string
	DroppedIDs []string
	Documents  int
}

// ResolveDuplicates collapses stored documents to one per role group. The canonically keyed
// document wins; without one, the most recently updated is kept under the canonical ID.
// Single documents stored under a legacy ID are re-keyed and their old ID reported as dropped.
func ResolveDuplicates(period string, docs []*domain.SellerStatementGroup) ([]*domain.SellerStatementGroup, []Duplicate) {
	byGroup := make(map[string][]*domain.SellerStatementGroup)
	var names []string
	for _, doc := range docs {
		if _, ok := byGroup[doc.RoleGroup]; !ok {
			names = append(names, doc.RoleGroup)
		}
		byGroup[doc.RoleGroup] = append(byGroup[doc.RoleGroup], doc)
	}
	sort.Strings(names)

	kept := make([]*domain.SellerStatementGroup, 0, len(names))
	var conflicts []Duplicate

	for _, name := range names {
		group := byGroup[name]
		canonical := domain.SellerStatementID(period, name)

		winner := group[0]
		for _, doc := range group[1:] {
			switch {
			case winner.ID == canonical:
			case doc.ID == canonical, doc.UpdatedAt.After(winner.UpdatedAt):
				winner = doc
			}
		}

		var dropped []string
		for _, doc := range group {
			if doc != winner {
				dropped = append(dropped, doc.ID)
			}
		}

		out := winner.Clone()
		if out.ID != canonical {
			dropped = append(dropped, out.ID)
			out.ID = canonical
		}
		out.Period = period
		kept = append(kept, out)

		if len(dropped) > 0 {
			conflicts = append(conflicts, Duplicate{
				Period:     period,
				RoleGroup:  name,
				KeptID:     canonical,
				DroppedIDs: dropped,
				Documents:  len(group),
			})
		}
	}
	return kept, conflicts
}
