package aggregation

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/iho/commissions/internal/domain"
)

// Aggregator merges matched rows into seller statement groups. Every operation returns new
// groups and leaves its inputs untouched; callers serialise operations on the same period.
type Aggregator struct {
	groups []domain.RoleGroup
}

// New creates an aggregator over groups. Nil groups means DefaultRoleGroups.
func New(groups []domain.RoleGroup) *Aggregator {
	if groups == nil {
		groups = DefaultRoleGroups()
	}
	return &Aggregator{groups: groups}
}

// Groups returns the configured role groups.
func (a *Aggregator) Groups() []domain.RoleGroup {
	return a.groups
}

// Group looks up a role group by name.
func (a *Aggregator) Group(name string) (domain.RoleGroup, error) {
	for _, g := range a.groups {
		if strings.EqualFold(g.Name, name) {
			return g, nil
		}
	}
	return domain.RoleGroup{}, fmt.Errorf("%w: %s", domain.ErrRoleGroupNotFound, name)
}

// Build aggregates a complete matched-row set from scratch.
func (a *Aggregator) Build(period string, rows []*domain.MatchedRow) []*domain.SellerStatementGroup {
	return a.Add(period, nil, rows)
}

// Add merges rows into existing. Shares for an existing (billing item, account) item are
// accumulated; a row already recorded in an item's sources is not counted twice.
func (a *Aggregator) Add(period string, existing []*domain.SellerStatementGroup, rows []*domain.MatchedRow) []*domain.SellerStatementGroup {
	docs := index(existing)

	for _, g := range a.groups {
		var doc *domain.SellerStatementGroup
		var items map[domain.ItemKey]*domain.SellerStatementItem

		for _, row := range rows {
			if !affects(g, row) {
				continue
			}
			if doc == nil {
				doc = docs[g.Name]
				if doc == nil {
					doc = &domain.SellerStatementGroup{
						ID:        domain.SellerStatementID(period, g.Name),
						Period:    period,
						RoleGroup: g.Name,
					}
					docs[g.Name] = doc
				}
				items = itemIndex(doc)
			}

			key := domain.NewItemKey(row.BillingItem, row.AccountName)
			item, ok := items[key]
			if !ok {
				item = &domain.SellerStatementItem{
					BillingItem: key.BillingItem,
					AccountName: row.AccountName,
					Provider:    row.Provider,
					Shares:      make(map[domain.Role]domain.Cents, len(g.Roles)),
				}
				items[key] = item
				doc.Items = append(doc.Items, item)
			}
			contribute(g, item, row)
		}

		if doc != nil {
			finalize(doc)
		}
	}

	return a.ordered(docs)
}

// Remove deletes, from every group a retracted row affects, the items sharing the row's
// (billing item, account) key. Groups left without items are dropped.
func (a *Aggregator) Remove(period string, existing []*domain.SellerStatementGroup, rows []*domain.MatchedRow) []*domain.SellerStatementGroup {
	docs := index(existing)

	for _, g := range a.groups {
		doc := docs[g.Name]
		if doc == nil {
			continue
		}

		doomed := make(map[domain.ItemKey]struct{})
		for _, row := range rows {
			if affects(g, row) {
				doomed[domain.NewItemKey(row.BillingItem, row.AccountName)] = struct{}{}
			}
		}
		if len(doomed) == 0 {
			continue
		}

		kept := doc.Items[:0]
		for _, item := range doc.Items {
			if _, drop := doomed[item.Key()]; !drop {
				kept = append(kept, item)
			}
		}
		doc.Items = kept

		if len(doc.Items) == 0 {
			delete(docs, g.Name)
			continue
		}
		finalize(doc)
	}

	return a.ordered(docs)
}

// SharedItems returns the items Remove would delete that also hold contributions from rows
// outside the retracted set. Removing such items loses those contributions, so callers
// regenerate the period instead.
func (a *Aggregator) SharedItems(existing []*domain.SellerStatementGroup, rows []*domain.MatchedRow) []domain.ItemKey {
	retracted := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		retracted[domain.RowRef(row.Row.StatementID, row.Row.RowIndex)] = struct{}{}
	}

	docs := make(map[string]*domain.SellerStatementGroup, len(existing))
	for _, doc := range existing {
		docs[doc.RoleGroup] = doc
	}

	seen := make(map[domain.ItemKey]struct{})
	var shared []domain.ItemKey
	for _, g := range a.groups {
		doc := docs[g.Name]
		if doc == nil {
			continue
		}
		items := make(map[domain.ItemKey]*domain.SellerStatementItem, len(doc.Items))
		for _, item := range doc.Items {
			items[item.Key()] = item
		}
		for _, row := range rows {
			if !affects(g, row) {
				continue
			}
			key := domain.NewItemKey(row.BillingItem, row.AccountName)
			item, ok := items[key]
			if !ok {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			for _, src := range item.Sources {
				if _, mine := retracted[src]; !mine {
					seen[key] = struct{}{}
					shared = append(shared, key)
					break
				}
			}
		}
	}
	return shared
}

func contribute(g domain.RoleGroup, item *domain.SellerStatementItem, row *domain.MatchedRow) {
	ref := domain.RowRef(row.Row.StatementID, row.Row.RowIndex)
	if slices.Contains(item.Sources, ref) {
		return
	}
	item.Sources = append(item.Sources, ref)

	for _, r := range g.Roles {
		if share := row.Split[r]; share != 0 {
			item.Shares[r] += share
		}
	}
	item.Commission += row.Amount()
	item.RowCount++
	if item.Provider == "" {
		item.Provider = row.Provider
	}
}

// finalize recomputes item and group totals and restores item order.
func finalize(doc *domain.SellerStatementGroup) {
	doc.Totals = make(map[domain.Role]domain.Cents)
	doc.Total = 0

	for _, item := range doc.Items {
		item.Total = 0
		for r, v := range item.Shares {
			item.Total += v
			doc.Totals[r] += v
		}
		doc.Total += item.Total
	}

	sort.SliceStable(doc.Items, func(i, j int) bool {
		a, b := doc.Items[i], doc.Items[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		if a.AccountName != b.AccountName {
			return a.AccountName < b.AccountName
		}
		return a.BillingItem < b.BillingItem
	})
}

func index(existing []*domain.SellerStatementGroup) map[string]*domain.SellerStatementGroup {
	docs := make(map[string]*domain.SellerStatementGroup, len(existing))
	for _, doc := range existing {
		docs[doc.RoleGroup] = doc.Clone()
	}
	return docs
}

func itemIndex(doc *domain.SellerStatementGroup) map[domain.ItemKey]*domain.SellerStatementItem {
	items := make(map[domain.ItemKey]*domain.SellerStatementItem, len(doc.Items))
	for _, item := range doc.Items {
		items[item.Key()] = item
	}
	return items
}

// ordered lists groups in configured order; unknown groups found in storage follow by name.
func (a *Aggregator) ordered(docs map[string]*domain.SellerStatementGroup) []*domain.SellerStatementGroup {
	out := make([]*domain.SellerStatementGroup, 0, len(docs))
	known := make(map[string]struct{}, len(a.groups))
	for _, g := range a.groups {
		known[g.Name] = struct{}{}
		if doc, ok := docs[g.Name]; ok {
			out = append(out, doc)
		}
	}

	var extra []string
	for name := range docs {
		if _, ok := known[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, docs[name])
	}
	return out
}
