package domain

import (
	"fmt"
	"time"
)

// RoleGroup is a seller statement reporting bucket bundling one or two roles.
type RoleGroup struct {
	Name  string
	Roles []Role
}

// ItemKey identifies one seller statement item within a group.
type ItemKey struct {
	BillingItem string
	AccountName string
}

func (k ItemKey) String() string {
	return k.BillingItem + "|" + k.AccountName
}

// SellerStatementItem accumulates the shares a role group earned on one billing item and account.
type SellerStatementItem struct {
	BillingItem string
	AccountName string
	Provider    string
	Shares      map[Role]Cents
	Total       Cents
	Commission  Cents
	RowCount    int
	// Sources holds the RowRef of every statement row merged into the item.
	Sources []string
}

// Key returns the item's merge key.
func (i *SellerStatementItem) Key() ItemKey {
	return NewItemKey(i.BillingItem, i.AccountName)
}

// NewItemKey builds a merge key from display values.
func NewItemKey(billingItem, accountName string) ItemKey {
	return ItemKey{
		BillingItem: NormalizeBillingItem(billingItem),
		AccountName: NormalizeAccountName(accountName),
	}
}

// RowRef identifies a statement row across merges.
func RowRef(statementID string, rowIndex int) string {
	return fmt.Sprintf("%s#%d", statementID, rowIndex)
}

// Clone returns an independent copy of i.
func (i *SellerStatementItem) Clone() *SellerStatementItem {
	out := *i
	out.Shares = make(map[Role]Cents, len(i.Shares))
	for r, v := range i.Shares {
		out.Shares[r] = v
	}
	out.Sources = append([]string(nil), i.Sources...)
	return &out
}

// SellerStatementGroup is the per-period aggregate for one role group.
// Item keys are unique and Totals always equal the sum of the items.
type SellerStatementGroup struct {
	ID        string
	Period    string
	RoleGroup string
	Items     []*SellerStatementItem
	Totals    map[Role]Cents
	Total     Cents
	UpdatedAt time.Time
}

// Clone returns a deep copy of g.
func (g *SellerStatementGroup) Clone() *SellerStatementGroup {
	out := *g
	out.Items = make([]*SellerStatementItem, len(g.Items))
	for i, item := range g.Items {
		out.Items[i] = item.Clone()
	}
	out.Totals = make(map[Role]Cents, len(g.Totals))
	for r, v := range g.Totals {
		out.Totals[r] = v
	}
	return &out
}

// SellerStatementID is the canonical aggregate identifier for a period and role group.
func SellerStatementID(period, roleGroup string) string {
	return fmt.Sprintf("%s_%s", period, roleGroup)
}

// LegacySellerStatementID is the identifier scheme used before aggregates were keyed by period first.
func LegacySellerStatementID(period, roleGroup string) string {
	return fmt.Sprintf("%s_%s", roleGroup, period)
}
