package domain

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// RegistryEntry is one raw master registry entry as supplied by the registry provider.
// Field names vary between exports, so values are looked up through FieldNames.
type RegistryEntry map[string]any

// RoleSlotCount is the number of role-code slots on a master record.
const RoleSlotCount = 4

// FieldNames lists, in priority order, the names accepted for each master record field.
var FieldNames = struct {
	ID              []string
	BillingItem     []string
	AccountName     []string
	Provider        []string
	Notes           []string
	Jurisdiction    []string
	ExpectedPercent []string
	Status          []string
	CancelDate      []string
	RoleSlots       [RoleSlotCount][]string
	LegacyRoleSlots [RoleSlotCount][]string
}{
	ID:              []string{"id", "ID", "Record ID", "record_id"},
	BillingItem:     []string{"Billing Item", "BillingItem", "billing_item", "Billing Item #", "BTN"},
	AccountName:     []string{"Account", "Account Name", "account_name", "Carrier Account", "Customer"},
	Provider:        []string{"Provider", "provider", "Carrier", "Vendor"},
	Notes:           []string{"Notes", "notes", "Note", "Comments"},
	Jurisdiction:    []string{"State", "state", "Jurisdiction", "jurisdiction"},
	ExpectedPercent: []string{"Expected %", "Expected Percentage", "expected_percent", "Comp %"},
	Status:          []string{"Status", "status", "Account Status"},
	CancelDate:      []string{"Cancel Date", "cancel_date", "Canceled On", "Disconnect Date"},
	RoleSlots: [RoleSlotCount][]string{
		{"Role Code 1", "role_code_1", "Code 1", "Rep Code 1"},
		{"Role Code 2", "role_code_2", "Code 2", "Rep Code 2"},
		{"Role Code 3", "role_code_3", "Code 3", "Rep Code 3"},
		{"Role Code 4", "role_code_4", "Code 4", "Rep Code 4"},
	},
	LegacyRoleSlots: [RoleSlotCount][]string{
		{},
		{"Role Code 2 (2023)", "legacy_role_code_2", "Legacy Code 2"},
		{"Role Code 3 (2023)", "legacy_role_code_3", "Legacy Code 3"},
		{"Role Code 4 (2023)", "legacy_role_code_4", "Legacy Code 4"},
	},
}

// Lookup resolves the first of names present in e. Exact names are tried first, then a
// case-insensitive match, then a match ignoring whitespace and punctuation.
func (e RegistryEntry) Lookup(names ...string) (any, bool) {
	for _, n := range names {
		if v, ok := e[n]; ok {
			return v, true
		}
	}

	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, n := range names {
		for _, k := range keys {
			if strings.EqualFold(k, n) {
				return e[k], true
			}
		}
	}
	for _, n := range names {
		want := foldFieldName(n)
		for _, k := range keys {
			if foldFieldName(k) == want {
				return e[k], true
			}
		}
	}
	return nil, false
}

// String resolves a field and renders it as trimmed text. Nil values read as "".
func (e RegistryEntry) String(names ...string) string {
	v, ok := e.Lookup(names...)
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return decimal.NewFromFloat(val).String()
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func foldFieldName(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

// MasterRecord is one typed master registry entry. Several records may share a billing item.
type MasterRecord struct {
	ID              string
	Seq             int
	BillingItem     string
	AccountName     string
	Provider        string
	Notes           string
	Jurisdiction    string
	ExpectedPercent decimal.Decimal
	Status          string
	CancelDate      string
	RoleSlots       [RoleSlotCount]string
	LegacyRoleSlots [RoleSlotCount]string
	Raw             RegistryEntry
}

// ParseMasterRecord types one registry entry. seq is the entry's registry load order.
func ParseMasterRecord(e RegistryEntry, seq int) *MasterRecord {
	r := &MasterRecord{
		ID:           e.String(FieldNames.ID...),
		Seq:          seq,
		BillingItem:  e.String(FieldNames.BillingItem...),
		AccountName:  e.String(FieldNames.AccountName...),
		Provider:     e.String(FieldNames.Provider...),
		Notes:        e.String(FieldNames.Notes...),
		Jurisdiction: strings.ToUpper(e.String(FieldNames.Jurisdiction...)),
		Status:       e.String(FieldNames.Status...),
		CancelDate:   e.String(FieldNames.CancelDate...),
		Raw:          e,
	}
	if r.ID == "" {
		r.ID = fmt.Sprintf("registry-%d", seq)
	}

	for i := 0; i < RoleSlotCount; i++ {
		r.RoleSlots[i] = e.String(FieldNames.RoleSlots[i]...)
		if len(FieldNames.LegacyRoleSlots[i]) > 0 {
			r.LegacyRoleSlots[i] = e.String(FieldNames.LegacyRoleSlots[i]...)
		}
	}

	if pct := e.String(FieldNames.ExpectedPercent...); pct != "" {
		r.ExpectedPercent = parsePercent(pct)
	}
	return r
}

// ParseRegistry types every entry, keeping registry order.
func ParseRegistry(entries []RegistryEntry) []*MasterRecord {
	records := make([]*MasterRecord, 0, len(entries))
	for i, e := range entries {
		records = append(records, ParseMasterRecord(e, i))
	}
	return records
}

// IsCanceled reports whether the record carries a cancellation marker.
func (r *MasterRecord) IsCanceled() bool {
	if r.CancelDate != "" {
		return true
	}
	status := strings.ToLower(r.Status)
	return strings.Contains(status, "cancel") || strings.Contains(status, "disconnect")
}

// parsePercent reads "12.5%", "12.5" or "0.125" as a percentage (12.5).
// Values at or below 1 are treated as fractions.
func parsePercent(s string) decimal.Decimal {
	d, err := ParseAmount(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return decimal.Zero
	}
	if !strings.Contains(s, "%") && d.Abs().LessThanOrEqual(decimal.NewFromInt(1)) {
		return d.Mul(decimal.NewFromInt(100))
	}
	return d
}
