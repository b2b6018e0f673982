// Package matching resolves carrier statement rows against the master registry.
package matching

import (
	"strings"

	"github.com/iho/commissions/internal/domain"
)

// CodeVocabulary decides whether a role code in slots 2-4 is recognised.
type CodeVocabulary interface {
	IsKnownCode(code string) bool
}

// Candidate is one master record that may own a billing item.
// RoleCodes is nil only when the record's codes could not be read as a list.
type Candidate struct {
	Record      *domain.MasterRecord
	RoleCodes   []string
	PrimaryCode string
	Provider    string
	Notes       string
	AccountName string
}

// HasUsableRoleCode reports whether any of the candidate's codes is present and not "N/A".
func (c *Candidate) HasUsableRoleCode() bool {
	for _, code := range c.RoleCodes {
		if domain.IsUsableRoleCode(code) {
			return true
		}
	}
	return false
}

// Index maps normalised billing-item keys to their candidates in registry order.
type Index struct {
	candidates    map[string][]*Candidate
	jurisdictions map[string]string
	records       []*domain.MasterRecord
}

// BuildIndex indexes records by billing item. Records without a billing item are skipped.
func BuildIndex(records []*domain.MasterRecord, vocab CodeVocabulary) *Index {
	idx := &Index{
		candidates:    make(map[string][]*Candidate),
		jurisdictions: make(map[string]string),
		records:       records,
	}

	for _, rec := range records {
		key := domain.NormalizeBillingItem(rec.BillingItem)
		if key == "" {
			continue
		}

		idx.candidates[key] = append(idx.candidates[key], &Candidate{
			Record:      rec,
			RoleCodes:   ExtractRoleCodes(rec, vocab),
			PrimaryCode: strings.TrimSpace(rec.RoleSlots[0]),
			Provider:    rec.Provider,
			Notes:       rec.Notes,
			AccountName: rec.AccountName,
		})

		if _, ok := idx.jurisdictions[key]; !ok && domain.IsJurisdictionCode(rec.Jurisdiction) {
			idx.jurisdictions[key] = strings.ToUpper(strings.TrimSpace(rec.Jurisdiction))
		}
	}
	return idx
}

// ExtractRoleCodes reads a record's role codes in slot order. Slot 1 is taken verbatim when usable;
// slots 2-4 must be known codes, falling back to the slot's legacy value when that one is known.
func ExtractRoleCodes(rec *domain.MasterRecord, vocab CodeVocabulary) []string {
	codes := make([]string, 0, domain.RoleSlotCount)

	if first := strings.TrimSpace(rec.RoleSlots[0]); domain.IsUsableRoleCode(first) {
		codes = append(codes, first)
	}

	for i := 1; i < domain.RoleSlotCount; i++ {
		current := strings.TrimSpace(rec.RoleSlots[i])
		legacy := strings.TrimSpace(rec.LegacyRoleSlots[i])
		switch {
		case vocab.IsKnownCode(current):
			codes = append(codes, current)
		case vocab.IsKnownCode(legacy):
			codes = append(codes, legacy)
		}
	}
	return codes
}

// Candidates returns the candidates for a billing item; key is normalised first.
func (idx *Index) Candidates(billingItem string) []*Candidate {
	return idx.candidates[domain.NormalizeBillingItem(billingItem)]
}

// Jurisdiction returns the first valid jurisdiction any record for billingItem carries.
func (idx *Index) Jurisdiction(billingItem string) (string, bool) {
	j, ok := idx.jurisdictions[domain.NormalizeBillingItem(billingItem)]
	return j, ok
}

// Keys returns the number of distinct billing items indexed.
func (idx *Index) Keys() int {
	return len(idx.candidates)
}

// Records returns the registry the index was built from, in load order.
func (idx *Index) Records() []*domain.MasterRecord {
	return idx.records
}
