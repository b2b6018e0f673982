package matching

import (
	"strings"

	"github.com/iho/commissions/internal/allocation"
	"github.com/iho/commissions/internal/domain"
)

// Splitter allocates a commission amount across role codes.
type Splitter interface {
	Split(amount domain.Cents, codes []string) (allocation.Result, error)
}

// Result partitions a statement's rows. Every input row lands in exactly one of Matched or Unmatched.
type Result struct {
	Matched   []*domain.MatchedRow
	Unmatched []*domain.UnmatchedRow
}

// Total returns the number of rows in both partitions.
func (r Result) Total() int {
	return len(r.Matched) + len(r.Unmatched)
}

// Matcher drives index lookup, candidate resolution and role splitting over statement rows.
type Matcher struct {
	index    *Index
	splitter Splitter
}

// NewMatcher creates a matcher over a built index.
func NewMatcher(index *Index, splitter Splitter) *Matcher {
	return &Matcher{index: index, splitter: splitter}
}

// Match resolves every row. It never fails: rows that cannot be resolved are returned as unmatched.
func (m *Matcher) Match(rows []*domain.CarrierStatementRow) Result {
	res := Result{
		Matched:   make([]*domain.MatchedRow, 0, len(rows)),
		Unmatched: make([]*domain.UnmatchedRow, 0),
	}

	for _, row := range rows {
		matched, reason := m.matchRow(row)
		if matched == nil {
			res.Unmatched = append(res.Unmatched, &domain.UnmatchedRow{Row: row, Reason: reason})
			continue
		}
		res.Matched = append(res.Matched, matched)
	}
	return res
}

func (m *Matcher) matchRow(row *domain.CarrierStatementRow) (*domain.MatchedRow, domain.UnmatchedReason) {
	key := domain.NormalizeBillingItem(row.BillingItem)
	if key == "" {
		return nil, domain.UnmatchedMissingBillingItem
	}

	candidate, ok := Resolve(m.index.Candidates(key), row)
	if !ok {
		return nil, domain.UnmatchedNoCandidates
	}
	if candidate.RoleCodes == nil {
		return nil, domain.UnmatchedUnusableRoleCodes
	}

	split, err := m.splitter.Split(row.CommissionCents(), candidate.RoleCodes)
	if err != nil {
		return nil, domain.UnmatchedAllocationFailed
	}

	provider := strings.TrimSpace(row.Provider)
	if provider == "" {
		provider = candidate.Provider
	}

	accountName := strings.TrimSpace(row.AccountName)
	if accountName == "" {
		accountName = candidate.AccountName
	}

	codes := make([]string, len(candidate.RoleCodes))
	copy(codes, candidate.RoleCodes)

	return &domain.MatchedRow{
		Row:             row,
		MasterRecordID:  candidate.Record.ID,
		BillingItem:     key,
		AccountName:     accountName,
		Provider:        provider,
		Jurisdiction:    m.jurisdiction(key, row, candidate),
		RoleCodes:       codes,
		Split:           split.Shares,
		ExpectedPercent: candidate.Record.ExpectedPercent,
		Notes:           candidate.Notes,
		Warnings:        split.Warnings,
	}, ""
}

// jurisdiction prefers the row's own code, then the resolved record's, then any record for the key.
func (m *Matcher) jurisdiction(key string, row *domain.CarrierStatementRow, c *Candidate) string {
	if domain.IsJurisdictionCode(row.Jurisdiction) {
		return strings.ToUpper(strings.TrimSpace(row.Jurisdiction))
	}
	if domain.IsJurisdictionCode(c.Record.Jurisdiction) {
		return strings.ToUpper(strings.TrimSpace(c.Record.Jurisdiction))
	}
	if j, ok := m.index.Jurisdiction(key); ok {
		return j
	}
	return ""
}
