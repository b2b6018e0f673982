package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementStatus tracks whether a statement's rows currently contribute to its period's aggregates.
type StatementStatus string

const (
	StatementStatusMatched   StatementStatus = "matched"
	StatementStatusRetracted StatementStatus = "retracted"
	StatementStatusFailed    StatementStatus = "failed"
)

// Statement is one uploaded carrier statement within a processing period.
type Statement struct {
	ID           string
	Period       string
	Carrier      string
	FileName     string
	Fingerprint  string
	Status       StatementStatus
	RowCount     int
	MatchedCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CarrierStatementRow is one extracted carrier statement line.
// Commission keeps the value exactly as extracted; engine arithmetic goes through CommissionCents.
type CarrierStatementRow struct {
	StatementID        string
	RowIndex           int
	AccountName        string
	BillingItem        string
	Commission         decimal.Decimal
	InvoiceTotal       decimal.Decimal
	Provider           string
	Jurisdiction       string
	AccountNumber      string
	BillingDescription string
	BillingPeriod      string
}

// CommissionCents is the commission rounded to minor units.
func (r *CarrierStatementRow) CommissionCents() Cents {
	return CentsFromDecimal(r.Commission)
}

// UnmatchedReason explains why a statement row did not resolve to a master record.
type UnmatchedReason string

const (
	UnmatchedMissingBillingItem UnmatchedReason = "missing_billing_item"
	UnmatchedNoCandidates       UnmatchedReason = "no_candidates"
	UnmatchedUnusableRoleCodes  UnmatchedReason = "unusable_role_codes"
	UnmatchedAllocationFailed   UnmatchedReason = "allocation_failed"
)

// UnmatchedRow is a statement row routed to the unmatched partition.
type UnmatchedRow struct {
	Row    *CarrierStatementRow
	Reason UnmatchedReason
}

// MatchedRow is a statement row resolved to a master record with its role split.
// BillingItem is the normalised join key; AccountName falls back to the master record's name.
type MatchedRow struct {
	Row             *CarrierStatementRow
	MasterRecordID  string
	BillingItem     string
	AccountName     string
	Provider        string
	Jurisdiction    string
	RoleCodes       []string
	Split           RoleSplitMap
	ExpectedPercent decimal.Decimal
	Notes           string
	Warnings        []string
}

// Amount is the commission in minor units; Split always sums to it.
func (m *MatchedRow) Amount() Cents {
	return m.Row.CommissionCents()
}
