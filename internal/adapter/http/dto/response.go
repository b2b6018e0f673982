package dto

import (
	"time"

	"github.com/iho/commissions/internal/allocation"
	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RegistrySummaryResponse reports a registry reload.
type RegistrySummaryResponse struct {
	Records      int `json:"records"`
	BillingItems int `json:"billing_items"`
}

// RegistrySummaryFromUseCase converts a use case summary to response.
func RegistrySummaryFromUseCase(s *usecase.RegistrySummary) *RegistrySummaryResponse {
	return &RegistrySummaryResponse{Records: s.Records, BillingItems: s.BillingItems}
}

// MasterRecordResponse represents a typed master registry record.
type MasterRecordResponse struct {
	ID              string   `json:"id"`
	Seq             int      `json:"seq"`
	BillingItem     string   `json:"billing_item"`
	AccountName     string   `json:"account_name"`
	Provider        string   `json:"provider,omitempty"`
	Jurisdiction    string   `json:"jurisdiction,omitempty"`
	ExpectedPercent string   `json:"expected_percent,omitempty"`
	Status          string   `json:"status,omitempty"`
	CancelDate      string   `json:"cancel_date,omitempty"`
	RoleSlots       []string `json:"role_slots"`
}

// MasterRecordsFromDomain converts master records to responses.
func MasterRecordsFromDomain(records []*domain.MasterRecord) []*MasterRecordResponse {
	result := make([]*MasterRecordResponse, len(records))
	for i, rec := range records {
		r := &MasterRecordResponse{
			ID:           rec.ID,
			Seq:          rec.Seq,
			BillingItem:  rec.BillingItem,
			AccountName:  rec.AccountName,
			Provider:     rec.Provider,
			Jurisdiction: rec.Jurisdiction,
			Status:       rec.Status,
			CancelDate:   rec.CancelDate,
			RoleSlots:    append([]string(nil), rec.RoleSlots[:]...),
		}
		if !rec.ExpectedPercent.IsZero() {
			r.ExpectedPercent = rec.ExpectedPercent.String()
		}
		result[i] = r
	}
	return result
}

// StatementResponse represents a statement in API responses.
type StatementResponse struct {
	ID           string    `json:"id"`
	Period       string    `json:"period"`
	Carrier      string    `json:"carrier"`
	FileName     string    `json:"file_name"`
	Fingerprint  string    `json:"fingerprint"`
	Status       string    `json:"status"`
	RowCount     int       `json:"row_count"`
	MatchedCount int       `json:"matched_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StatementFromDomain converts domain statement to response.
func StatementFromDomain(s *domain.Statement) *StatementResponse {
	return &StatementResponse{
		ID:           s.ID,
		Period:       s.Period,
		Carrier:      s.Carrier,
		FileName:     s.FileName,
		Fingerprint:  s.Fingerprint,
		Status:       string(s.Status),
		RowCount:     s.RowCount,
		MatchedCount: s.MatchedCount,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// StatementsFromDomain converts domain statements to responses.
func StatementsFromDomain(statements []*domain.Statement) []*StatementResponse {
	result := make([]*StatementResponse, len(statements))
	for i, s := range statements {
		result[i] = StatementFromDomain(s)
	}
	return result
}

// MatchedRowResponse represents a matched statement row.
type MatchedRowResponse struct {
	RowIndex        int                 `json:"row_index"`
	MasterRecordID  string              `json:"master_record_id"`
	BillingItem     string              `json:"billing_item"`
	AccountName     string              `json:"account_name"`
	Provider        string              `json:"provider,omitempty"`
	Jurisdiction    string              `json:"jurisdiction,omitempty"`
	Commission      domain.Cents        `json:"commission"`
	RoleCodes       []string            `json:"role_codes"`
	Split           domain.RoleSplitMap `json:"split"`
	ExpectedPercent string              `json:"expected_percent,omitempty"`
	Warnings        []string            `json:"warnings,omitempty"`
}

// MatchedRowsFromDomain converts matched rows to responses. Zero shares are left out of splits.
func MatchedRowsFromDomain(rows []*domain.MatchedRow) []*MatchedRowResponse {
	result := make([]*MatchedRowResponse, len(rows))
	for i, m := range rows {
		r := &MatchedRowResponse{
			RowIndex:       m.Row.RowIndex,
			MasterRecordID: m.MasterRecordID,
			BillingItem:    m.BillingItem,
			AccountName:    m.AccountName,
			Provider:       m.Provider,
			Jurisdiction:   m.Jurisdiction,
			Commission:     m.Amount(),
			RoleCodes:      m.RoleCodes,
			Split:          nonZeroShares(m.Split),
			Warnings:       m.Warnings,
		}
		if !m.ExpectedPercent.IsZero() {
			r.ExpectedPercent = m.ExpectedPercent.String()
		}
		result[i] = r
	}
	return result
}

// UnmatchedRowResponse represents a row that did not resolve to a master record.
type UnmatchedRowResponse struct {
	RowIndex    int          `json:"row_index"`
	BillingItem string       `json:"billing_item"`
	AccountName string       `json:"account_name"`
	Commission  domain.Cents `json:"commission"`
	Reason      string       `json:"reason"`
}

// UnmatchedRowsFromDomain converts unmatched rows to responses.
func UnmatchedRowsFromDomain(rows []*domain.UnmatchedRow) []*UnmatchedRowResponse {
	result := make([]*UnmatchedRowResponse, len(rows))
	for i, u := range rows {
		result[i] = &UnmatchedRowResponse{
			RowIndex:    u.Row.RowIndex,
			BillingItem: u.Row.BillingItem,
			AccountName: u.Row.AccountName,
			Commission:  u.Row.CommissionCents(),
			Reason:      string(u.Reason),
		}
	}
	return result
}

// SubmitStatementResponse reports the outcome of a statement submission.
type SubmitStatementResponse struct {
	Statement *StatementResponse         `json:"statement"`
	Matched   []*MatchedRowResponse      `json:"matched"`
	Unmatched []*UnmatchedRowResponse    `json:"unmatched"`
	Groups    []*SellerStatementResponse `json:"seller_statements"`
}

// SubmitStatementFromUseCase converts a submission result to response.
func SubmitStatementFromUseCase(res *usecase.SubmitStatementResult) *SubmitStatementResponse {
	return &SubmitStatementResponse{
		Statement: StatementFromDomain(res.Statement),
		Matched:   MatchedRowsFromDomain(res.Matched),
		Unmatched: UnmatchedRowsFromDomain(res.Unmatched),
		Groups:    SellerStatementsFromDomain(res.Groups),
	}
}

// RegenerateReportResponse summarises a period rebuild.
type RegenerateReportResponse struct {
	Period        string   `json:"period"`
	Statements    int      `json:"statements"`
	Excluded      []string `json:"excluded"`
	Superseded    []string `json:"superseded"`
	MatchedRows   int      `json:"matched_rows"`
	UnmatchedRows int      `json:"unmatched_rows"`
	Groups        int      `json:"seller_statements"`
}

// RegenerateReportFromUseCase converts a regenerate report to response.
func RegenerateReportFromUseCase(r *usecase.RegenerateReport) *RegenerateReportResponse {
	return &RegenerateReportResponse{
		Period:        r.Period,
		Statements:    r.Statements,
		Excluded:      nonNilIDs(r.Excluded),
		Superseded:    nonNilIDs(r.Superseded),
		MatchedRows:   r.MatchedRows,
		UnmatchedRows: r.UnmatchedRows,
		Groups:        r.Groups,
	}
}

// RetractStatementResponse reports a retraction.
type RetractStatementResponse struct {
	Statement   *StatementResponse        `json:"statement"`
	Regenerated bool                      `json:"regenerated"`
	Report      *RegenerateReportResponse `json:"report,omitempty"`
}

// RetractStatementFromUseCase converts a retraction result to response.
func RetractStatementFromUseCase(res *usecase.RetractStatementResult) *RetractStatementResponse {
	out := &RetractStatementResponse{
		Statement:   StatementFromDomain(res.Statement),
		Regenerated: res.Regenerated,
	}
	if res.Report != nil {
		out.Report = RegenerateReportFromUseCase(res.Report)
	}
	return out
}

// SellerStatementItemResponse is one billing item line of a seller statement.
type SellerStatementItemResponse struct {
	BillingItem string                       `json:"billing_item"`
	AccountName string                       `json:"account_name"`
	Provider    string                       `json:"provider,omitempty"`
	Shares      map[domain.Role]domain.Cents `json:"shares"`
	Total       domain.Cents                 `json:"total"`
	Commission  domain.Cents                 `json:"commission"`
	RowCount    int                          `json:"row_count"`
}

// SellerStatementResponse represents one role group's seller statement.
type SellerStatementResponse struct {
	ID        string                         `json:"id"`
	Period    string                         `json:"period"`
	RoleGroup string                         `json:"role_group"`
	Items     []*SellerStatementItemResponse `json:"items"`
	Totals    map[domain.Role]domain.Cents   `json:"totals"`
	Total     domain.Cents                   `json:"total"`
	UpdatedAt time.Time                      `json:"updated_at"`
}

// SellerStatementFromDomain converts a seller statement group to response.
func SellerStatementFromDomain(g *domain.SellerStatementGroup) *SellerStatementResponse {
	items := make([]*SellerStatementItemResponse, len(g.Items))
	for i, item := range g.Items {
		items[i] = &SellerStatementItemResponse{
			BillingItem: item.BillingItem,
			AccountName: item.AccountName,
			Provider:    item.Provider,
			Shares:      item.Shares,
			Total:       item.Total,
			Commission:  item.Commission,
			RowCount:    item.RowCount,
		}
	}
	totals := g.Totals
	if totals == nil {
		totals = map[domain.Role]domain.Cents{}
	}
	return &SellerStatementResponse{
		ID:        g.ID,
		Period:    g.Period,
		RoleGroup: g.RoleGroup,
		Items:     items,
		Totals:    totals,
		Total:     g.Total,
		UpdatedAt: g.UpdatedAt,
	}
}

// SellerStatementsFromDomain converts seller statement groups to responses.
func SellerStatementsFromDomain(groups []*domain.SellerStatementGroup) []*SellerStatementResponse {
	result := make([]*SellerStatementResponse, len(groups))
	for i, g := range groups {
		result[i] = SellerStatementFromDomain(g)
	}
	return result
}

// DisputeResponse represents a dispute in API responses.
type DisputeResponse struct {
	ID          string       `json:"id"`
	Period      string       `json:"period"`
	Type        string       `json:"type"`
	StatementID string       `json:"statement_id,omitempty"`
	AccountName string       `json:"account_name"`
	BillingItem string       `json:"billing_item"`
	Provider    string       `json:"provider,omitempty"`
	Amount      domain.Cents `json:"amount"`
	PriorAmount domain.Cents `json:"prior_amount"`
	Explanation string       `json:"explanation"`
	DetectedAt  time.Time    `json:"detected_at"`
}

// DisputesFromDomain converts disputes to responses.
func DisputesFromDomain(disputes []*domain.Dispute) []*DisputeResponse {
	result := make([]*DisputeResponse, len(disputes))
	for i, d := range disputes {
		result[i] = &DisputeResponse{
			ID:          d.ID,
			Period:      d.Period,
			Type:        string(d.Type),
			StatementID: d.StatementID,
			AccountName: d.AccountName,
			BillingItem: d.BillingItem,
			Provider:    d.Provider,
			Amount:      d.Amount,
			PriorAmount: d.PriorAmount,
			Explanation: d.Explanation,
			DetectedAt:  d.DetectedAt,
		}
	}
	return result
}

// SplitPreviewResponse is the allocator's split of one amount.
type SplitPreviewResponse struct {
	Amount   domain.Cents        `json:"amount"`
	Shares   domain.RoleSplitMap `json:"shares"`
	Residual domain.Cents        `json:"residual"`
	Warnings []string            `json:"warnings,omitempty"`
}

// SplitPreviewFromResult converts an allocation result to response.
func SplitPreviewFromResult(amount domain.Cents, res allocation.Result) *SplitPreviewResponse {
	return &SplitPreviewResponse{
		Amount:   amount,
		Shares:   nonZeroShares(res.Shares),
		Residual: res.Shares.Residual(),
		Warnings: res.Warnings,
	}
}

func nonZeroShares(m domain.RoleSplitMap) domain.RoleSplitMap {
	out := domain.RoleSplitMap{}
	for _, r := range m.NonZero() {
		out[r] = m[r]
	}
	return out
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
