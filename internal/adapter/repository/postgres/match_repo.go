package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

var matchedRowColumns = []string{
	"statement_id", "row_index", "period", "master_record_id", "billing_item", "account_name",
	"provider", "jurisdiction", "role_codes", "split", "expected_percent", "notes", "warnings",
}

var unmatchedRowColumns = []string{"statement_id", "row_index", "period", "reason"}

const rowSelectColumns = `r.statement_id, r.row_index, r.account_name, r.billing_item, r.commission::text,
	r.invoice_total::text, r.provider, r.jurisdiction, r.account_number, r.billing_description, r.billing_period`

const matchedSelect = `
	SELECT ` + rowSelectColumns + `,
	       m.master_record_id, m.billing_item, m.account_name, m.provider, m.jurisdiction,
	       m.role_codes, m.split, m.expected_percent::text, m.notes, m.warnings
	FROM matched_rows m
	JOIN statement_rows r ON r.statement_id = m.statement_id AND r.row_index = m.row_index`

const unmatchedSelect = `
	SELECT ` + rowSelectColumns + `, u.reason
	FROM unmatched_rows u
	JOIN statement_rows r ON r.statement_id = u.statement_id AND r.row_index = u.row_index`

// MatchRepository implements usecase.MatchRepository.
type MatchRepository struct {
	db DB
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(db DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// SaveMatched bulk-loads matched rows with COPY.
func (r *MatchRepository) SaveMatched(ctx context.Context, period string, rows []*domain.MatchedRow) error {
	src := make([][]any, 0, len(rows))
	for _, m := range rows {
		split, err := json.Marshal(m.Split)
		if err != nil {
			return fmt.Errorf("encode split for %s#%d: %w", m.Row.StatementID, m.Row.RowIndex, err)
		}
		src = append(src, []any{
			m.Row.StatementID,
			m.Row.RowIndex,
			period,
			m.MasterRecordID,
			m.BillingItem,
			m.AccountName,
			m.Provider,
			m.Jurisdiction,
			nonNil(m.RoleCodes),
			split,
			decimalToNumeric(m.ExpectedPercent),
			m.Notes,
			nonNil(m.Warnings),
		})
	}

	_, err := r.db.CopyFrom(ctx, pgx.Identifier{"matched_rows"}, matchedRowColumns, pgx.CopyFromRows(src))
	return err
}

// SaveUnmatched bulk-loads unmatched rows with COPY.
func (r *MatchRepository) SaveUnmatched(ctx context.Context, period string, rows []*domain.UnmatchedRow) error {
	src := make([][]any, 0, len(rows))
	for _, u := range rows {
		src = append(src, []any{u.Row.StatementID, u.Row.RowIndex, period, string(u.Reason)})
	}

	_, err := r.db.CopyFrom(ctx, pgx.Identifier{"unmatched_rows"}, unmatchedRowColumns, pgx.CopyFromRows(src))
	return err
}

// ListByStatement returns the matched rows of one statement regardless of its status.
func (r *MatchRepository) ListByStatement(ctx context.Context, statementID string) ([]*domain.MatchedRow, error) {
	return r.listMatched(ctx, matchedSelect+`
	WHERE m.statement_id = $1
	ORDER BY m.row_index`, statementID)
}

// ListByPeriod returns the period's matched rows from statements currently in the matched status.
func (r *MatchRepository) ListByPeriod(ctx context.Context, period string) ([]*domain.MatchedRow, error) {
	return r.listMatched(ctx, matchedSelect+`
	JOIN statements s ON s.id = m.statement_id
	WHERE m.period = $1 AND s.status = $2
	ORDER BY s.created_at, m.statement_id, m.row_index`, period, string(domain.StatementStatusMatched))
}

// ListUnmatchedByPeriod returns the period's unmatched rows from statements in the matched status.
func (r *MatchRepository) ListUnmatchedByPeriod(ctx context.Context, period string) ([]*domain.UnmatchedRow, error) {
	rows, err := r.db.Query(ctx, unmatchedSelect+`
	JOIN statements s ON s.id = u.statement_id
	WHERE u.period = $1 AND s.status = $2
	ORDER BY s.created_at, u.statement_id, u.row_index`, period, string(domain.StatementStatusMatched))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.UnmatchedRow
	for rows.Next() {
		var (
			row                      domain.CarrierStatementRow
			commission, invoiceTotal string
			reason                   string
		)
		if err := rows.Scan(
			&row.StatementID, &row.RowIndex, &row.AccountName, &row.BillingItem, &commission, &invoiceTotal,
			&row.Provider, &row.Jurisdiction, &row.AccountNumber, &row.BillingDescription, &row.BillingPeriod,
			&reason,
		); err != nil {
			return nil, err
		}
		if err := setRowAmounts(&row, commission, invoiceTotal); err != nil {
			return nil, err
		}
		out = append(out, &domain.UnmatchedRow{Row: &row, Reason: domain.UnmatchedReason(reason)})
	}
	return out, rows.Err()
}

// DeleteByStatement removes a statement's matching output.
func (r *MatchRepository) DeleteByStatement(ctx context.Context, tx usecase.Transaction, statementID string) error {
	db := conn(r.db, tx)
	if _, err := db.Exec(ctx, `DELETE FROM matched_rows WHERE statement_id = $1`, statementID); err != nil {
		return fmt.Errorf("delete matched rows: %w", err)
	}
	if _, err := db.Exec(ctx, `DELETE FROM unmatched_rows WHERE statement_id = $1`, statementID); err != nil {
		return fmt.Errorf("delete unmatched rows: %w", err)
	}
	return nil
}

func (r *MatchRepository) listMatched(ctx context.Context, query string, args ...any) ([]*domain.MatchedRow, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.MatchedRow
	for rows.Next() {
		var (
			row                      domain.CarrierStatementRow
			m                        domain.MatchedRow
			commission, invoiceTotal string
			split                    []byte
			pct                      string
		)
		if err := rows.Scan(
			&row.StatementID, &row.RowIndex, &row.AccountName, &row.BillingItem, &commission, &invoiceTotal,
			&row.Provider, &row.Jurisdiction, &row.AccountNumber, &row.BillingDescription, &row.BillingPeriod,
			&m.MasterRecordID, &m.BillingItem, &m.AccountName, &m.Provider, &m.Jurisdiction,
			&m.RoleCodes, &split, &pct, &m.Notes, &m.Warnings,
		); err != nil {
			return nil, err
		}
		if err := setRowAmounts(&row, commission, invoiceTotal); err != nil {
			return nil, err
		}
		if m.ExpectedPercent, err = parseDecimal(pct); err != nil {
			return nil, fmt.Errorf("row %s#%d expected percent: %w", row.StatementID, row.RowIndex, err)
		}
		if err := json.Unmarshal(split, &m.Split); err != nil {
			return nil, fmt.Errorf("decode split for %s#%d: %w", row.StatementID, row.RowIndex, err)
		}
		m.Row = &row
		out = append(out, &m)
	}
	return out, rows.Err()
}
