package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

const statementColumns = `id, period, carrier, file_name, fingerprint, status, row_count, matched_count, created_at, updated_at`

var statementRowColumns = []string{
	"statement_id", "row_index", "account_name", "billing_item", "commission", "invoice_total",
	"provider", "jurisdiction", "account_number", "billing_description", "billing_period",
}

// StatementRepository implements usecase.StatementRepository.
type StatementRepository struct {
	db DB
}

// NewStatementRepository creates a new StatementRepository.
func NewStatementRepository(db DB) *StatementRepository {
	return &StatementRepository{db: db}
}

// Create inserts a statement header.
func (r *StatementRepository) Create(ctx context.Context, tx usecase.Transaction, s *domain.Statement) error {
	_, err := conn(r.db, tx).Exec(ctx, `
		INSERT INTO statements (`+statementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.Period, s.Carrier, s.FileName, s.Fingerprint, string(s.Status),
		s.RowCount, s.MatchedCount, timeToPgTimestamptz(s.CreatedAt), timeToPgTimestamptz(s.UpdatedAt),
	)
	return err
}

// GetByID retrieves a statement by ID.
func (r *StatementRepository) GetByID(ctx context.Context, id string) (*domain.Statement, error) {
	row := r.db.QueryRow(ctx, `SELECT `+statementColumns+` FROM statements WHERE id = $1`, id)

	s, err := scanStatement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrStatementNotFound
		}
		return nil, err
	}
	return s, nil
}

// ListByPeriod returns a period's statements in upload order.
func (r *StatementRepository) ListByPeriod(ctx context.Context, period string) ([]*domain.Statement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+statementColumns+`
		FROM statements
		WHERE period = $1
		ORDER BY created_at, id`, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Statement
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateStatus moves a statement to status and records its matched row count.
func (r *StatementRepository) UpdateStatus(
	ctx context.Context,
	tx usecase.Transaction,
	id string,
	status domain.StatementStatus,
	matchedCount int,
	updatedAt time.Time,
) error {
	tag, err := conn(r.db, tx).Exec(ctx, `
		UPDATE statements
		SET status = $2, matched_count = $3, updated_at = $4
		WHERE id = $1`,
		id, string(status), matchedCount, timeToPgTimestamptz(updatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStatementNotFound
	}
	return nil
}

// SaveRows bulk-loads extracted statement rows with COPY.
func (r *StatementRepository) SaveRows(ctx context.Context, rows []*domain.CarrierStatementRow) error {
	src := make([][]any, 0, len(rows))
	for _, row := range rows {
		src = append(src, []any{
			row.StatementID,
			row.RowIndex,
			row.AccountName,
			row.BillingItem,
			decimalToNumeric(row.Commission),
			decimalToNumeric(row.InvoiceTotal),
			row.Provider,
			row.Jurisdiction,
			row.AccountNumber,
			row.BillingDescription,
			row.BillingPeriod,
		})
	}

	_, err := r.db.CopyFrom(ctx, pgx.Identifier{"statement_rows"}, statementRowColumns, pgx.CopyFromRows(src))
	return err
}

// DeleteRows removes a statement's extracted rows. Matched rows reference them, so the
// statement's matching output must be deleted first.
func (r *StatementRepository) DeleteRows(ctx context.Context, tx usecase.Transaction, statementID string) error {
	if _, err := conn(r.db, tx).Exec(ctx, `DELETE FROM statement_rows WHERE statement_id = $1`, statementID); err != nil {
		return fmt.Errorf("delete statement rows: %w", err)
	}
	return nil
}

// ListRows returns a statement's stored rows in extraction order.
func (r *StatementRepository) ListRows(ctx context.Context, statementID string) ([]*domain.CarrierStatementRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT statement_id, row_index, account_name, billing_item, commission::text, invoice_total::text,
		       provider, jurisdiction, account_number, billing_description, billing_period
		FROM statement_rows
		WHERE statement_id = $1
		ORDER BY row_index`, statementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CarrierStatementRow
	for rows.Next() {
		var (
			row                      domain.CarrierStatementRow
			commission, invoiceTotal string
		)
		if err := rows.Scan(
			&row.StatementID, &row.RowIndex, &row.AccountName, &row.BillingItem, &commission, &invoiceTotal,
			&row.Provider, &row.Jurisdiction, &row.AccountNumber, &row.BillingDescription, &row.BillingPeriod,
		); err != nil {
			return nil, err
		}
		if err := setRowAmounts(&row, commission, invoiceTotal); err != nil {
			return nil, err
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}

func scanStatement(row pgx.Row) (*domain.Statement, error) {
	var (
		s      domain.Statement
		status string
	)
	if err := row.Scan(
		&s.ID, &s.Period, &s.Carrier, &s.FileName, &s.Fingerprint, &status,
		&s.RowCount, &s.MatchedCount, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = domain.StatementStatus(status)
	return &s, nil
}

func setRowAmounts(row *domain.CarrierStatementRow, commission, invoiceTotal string) error {
	var err error
	if row.Commission, err = parseDecimal(commission); err != nil {
		return fmt.Errorf("row %s#%d commission: %w", row.StatementID, row.RowIndex, err)
	}
	if row.InvoiceTotal, err = parseDecimal(invoiceTotal); err != nil {
		return fmt.Errorf("row %s#%d invoice total: %w", row.StatementID, row.RowIndex, err)
	}
	return nil
}
