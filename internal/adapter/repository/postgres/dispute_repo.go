package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iho/commissions/internal/domain"
)

var disputeColumns = []string{
	"id", "period", "type", "statement_id", "account_name", "billing_item", "provider",
	"amount", "prior_amount", "explanation", "detected_at",
}

// DisputeRepository implements usecase.DisputeRepository.
type DisputeRepository struct {
	db DB
}

// NewDisputeRepository creates a new DisputeRepository.
func NewDisputeRepository(db DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// DeleteByPeriod removes every dispute recorded for period.
func (r *DisputeRepository) DeleteByPeriod(ctx context.Context, period string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM disputes WHERE period = $1`, period)
	return err
}

// Save bulk-loads disputes with COPY.
func (r *DisputeRepository) Save(ctx context.Context, disputes []*domain.Dispute) error {
	src := make([][]any, 0, len(disputes))
	for _, d := range disputes {
		src = append(src, []any{
			d.ID, d.Period, string(d.Type), d.StatementID, d.AccountName, d.BillingItem, d.Provider,
			int64(d.Amount), int64(d.PriorAmount), d.Explanation, timeToPgTimestamptz(d.DetectedAt),
		})
	}

	_, err := r.db.CopyFrom(ctx, pgx.Identifier{"disputes"}, disputeColumns, pgx.CopyFromRows(src))
	return err
}

// ListByPeriod returns a period's disputes grouped by type.
func (r *DisputeRepository) ListByPeriod(ctx context.Context, period string) ([]*domain.Dispute, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, period, type, statement_id, account_name, billing_item, provider,
		       amount, prior_amount, explanation, detected_at
		FROM disputes
		WHERE period = $1
		ORDER BY type, billing_item, id`, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Dispute
	for rows.Next() {
		var (
			d             domain.Dispute
			typ           string
			amount, prior int64
		)
		if err := rows.Scan(
			&d.ID, &d.Period, &typ, &d.StatementID, &d.AccountName, &d.BillingItem, &d.Provider,
			&amount, &prior, &d.Explanation, &d.DetectedAt,
		); err != nil {
			return nil, err
		}
		d.Type = domain.DisputeType(typ)
		d.Amount = domain.Cents(amount)
		d.PriorAmount = domain.Cents(prior)
		out = append(out, &d)
	}
	return out, rows.Err()
}
