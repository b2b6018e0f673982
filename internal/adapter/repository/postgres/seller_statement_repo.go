package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/commissions/internal/domain"
)

const upsertSellerStatement = `
	INSERT INTO seller_statements (id, period, role_group, items, totals, total, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE
	SET items = EXCLUDED.items,
	    totals = EXCLUDED.totals,
	    total = EXCLUDED.total,
	    updated_at = EXCLUDED.updated_at`

// SellerStatementRepository implements usecase.SellerStatementRepository.
// Items and totals are stored as JSONB documents keyed by the aggregate ID.
type SellerStatementRepository struct {
	db DB
}

// NewSellerStatementRepository creates a new SellerStatementRepository.
func NewSellerStatementRepository(db DB) *SellerStatementRepository {
	return &SellerStatementRepository{db: db}
}

// ListByPeriod returns every stored document for period, legacy IDs included.
func (r *SellerStatementRepository) ListByPeriod(ctx context.Context, period string) ([]*domain.SellerStatementGroup, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, period, role_group, items, totals, total, updated_at
		FROM seller_statements
		WHERE period = $1
		ORDER BY role_group, id`, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SellerStatementGroup
	for rows.Next() {
		var (
			g             domain.SellerStatementGroup
			items, totals []byte
			total         int64
		)
		if err := rows.Scan(&g.ID, &g.Period, &g.RoleGroup, &items, &totals, &total, &g.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &g.Items); err != nil {
			return nil, fmt.Errorf("decode items of %s: %w", g.ID, err)
		}
		if err := json.Unmarshal(totals, &g.Totals); err != nil {
			return nil, fmt.Errorf("decode totals of %s: %w", g.ID, err)
		}
		if g.Totals == nil {
			g.Totals = map[domain.Role]domain.Cents{}
		}
		g.Total = domain.Cents(total)
		out = append(out, &g)
	}
	return out, rows.Err()
}

// Upsert writes groups in a single batch round trip.
func (r *SellerStatementRepository) Upsert(ctx context.Context, groups []*domain.SellerStatementGroup) error {
	if len(groups) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, g := range groups {
		items := g.Items
		if items == nil {
			items = []*domain.SellerStatementItem{}
		}
		itemsJSON, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("encode items of %s: %w", g.ID, err)
		}
		totalsJSON, err := json.Marshal(g.Totals)
		if err != nil {
			return fmt.Errorf("encode totals of %s: %w", g.ID, err)
		}
		batch.Queue(upsertSellerStatement,
			g.ID, g.Period, g.RoleGroup, itemsJSON, totalsJSON, int64(g.Total), timeToPgTimestamptz(g.UpdatedAt))
	}

	br := r.db.SendBatch(ctx, batch)
	for _, g := range groups {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert seller statement %s: %w", g.ID, err)
		}
	}
	return br.Close()
}

// Delete removes documents by ID.
func (r *SellerStatementRepository) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM seller_statements WHERE id = ANY($1)`, ids)
	return err
}
