package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/commissions/internal/domain"
)

var masterRecordColumns = []string{
	"seq", "id", "billing_item", "billing_key", "account_name", "provider", "notes",
	"jurisdiction", "expected_percent", "status", "cancel_date", "role_slots",
	"legacy_role_slots", "raw",
}

// MasterRecordRepository implements usecase.MasterRecordRepository.
type MasterRecordRepository struct {
	db DB
}

// NewMasterRecordRepository creates a new MasterRecordRepository.
func NewMasterRecordRepository(db DB) *MasterRecordRepository {
	return &MasterRecordRepository{db: db}
}

// DeleteAll clears the registry ahead of a full reload.
func (r *MasterRecordRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM master_records`)
	return err
}

// Insert bulk-loads records with COPY.
func (r *MasterRecordRepository) Insert(ctx context.Context, records []*domain.MasterRecord) error {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		entry := rec.Raw
		if entry == nil {
			entry = domain.RegistryEntry{}
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode master record %s: %w", rec.ID, err)
		}
		rows = append(rows, []any{
			rec.Seq,
			rec.ID,
			rec.BillingItem,
			domain.NormalizeBillingItem(rec.BillingItem),
			rec.AccountName,
			rec.Provider,
			rec.Notes,
			rec.Jurisdiction,
			decimalToNumeric(rec.ExpectedPercent),
			rec.Status,
			rec.CancelDate,
			rec.RoleSlots[:],
			rec.LegacyRoleSlots[:],
			raw,
		})
	}

	_, err := r.db.CopyFrom(ctx, pgx.Identifier{"master_records"}, masterRecordColumns, pgx.CopyFromRows(rows))
	return err
}

// List returns the registry in load order.
func (r *MasterRecordRepository) List(ctx context.Context) ([]*domain.MasterRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT seq, id, billing_item, account_name, provider, notes, jurisdiction,
		       expected_percent::text, status, cancel_date, role_slots, legacy_role_slots, raw
		FROM master_records
		ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.MasterRecord
	for rows.Next() {
		var (
			rec                domain.MasterRecord
			pct                string
			slots, legacySlots []string
			raw                []byte
		)
		if err := rows.Scan(
			&rec.Seq, &rec.ID, &rec.BillingItem, &rec.AccountName, &rec.Provider, &rec.Notes,
			&rec.Jurisdiction, &pct, &rec.Status, &rec.CancelDate, &slots, &legacySlots, &raw,
		); err != nil {
			return nil, err
		}

		if rec.ExpectedPercent, err = parseDecimal(pct); err != nil {
			return nil, fmt.Errorf("master record %s expected percent: %w", rec.ID, err)
		}
		copy(rec.RoleSlots[:], slots)
		copy(rec.LegacyRoleSlots[:], legacySlots)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.Raw); err != nil {
				return nil, fmt.Errorf("decode master record %s: %w", rec.ID, err)
			}
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}
