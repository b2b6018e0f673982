package dto

import (
	"fmt"

	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

// ReplaceRegistryRequest replaces the master registry with Entries.
type ReplaceRegistryRequest struct {
	Entries []domain.RegistryEntry `json:"entries" validate:"required,min=1"`
}

// SubmitStatementRequest represents one extracted carrier statement.
type SubmitStatementRequest struct {
	Carrier  string                `json:"carrier"   validate:"max=200"`
	FileName string                `json:"file_name" validate:"max=500"`
	Rows     []StatementRowRequest `json:"rows"      validate:"required,min=1,dive"`
}

// StatementRowRequest is one extracted row. Amounts may be JSON numbers or carrier
// formatted strings such as "$1,234.50" or "(12.00)".
type StatementRowRequest struct {
	AccountName        string `json:"account_name"`
	BillingItem        string `json:"billing_item"`
	Commission         any    `json:"commission" validate:"required"`
	InvoiceTotal       any    `json:"invoice_total,omitempty"`
	Provider           string `json:"provider"`
	Jurisdiction       string `json:"jurisdiction"`
	AccountNumber      string `json:"account_number"`
	BillingDescription string `json:"billing_description"`
	BillingPeriod      string `json:"billing_period"`
}

// ToUseCaseInput converts to use case input, parsing every amount.
func (r *SubmitStatementRequest) ToUseCaseInput(period string) (usecase.SubmitStatementInput, error) {
	rows := make([]*domain.CarrierStatementRow, len(r.Rows))
	for i, row := range r.Rows {
		commission, err := domain.ParseAmountValue(row.Commission)
		if err != nil {
			return usecase.SubmitStatementInput{}, fmt.Errorf("rows[%d].commission: %w", i, err)
		}

		out := &domain.CarrierStatementRow{
			AccountName:        row.AccountName,
			BillingItem:        row.BillingItem,
			Commission:         commission,
			Provider:           row.Provider,
			Jurisdiction:       row.Jurisdiction,
			AccountNumber:      row.AccountNumber,
			BillingDescription: row.BillingDescription,
			BillingPeriod:      row.BillingPeriod,
		}
		if row.InvoiceTotal != nil {
			if out.InvoiceTotal, err = domain.ParseAmountValue(row.InvoiceTotal); err != nil {
				return usecase.SubmitStatementInput{}, fmt.Errorf("rows[%d].invoice_total: %w", i, err)
			}
		}
		rows[i] = out
	}

	return usecase.SubmitStatementInput{
		Period:   period,
		Carrier:  r.Carrier,
		FileName: r.FileName,
		Rows:     rows,
	}, nil
}

// DetectDisputesRequest runs dispute detection, optionally comparing against PriorPeriod.
type DetectDisputesRequest struct {
	PriorPeriod string `json:"prior_period,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *DetectDisputesRequest) ToUseCaseInput(period string) usecase.DetectDisputesInput {
	return usecase.DetectDisputesInput{Period: period, PriorPeriod: r.PriorPeriod}
}

// SplitPreviewRequest asks for the role split of Amount under Codes.
type SplitPreviewRequest struct {
	Amount any      `json:"amount" validate:"required"`
	Codes  []string `json:"codes"  validate:"max=4"`
}

// Cents parses the requested amount.
func (r *SplitPreviewRequest) Cents() (domain.Cents, error) {
	d, err := domain.ParseAmountValue(r.Amount)
	if err != nil {
		return 0, err
	}
	return domain.CentsFromDecimal(d), nil
}
