package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/iho/commissions/internal/domain"
)

// StatementFingerprint hashes the canonical content of a statement upload.
// Two uploads of the same extracted rows for the same carrier produce the same fingerprint.
func StatementFingerprint(carrier string, rows []*domain.CarrierStatementRow) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", strings.ToLower(strings.TrimSpace(carrier)))
	for _, r := range rows {
		fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%s\n",
			domain.NormalizeBillingItem(r.BillingItem),
			domain.NormalizeAccountName(r.AccountName),
			r.Commission.String(),
			r.InvoiceTotal.String(),
			strings.TrimSpace(r.Provider),
			strings.ToUpper(strings.TrimSpace(r.Jurisdiction)),
			strings.TrimSpace(r.AccountNumber),
			strings.TrimSpace(r.BillingPeriod),
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func submissionKey(period, fingerprint string) string {
	return fmt.Sprintf("statement:%s:%s", period, fingerprint)
}
