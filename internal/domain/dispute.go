package domain

import "time"

// DisputeType tags the anomaly a dispute reports.
type DisputeType string

const (
	DisputeNewAccount      DisputeType = "NEW_ACCOUNT"
	DisputeZero            DisputeType = "ZERO"
	DisputeChargeback      DisputeType = "CHARGEBACK"
	DisputeCanceledMissing DisputeType = "CANCELED_MISSING"
	DisputeChangedRate     DisputeType = "CHANGED_RATE"
)

// Dispute is an anomaly between statement data and master or prior-period data, surfaced for review.
type Dispute struct {
	ID          string
	Period      string
	Type        DisputeType
	StatementID string
	AccountName string
	BillingItem string
	Provider    string
	Amount      Cents
	PriorAmount Cents
	Explanation string
	DetectedAt  time.Time
}
