package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long statement fingerprints suppress resubmission
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultWriteBatchSize caps the records submitted in one chunked write
	DefaultWriteBatchSize = 500

	// DefaultWriteBatchPacing is the pause between chunk submissions
	DefaultWriteBatchPacing = 200 * time.Millisecond

	// DefaultRegenerateConcurrency bounds concurrent statement re-matching during regeneration
	DefaultRegenerateConcurrency = 4

	// DefaultSellerStatementCacheTTL is how long resolved seller statements stay cached
	DefaultSellerStatementCacheTTL = 5 * time.Minute
)
