package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/iho/commissions/internal/domain"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// MasterRecordRepository defines data access for the master registry.
type MasterRecordRepository interface {
	DeleteAll(ctx context.Context) error
	Insert(ctx context.Context, records []*domain.MasterRecord) error
	List(ctx context.Context) ([]*domain.MasterRecord, error)
}

// StatementRepository defines data access for carrier statements and their extracted rows.
type StatementRepository interface {
	Create(ctx context.Context, tx Transaction, statement *domain.Statement) error
	GetByID(ctx context.Context, id string) (*domain.Statement, error)
	ListByPeriod(ctx context.Context, period string) ([]*domain.Statement, error)
	UpdateStatus(ctx context.Context, tx Transaction, id string, status domain.StatementStatus, matchedCount int, updatedAt time.Time) error
	SaveRows(ctx context.Context, rows []*domain.CarrierStatementRow) error
	DeleteRows(ctx context.Context, tx Transaction, statementID string) error
	ListRows(ctx context.Context, statementID string) ([]*domain.CarrierStatementRow, error)
}

// MatchRepository defines data access for matching output.
// Period listings only include rows of statements in the matched status.
type MatchRepository interface {
	SaveMatched(ctx context.Context, period string, rows []*domain.MatchedRow) error
	SaveUnmatched(ctx context.Context, period string, rows []*domain.UnmatchedRow) error
	ListByStatement(ctx context.Context, statementID string) ([]*domain.MatchedRow, error)
	ListByPeriod(ctx context.Context, period string) ([]*domain.MatchedRow, error)
	ListUnmatchedByPeriod(ctx context.Context, period string) ([]*domain.UnmatchedRow, error)
	DeleteByStatement(ctx context.Context, tx Transaction, statementID string) error
}

// SellerStatementRepository defines data access for stored seller statement documents.
// ListByPeriod returns raw documents, duplicates included.
type SellerStatementRepository interface {
	ListByPeriod(ctx context.Context, period string) ([]*domain.SellerStatementGroup, error)
	Upsert(ctx context.Context, groups []*domain.SellerStatementGroup) error
	Delete(ctx context.Context, ids []string) error
}

// DisputeRepository defines data access for disputes.
type DisputeRepository interface {
	DeleteByPeriod(ctx context.Context, period string) error
	Save(ctx context.Context, disputes []*domain.Dispute) error
	ListByPeriod(ctx context.Context, period string) ([]*domain.Dispute, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
	// WithinTx runs fn in a transaction that commits when fn returns nil and rolls back
	// otherwise. ctx passed to fn carries the transaction deadline.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Retrier retries an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// PeriodLock is a held period lock.
type PeriodLock interface {
	Release(ctx context.Context) error
}

// PeriodLocker serialises aggregate mutations per processing period.
// Acquire returns domain.ErrPeriodLocked when another holder owns the period.
type PeriodLocker interface {
	Acquire(ctx context.Context, period string) (PeriodLock, error)
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete releases a key so the operation can be attempted again.
	Delete(ctx context.Context, key string) error
}
