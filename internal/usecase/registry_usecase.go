package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/matching"
)

// RegistryUseCase maintains the master registry.
type RegistryUseCase struct {
	masterRepo MasterRecordRepository
	writer     *ChunkWriter
	vocab      matching.CodeVocabulary
	logger     zerolog.Logger
}

// NewRegistryUseCase creates a new RegistryUseCase. vocab decides which role codes count as known
// when summarising the registry.
func NewRegistryUseCase(masterRepo MasterRecordRepository, writer *ChunkWriter, vocab matching.CodeVocabulary, logger zerolog.Logger) *RegistryUseCase {
	if writer == nil {
		writer = NewChunkWriter(DefaultWriteBatchSize, DefaultWriteBatchPacing, nil, nil)
	}
	return &RegistryUseCase{
		masterRepo: masterRepo,
		writer:     writer,
		vocab:      vocab,
		logger:     logger,
	}
}

// RegistrySummary describes a loaded registry.
type RegistrySummary struct {
	Records      int
	BillingItems int
}

// ReplaceRegistry swaps the stored registry for entries, preserving their order.
// Changes reach existing seller statements on the next regeneration of each period.
func (uc *RegistryUseCase) ReplaceRegistry(ctx context.Context, entries []domain.RegistryEntry) (*RegistrySummary, error) {
	records := domain.ParseRegistry(entries)

	if err := uc.masterRepo.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("clear registry: %w", err)
	}
	if err := WriteInChunks(ctx, uc.writer, "master_records", records, uc.masterRepo.Insert); err != nil {
		return nil, err
	}

	index := matching.BuildIndex(records, uc.vocab)
	summary := &RegistrySummary{Records: len(records), BillingItems: index.Keys()}

	uc.logger.Info().
		Int("records", summary.Records).
		Int("billing_items", summary.BillingItems).
		Msg("master registry replaced")

	return summary, nil
}

// ListRegistry returns the stored registry in load order.
func (uc *RegistryUseCase) ListRegistry(ctx context.Context) ([]*domain.MasterRecord, error) {
	return uc.masterRepo.List(ctx)
}
