package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/commissions/internal/disputes"
	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/infrastructure/metrics"
)

// DisputeUseCase runs dispute detection over stored matching output.
type DisputeUseCase struct {
	masterRepo  MasterRecordRepository
	matchRepo   MatchRepository
	disputeRepo DisputeRepository
	detector    *disputes.Detector
	idGen       IDGenerator
	writer      *ChunkWriter
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// NewDisputeUseCase creates a new DisputeUseCase.
func NewDisputeUseCase(
	masterRepo MasterRecordRepository,
	matchRepo MatchRepository,
	disputeRepo DisputeRepository,
	detector *disputes.Detector,
	idGen IDGenerator,
	writer *ChunkWriter,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *DisputeUseCase {
	if detector == nil {
		detector = disputes.NewDetector()
	}
	if writer == nil {
		writer = NewChunkWriter(DefaultWriteBatchSize, DefaultWriteBatchPacing, nil, metrics)
	}
	return &DisputeUseCase{
		masterRepo:  masterRepo,
		matchRepo:   matchRepo,
		disputeRepo: disputeRepo,
		detector:    detector,
		idGen:       idGen,
		writer:      writer,
		logger:      logger,
		metrics:     metrics,
	}
}

// DetectDisputesInput selects the period to examine. PriorPeriod is optional; when set,
// changed-rate disputes compare against its matched rows.
type DetectDisputesInput struct {
	Period      string
	PriorPeriod string
}

// DetectDisputes replaces the period's disputes with a fresh detection run.
func (uc *DisputeUseCase) DetectDisputes(ctx context.Context, input DetectDisputesInput) ([]*domain.Dispute, error) {
	period, err := domain.ValidatePeriod(input.Period)
	if err != nil {
		return nil, err
	}

	in := disputes.Input{Period: period}

	if in.Matched, err = uc.matchRepo.ListByPeriod(ctx, period); err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}
	if in.Unmatched, err = uc.matchRepo.ListUnmatchedByPeriod(ctx, period); err != nil {
		return nil, fmt.Errorf("load unmatched rows: %w", err)
	}
	if in.Registry, err = uc.masterRepo.List(ctx); err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	if input.PriorPeriod != "" {
		prior, err := domain.ValidatePeriod(input.PriorPeriod)
		if err != nil {
			return nil, err
		}
		rows, err := uc.matchRepo.ListByPeriod(ctx, prior)
		if err != nil {
			return nil, fmt.Errorf("load prior matches: %w", err)
		}
		// An empty prior period still enables comparison, with nothing in common.
		if rows == nil {
			rows = []*domain.MatchedRow{}
		}
		in.Prior = rows
	}

	found := uc.detector.Detect(in)
	for _, d := range found {
		d.ID = uc.idGen.Generate()
	}

	if err := uc.disputeRepo.DeleteByPeriod(ctx, period); err != nil {
		return nil, fmt.Errorf("clear disputes: %w", err)
	}
	if err := WriteInChunks(ctx, uc.writer, "disputes", found, uc.disputeRepo.Save); err != nil {
		return nil, err
	}

	counts := make(map[domain.DisputeType]int)
	for _, d := range found {
		counts[d.Type]++
	}
	if uc.metrics != nil {
		for typ, n := range counts {
			uc.metrics.DisputesDetected.WithLabelValues(string(typ)).Add(float64(n))
		}
	}

	uc.logger.Info().
		Str("period", period).
		Str("prior_period", input.PriorPeriod).
		Int("disputes", len(found)).
		Int("new_account", counts[domain.DisputeNewAccount]).
		Int("changed_rate", counts[domain.DisputeChangedRate]).
		Msg("disputes detected")

	return found, nil
}

// ListDisputes returns the stored disputes for a period.
func (uc *DisputeUseCase) ListDisputes(ctx context.Context, period string) ([]*domain.Dispute, error) {
	period, err := domain.ValidatePeriod(period)
	if err != nil {
		return nil, err
	}
	return uc.disputeRepo.ListByPeriod(ctx, period)
}
