package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/commissions/internal/aggregation"
	"github.com/iho/commissions/internal/domain"
)

// SellerStatementUseCase serves seller statements with duplicate documents resolved.
type SellerStatementUseCase struct {
	sellerRepo SellerStatementRepository
	aggregator *aggregation.Aggregator
	cache      Cache
	cacheTTL   time.Duration
	logger     zerolog.Logger
}

// NewSellerStatementUseCase creates a new SellerStatementUseCase. cache may be nil.
func NewSellerStatementUseCase(
	sellerRepo SellerStatementRepository,
	aggregator *aggregation.Aggregator,
	cache Cache,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) *SellerStatementUseCase {
	if aggregator == nil {
		aggregator = aggregation.New(nil)
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultSellerStatementCacheTTL
	}
	return &SellerStatementUseCase{
		sellerRepo: sellerRepo,
		aggregator: aggregator,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// ListByPeriod returns one document per role group for the period.
func (uc *SellerStatementUseCase) ListByPeriod(ctx context.Context, period string) ([]*domain.SellerStatementGroup, error) {
	period, err := domain.ValidatePeriod(period)
	if err != nil {
		return nil, err
	}

	key, cacheable := uc.cacheKey(ctx, period)
	if cacheable {
		if groups, ok := uc.fromCache(ctx, key); ok {
			return groups, nil
		}
	}

	docs, err := uc.sellerRepo.ListByPeriod(ctx, period)
	if err != nil {
		return nil, err
	}

	groups, duplicates := aggregation.ResolveDuplicates(period, docs)
	for _, d := range duplicates {
		if d.Documents > 1 {
			uc.logger.Warn().
				Str("period", period).
				Str("role_group", d.RoleGroup).
				Str("kept_id", d.KeptID).
				Strs("dropped_ids", d.DroppedIDs).
				Msg("duplicate seller statement documents")
		}
	}

	if cacheable {
		uc.toCache(ctx, key, groups)
	}
	return groups, nil
}

// GetGroup returns the document for one role group. A configured group with no stored
// document yields an empty statement.
func (uc *SellerStatementUseCase) GetGroup(ctx context.Context, period, name string) (*domain.SellerStatementGroup, error) {
	group, err := uc.aggregator.Group(name)
	if err != nil {
		return nil, err
	}

	groups, err := uc.ListByPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if strings.EqualFold(g.RoleGroup, group.Name) {
			return g, nil
		}
	}

	period = strings.TrimSpace(period)
	return &domain.SellerStatementGroup{
		ID:        domain.SellerStatementID(period, group.Name),
		Period:    period,
		RoleGroup: group.Name,
		Items:     []*domain.SellerStatementItem{},
		Totals:    map[domain.Role]domain.Cents{},
	}, nil
}

// RoleGroups returns the configured role groups.
func (uc *SellerStatementUseCase) RoleGroups() []domain.RoleGroup {
	return uc.aggregator.Groups()
}

func (uc *SellerStatementUseCase) cacheKey(ctx context.Context, period string) (string, bool) {
	if uc.cache == nil {
		return "", false
	}
	generation, ok, err := currentGeneration(ctx, uc.cache, period)
	if err != nil {
		uc.logger.Warn().Err(err).Str("period", period).Msg("seller statement cache generation unreadable")
	}
	if !ok {
		return "", false
	}
	return sellerStatementCacheKey(period, generation), true
}

func (uc *SellerStatementUseCase) fromCache(ctx context.Context, key string) ([]*domain.SellerStatementGroup, bool) {
	if uc.cache == nil {
		return nil, false
	}

	data, err := uc.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			uc.logger.Warn().Err(err).Str("key", key).Msg("seller statement cache read failed")
		}
		return nil, false
	}

	var groups []*domain.SellerStatementGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return nil, false
	}
	return groups, true
}

func (uc *SellerStatementUseCase) toCache(ctx context.Context, key string, groups []*domain.SellerStatementGroup) {
	if uc.cache == nil {
		return
	}

	data, err := json.Marshal(groups)
	if err != nil {
		uc.logger.Warn().Err(fmt.Errorf("encode seller statements: %w", err)).Msg("skipping cache write")
		return
	}
	if err := uc.cache.Set(ctx, key, data, uc.cacheTTL); err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("seller statement cache write failed")
	}
}
