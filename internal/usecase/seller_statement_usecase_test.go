package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
	"github.com/iho/commissions/internal/usecase/mocks"
)

func sellerDoc(id, group string, total domain.Cents, updated time.Time) *domain.SellerStatementGroup {
	return &domain.SellerStatementGroup{
		ID:        id,
		Period:    period,
		RoleGroup: group,
		Total:     total,
		Totals:    map[domain.Role]domain.Cents{},
		UpdatedAt: updated,
	}
}

func TestSellerStatementUseCase_ListByPeriodResolvesDuplicates(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := newMemSellerRepo(
		sellerDoc(domain.SellerStatementID(period, "RD1"), "RD1", 100, now.Add(-time.Hour)),
		sellerDoc(domain.LegacySellerStatementID(period, "RD1"), "RD1", 900, now),
		sellerDoc(domain.LegacySellerStatementID(period, "PA"), "PA", 50, now),
	)
	uc := usecase.NewSellerStatementUseCase(repo, nil, nil, 0, zerolog.Nop())

	groups, err := uc.ListByPeriod(context.Background(), period)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	byName := map[string]*domain.SellerStatementGroup{}
	for _, g := range groups {
		byName[g.RoleGroup] = g
	}
	assert.Equal(t, domain.Cents(100), byName["RD1"].Total, "canonical document wins over a newer legacy one")
	assert.Equal(t, "2024-05_PA", byName["PA"].ID, "lone legacy documents are served under the canonical ID")
}

func TestSellerStatementUseCase_ListByPeriodUsesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cached := []*domain.SellerStatementGroup{sellerDoc("2024-05_SE", "SE", 42, time.Time{})}
	data, err := json.Marshal(cached)
	require.NoError(t, err)

	cache := mocks.NewMockCache(ctrl)
	cache.EXPECT().Get(gomock.Any(), "seller-statements:2024-05:generation").Return([]byte("7"), nil)
	cache.EXPECT().Get(gomock.Any(), "seller-statements:2024-05:7").Return(data, nil)

	repo := mocks.NewMockSellerStatementRepository(ctrl)

	uc := usecase.NewSellerStatementUseCase(repo, nil, cache, time.Minute, zerolog.Nop())
	groups, err := uc.ListByPeriod(context.Background(), period)

	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, domain.Cents(42), groups[0].Total)
}

func TestSellerStatementUseCase_ListByPeriodFillsCacheOnMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockCache(ctrl)
	cache.EXPECT().Get(gomock.Any(), "seller-statements:2024-05:generation").Return(nil, usecase.ErrCacheMiss)
	cache.EXPECT().Get(gomock.Any(), "seller-statements:2024-05:0").Return(nil, usecase.ErrCacheMiss)
	cache.EXPECT().Set(gomock.Any(), "seller-statements:2024-05:0", gomock.Any(), time.Minute).
		DoAndReturn(func(ctx context.Context, key string, value []byte, ttl time.Duration) error {
			var groups []*domain.SellerStatementGroup
			require.NoError(t, json.Unmarshal(value, &groups))
			require.Len(t, groups, 1)
			assert.Equal(t, domain.Cents(7), groups[0].Total)
			return nil
		})

	repo := mocks.NewMockSellerStatementRepository(ctrl)
	repo.EXPECT().ListByPeriod(gomock.Any(), period).Return([]*domain.SellerStatementGroup{
		sellerDoc("2024-05_MA", "MA", 7, time.Time{}),
	}, nil)

	uc := usecase.NewSellerStatementUseCase(repo, nil, cache, time.Minute, zerolog.Nop())
	_, err := uc.ListByPeriod(context.Background(), period)
	require.NoError(t, err)
}

func TestSellerStatementUseCase_ListByPeriodSurvivesCacheErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cache := mocks.NewMockCache(ctrl)
	cache.EXPECT().Get(gomock.Any(), "seller-statements:2024-05:generation").Return([]byte("3"), nil)
	cache.EXPECT().Get(gomock.Any(), "seller-statements:2024-05:3").Return(nil, errors.New("redis down"))
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	uc := usecase.NewSellerStatementUseCase(newMemSellerRepo(), nil, cache, 0, zerolog.Nop())
	groups, err := uc.ListByPeriod(context.Background(), period)

	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestSellerStatementUseCase_ListByPeriodBypassesCacheWithoutGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Without a readable generation nothing is read from or written to the cache.
	cache := mocks.NewMockCache(ctrl)
	cache.EXPECT().Get(gomock.Any(), "seller-statements:2024-05:generation").Return(nil, errors.New("redis down"))

	repo := newMemSellerRepo(sellerDoc("2024-05_RD1", "RD1", 10, time.Time{}))
	uc := usecase.NewSellerStatementUseCase(repo, nil, cache, 0, zerolog.Nop())
	groups, err := uc.ListByPeriod(context.Background(), period)

	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, domain.Cents(10), groups[0].Total)
}

// racingSellerRepo runs during once, after the documents were read and before they are returned.
type racingSellerRepo struct {
	usecase.SellerStatementRepository
	during func()
}

func (r *racingSellerRepo) ListByPeriod(ctx context.Context, period string) ([]*domain.SellerStatementGroup, error) {
	docs, err := r.SellerStatementRepository.ListByPeriod(ctx, period)
	if r.during != nil {
		during := r.during
		r.during = nil
		during()
	}
	return docs, err
}

func TestSellerStatementUseCase_ReadRacingMergeIsNotServedFromCache(t *testing.T) {
	h := newHarness(registry())
	submit(t, h, row("100", "Acme", "100.00"))

	repo := &racingSellerRepo{SellerStatementRepository: h.sellers}
	repo.during = func() { submit(t, h, row("100", "Acme", "50.00")) }
	uc := usecase.NewSellerStatementUseCase(repo, nil, h.cache, time.Minute, zerolog.Nop())

	stale, err := uc.GetGroup(context.Background(), period, "RD1")
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(2000), stale.Total, "the racing read saw the documents before the merge")

	fresh, err := uc.GetGroup(context.Background(), period, "RD1")
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(3000), fresh.Total, "the merge moved the cache generation past the racing read")

	cached, err := uc.GetGroup(context.Background(), period, "RD1")
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(3000), cached.Total)
}

func TestSellerStatementUseCase_GetGroup(t *testing.T) {
	repo := newMemSellerRepo(sellerDoc("2024-05_RD1", "RD1", 10, time.Time{}))
	uc := usecase.NewSellerStatementUseCase(repo, nil, nil, 0, zerolog.Nop())

	g, err := uc.GetGroup(context.Background(), period, "rd1")
	require.NoError(t, err)
	assert.Equal(t, domain.Cents(10), g.Total)

	empty, err := uc.GetGroup(context.Background(), period, "CS")
	require.NoError(t, err)
	assert.Equal(t, "2024-05_CS", empty.ID)
	assert.Empty(t, empty.Items)

	_, err = uc.GetGroup(context.Background(), period, "NOPE")
	assert.ErrorIs(t, err, domain.ErrRoleGroupNotFound)

	_, err = uc.GetGroup(context.Background(), "2024/05", "CS")
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}
