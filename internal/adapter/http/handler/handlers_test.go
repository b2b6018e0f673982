package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/commissions/internal/adapter/http/dto"
	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

type sellerStatementServiceStub struct {
	groups []*domain.SellerStatementGroup
}

func (s *sellerStatementServiceStub) ListByPeriod(ctx context.Context, period string) ([]*domain.SellerStatementGroup, error) {
	if _, err := domain.ValidatePeriod(period); err != nil {
		return nil, err
	}
	return s.groups, nil
}

func (s *sellerStatementServiceStub) GetGroup(ctx context.Context, period, name string) (*domain.SellerStatementGroup, error) {
	for _, g := range s.groups {
		if strings.EqualFold(g.RoleGroup, name) {
			return g, nil
		}
	}
	return nil, domain.ErrRoleGroupNotFound
}

type disputeServiceStub struct {
	lastInput usecase.DetectDisputesInput
}

func (s *disputeServiceStub) DetectDisputes(ctx context.Context, input usecase.DetectDisputesInput) ([]*domain.Dispute, error) {
	s.lastInput = input
	return []*domain.Dispute{{ID: "d1", Period: input.Period, Type: domain.DisputeNewAccount, Amount: 1200}}, nil
}

func (s *disputeServiceStub) ListDisputes(ctx context.Context, period string) ([]*domain.Dispute, error) {
	return nil, nil
}

type registryServiceStub struct {
	entries []domain.RegistryEntry
	err     error
}

func (s *registryServiceStub) ReplaceRegistry(ctx context.Context, entries []domain.RegistryEntry) (*usecase.RegistrySummary, error) {
	s.entries = entries
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.RegistrySummary{Records: len(entries), BillingItems: len(entries)}, nil
}

func (s *registryServiceStub) ListRegistry(ctx context.Context) ([]*domain.MasterRecord, error) {
	return domain.ParseRegistry(s.entries), nil
}

func TestSellerStatementHandler(t *testing.T) {
	h := NewSellerStatementHandler(&sellerStatementServiceStub{groups: []*domain.SellerStatementGroup{{
		ID:        "2024-05_RD1",
		Period:    "2024-05",
		RoleGroup: "RD1",
		Items: []*domain.SellerStatementItem{{
			BillingItem: "100",
			AccountName: "Acme",
			Shares:      map[domain.Role]domain.Cents{domain.RoleRD1: 2000},
			Total:       2000,
			Commission:  10000,
			RowCount:    1,
		}},
		Totals: map[domain.Role]domain.Cents{domain.RoleRD1: 2000},
		Total:  2000,
	}}})

	rec := httptest.NewRecorder()
	h.List(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"period": "2024-05"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var groups []dto.SellerStatementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, domain.Cents(2000), groups[0].Items[0].Shares[domain.RoleRD1])
	assert.Contains(t, rec.Body.String(), `"total":"20.00"`)

	rec = httptest.NewRecorder()
	h.List(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"period": "May"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Get(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"period": "2024-05", "group": "rd1"}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Get(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"period": "2024-05", "group": "ZZ"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisputeHandler_Detect(t *testing.T) {
	stub := &disputeServiceStub{}
	h := NewDisputeHandler(stub)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prior_period":"2024-04"}`))
	h.Detect(rec, withURLParams(req, map[string]string{"period": "2024-05"}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, usecase.DetectDisputesInput{Period: "2024-05", PriorPeriod: "2024-04"}, stub.lastInput)

	var disputes []dto.DisputeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &disputes))
	require.Len(t, disputes, 1)
	assert.Equal(t, "NEW_ACCOUNT", disputes[0].Type)

	rec = httptest.NewRecorder()
	h.Detect(rec, withURLParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"period": "2024-05"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, stub.lastInput.PriorPeriod, "an empty body skips the prior-period comparison")
}

func TestDisputeHandler_ListRendersEmptyArray(t *testing.T) {
	h := NewDisputeHandler(&disputeServiceStub{})

	rec := httptest.NewRecorder()
	h.List(rec, withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"period": "2024-05"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRegistryHandler_Replace(t *testing.T) {
	stub := &registryServiceStub{}
	h := NewRegistryHandler(stub)

	body := `{"entries":[{"Billing Item":"100","Account Name":"Acme","Role Code 1":"RD1","Expected %":12.5}]}`
	rec := httptest.NewRecorder()
	h.Replace(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"records":1,"billing_items":1}`, rec.Body.String())
	require.Len(t, stub.entries, 1)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []dto.MasterRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "12.5", records[0].ExpectedPercent)
	assert.Equal(t, "RD1", records[0].RoleSlots[0])

	stub.err = errors.New("copy failed")
	rec = httptest.NewRecorder()
	h.Replace(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	h.Replace(rec, httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"entries":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	ok := PingerFunc(func(ctx context.Context) error { return nil })
	down := PingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name     string
		postgres Pinger
		redis    Pinger
		status   int
		errMsg   string
	}{
		{"ready", ok, ok, http.StatusOK, ""},
		{"postgres down", down, ok, http.StatusServiceUnavailable, "postgres unhealthy"},
		{"redis down", ok, down, http.StatusServiceUnavailable, "redis unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.postgres, tt.redis)
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, decodeError(t, rec).Error)
			}
		})
	}

	rec := httptest.NewRecorder()
	NewHealthHandler(down, down).Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
