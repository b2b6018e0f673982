package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/commissions/internal/adapter/http/handler"
	apimiddleware "github.com/iho/commissions/internal/adapter/http/middleware"
	"github.com/iho/commissions/internal/allocation"
	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_MetricsEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("commissions_rows_matched_total 0\n"))
		})
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "commissions_rows_matched_total") {
		t.Fatalf("unexpected /metrics response %d %q", rec.Code, rec.Body.String())
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1, nil)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req1.RemoteAddr = "1.2.3.4:1234"
	rec1 := httptest.NewRecorder()
	router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/health", nil)
	req2.RemoteAddr = "1.2.3.4:1234"
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be throttled, got %d", rec2.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	body := `{"carrier":"Acme Telecom","rows":[{"billing_item":"100","account_name":"Acme","commission":"12.50"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/periods/2024-05/statements/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !store.checkCalled || !store.updateCalled {
		t.Fatalf("expected idempotency store to claim and record the key")
	}
}

func TestNewRouter_PeriodParamReachesHandler(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/periods/2024-13/statements/", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected an invalid period to be rejected, got %d", rec.Code)
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"PUT /api/v1/registry/",
		"GET /api/v1/registry/",
		"POST /api/v1/periods/{period}/statements/",
		"GET /api/v1/periods/{period}/statements/",
		"DELETE /api/v1/periods/{period}/statements/{id}",
		"GET /api/v1/periods/{period}/statements/{id}/matches",
		"POST /api/v1/periods/{period}/regenerate",
		"GET /api/v1/periods/{period}/seller-statements/",
		"GET /api/v1/periods/{period}/seller-statements/{group}",
		"POST /api/v1/periods/{period}/disputes/detect",
		"GET /api/v1/periods/{period}/disputes/",
		"POST /api/v1/splits/preview",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	cfg := RouterConfig{
		HealthHandler:          &handler.HealthHandler{},
		RegistryHandler:        handler.NewRegistryHandler(stubRegistryService{}),
		StatementHandler:       handler.NewStatementHandler(stubStatementService{}),
		SellerStatementHandler: handler.NewSellerStatementHandler(stubSellerStatementService{}),
		DisputeHandler:         handler.NewDisputeHandler(stubDisputeService{}),
		Logger:                 zerolog.Nop(),
		MetricsHandler:         http.NotFoundHandler(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubRegistryService struct{}

func (stubRegistryService) ReplaceRegistry(ctx context.Context, entries []domain.RegistryEntry) (*usecase.RegistrySummary, error) {
	return &usecase.RegistrySummary{Records: len(entries)}, nil
}

func (stubRegistryService) ListRegistry(ctx context.Context) ([]*domain.MasterRecord, error) {
	return []*domain.MasterRecord{}, nil
}

type stubStatementService struct{}

func (stubStatementService) SubmitStatement(ctx context.Context, input usecase.SubmitStatementInput) (*usecase.SubmitStatementResult, error) {
	return &usecase.SubmitStatementResult{
		Statement: &domain.Statement{ID: "st1", Period: input.Period, Status: domain.StatementStatusMatched, RowCount: len(input.Rows)},
	}, nil
}

func (stubStatementService) RetractStatement(ctx context.Context, period, id string) (*usecase.RetractStatementResult, error) {
	return &usecase.RetractStatementResult{}, nil
}

func (stubStatementService) RegeneratePeriod(ctx context.Context, period string) (*usecase.RegenerateReport, error) {
	return &usecase.RegenerateReport{Period: period}, nil
}

func (stubStatementService) ListStatements(ctx context.Context, period string) ([]*domain.Statement, error) {
	if _, err := domain.ValidatePeriod(period); err != nil {
		return nil, err
	}
	return []*domain.Statement{}, nil
}

func (stubStatementService) GetStatementMatches(ctx context.Context, period, id string) ([]*domain.MatchedRow, error) {
	return []*domain.MatchedRow{}, nil
}

func (stubStatementService) PreviewSplit(amount domain.Cents, codes []string) (allocation.Result, error) {
	return allocation.Result{}, nil
}

type stubSellerStatementService struct{}

func (stubSellerStatementService) ListByPeriod(ctx context.Context, period string) ([]*domain.SellerStatementGroup, error) {
	return []*domain.SellerStatementGroup{}, nil
}

func (stubSellerStatementService) GetGroup(ctx context.Context, period, name string) (*domain.SellerStatementGroup, error) {
	return nil, domain.ErrRoleGroupNotFound
}

type stubDisputeService struct{}

func (stubDisputeService) DetectDisputes(ctx context.Context, input usecase.DetectDisputesInput) ([]*domain.Dispute, error) {
	return []*domain.Dispute{}, nil
}

func (stubDisputeService) ListDisputes(ctx context.Context, period string) ([]*domain.Dispute, error) {
	return []*domain.Dispute{}, nil
}

type stubIdempotencyStore struct {
	checkCalled  bool
	updateCalled bool
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkCalled = true
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.updateCalled = true
	return nil
}

func (s *stubIdempotencyStore) Delete(ctx context.Context, key string) error {
	return nil
}
