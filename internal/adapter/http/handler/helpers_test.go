package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/iho/commissions/internal/adapter/http/dto"
	"github.com/iho/commissions/internal/domain"
)

// withURLParams attaches chi route parameters to req.
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid period", domain.ErrInvalidPeriod, http.StatusBadRequest},
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"empty statement", domain.ErrEmptyStatement, http.StatusBadRequest},
		{"statement not found", domain.ErrStatementNotFound, http.StatusNotFound},
		{"role group not found", fmt.Errorf("group %q: %w", "XX", domain.ErrRoleGroupNotFound), http.StatusNotFound},
		{"statement not active", domain.ErrStatementNotActive, http.StatusConflict},
		{"duplicate submission", fmt.Errorf("%w: matches statement st-1", domain.ErrDuplicateSubmission), http.StatusConflict},
		{"period locked", domain.ErrPeriodLocked, http.StatusLocked},
		{"allocation imbalance", domain.ErrAllocationImbalance, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("mapDomainError(%v) = %d, expected %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "bad", "details")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}

	resp := decodeError(t, rec)
	if resp.Error != "bad" || resp.Message != "details" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestDecodeJSONRejectsMalformedAndInvalidBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed", `{"rows": [`, "invalid request body"},
		{"fails validation", `{"rows": []}`, "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var v dto.SubmitStatementRequest
			if decodeJSON(rec, req, &v) {
				t.Fatalf("expected decode to fail")
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Error != tt.wantErr {
				t.Fatalf("expected %q, got %+v", tt.wantErr, resp)
			}
		})
	}
}
