package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/commissions/internal/adapter/http/dto"
	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

// DisputeService defines the behavior needed by DisputeHandler.
type DisputeService interface {
	DetectDisputes(ctx context.Context, input usecase.DetectDisputesInput) ([]*domain.Dispute, error)
	ListDisputes(ctx context.Context, period string) ([]*domain.Dispute, error)
}

// DisputeHandler handles dispute HTTP requests.
type DisputeHandler struct {
	disputeUC DisputeService
}

// NewDisputeHandler creates a new DisputeHandler.
func NewDisputeHandler(disputeUC DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeUC: disputeUC}
}

// Detect reruns dispute detection for a period. An empty body skips the prior-period comparison.
func (h *DisputeHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req dto.DetectDisputesRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	disputes, err := h.disputeUC.DetectDisputes(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "period")))
	if err != nil {
		writeDomainError(w, "failed to detect disputes", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DisputesFromDomain(disputes))
}

// List returns the disputes stored for a period.
func (h *DisputeHandler) List(w http.ResponseWriter, r *http.Request) {
	disputes, err := h.disputeUC.ListDisputes(r.Context(), chi.URLParam(r, "period"))
	if err != nil {
		writeDomainError(w, "failed to list disputes", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DisputesFromDomain(disputes))
}
