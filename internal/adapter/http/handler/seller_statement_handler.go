package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/commissions/internal/adapter/http/dto"
	"github.com/iho/commissions/internal/domain"
)

// SellerStatementService defines the behavior needed by SellerStatementHandler.
type SellerStatementService interface {
	ListByPeriod(ctx context.Context, period string) ([]*domain.SellerStatementGroup, error)
	GetGroup(ctx context.Context, period, name string) (*domain.SellerStatementGroup, error)
}

// SellerStatementHandler serves per role group seller statements.
type SellerStatementHandler struct {
	sellerUC SellerStatementService
}

// NewSellerStatementHandler creates a new SellerStatementHandler.
func NewSellerStatementHandler(sellerUC SellerStatementService) *SellerStatementHandler {
	return &SellerStatementHandler{sellerUC: sellerUC}
}

// List returns every seller statement of a period.
func (h *SellerStatementHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.sellerUC.ListByPeriod(r.Context(), chi.URLParam(r, "period"))
	if err != nil {
		writeDomainError(w, "failed to list seller statements", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SellerStatementsFromDomain(groups))
}

// Get returns one role group's seller statement.
func (h *SellerStatementHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, err := h.sellerUC.GetGroup(r.Context(), chi.URLParam(r, "period"), chi.URLParam(r, "group"))
	if err != nil {
		writeDomainError(w, "failed to get seller statement", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SellerStatementFromDomain(group))
}
