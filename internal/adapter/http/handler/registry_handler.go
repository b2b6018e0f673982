package handler

import (
	"context"
	"net/http"

	"github.com/iho/commissions/internal/adapter/http/dto"
	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

// RegistryService defines the behavior needed by RegistryHandler.
type RegistryService interface {
	ReplaceRegistry(ctx context.Context, entries []domain.RegistryEntry) (*usecase.RegistrySummary, error)
	ListRegistry(ctx context.Context) ([]*domain.MasterRecord, error)
}

// RegistryHandler handles master registry HTTP requests.
type RegistryHandler struct {
	registryUC RegistryService
}

// NewRegistryHandler creates a new RegistryHandler.
func NewRegistryHandler(registryUC RegistryService) *RegistryHandler {
	return &RegistryHandler{registryUC: registryUC}
}

// Replace swaps the whole master registry for the posted entries.
func (h *RegistryHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req dto.ReplaceRegistryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	summary, err := h.registryUC.ReplaceRegistry(r.Context(), req.Entries)
	if err != nil {
		writeDomainError(w, "failed to replace registry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RegistrySummaryFromUseCase(summary))
}

// List returns the typed registry records in load order.
func (h *RegistryHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.registryUC.ListRegistry(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list registry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MasterRecordsFromDomain(records))
}
