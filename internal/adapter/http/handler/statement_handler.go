package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/commissions/internal/adapter/http/dto"
	"github.com/iho/commissions/internal/allocation"
	"github.com/iho/commissions/internal/domain"
	"github.com/iho/commissions/internal/usecase"
)

// StatementService defines the behavior needed by StatementHandler.
type StatementService interface {
	SubmitStatement(ctx context.Context, input usecase.SubmitStatementInput) (*usecase.SubmitStatementResult, error)
	RetractStatement(ctx context.Context, period, statementID string) (*usecase.RetractStatementResult, error)
	RegeneratePeriod(ctx context.Context, period string) (*usecase.RegenerateReport, error)
	ListStatements(ctx context.Context, period string) ([]*domain.Statement, error)
	GetStatementMatches(ctx context.Context, period, statementID string) ([]*domain.MatchedRow, error)
	PreviewSplit(amount domain.Cents, codes []string) (allocation.Result, error)
}

// StatementHandler handles carrier statement HTTP requests.
type StatementHandler struct {
	statementUC StatementService
}

// NewStatementHandler creates a new StatementHandler.
func NewStatementHandler(statementUC StatementService) *StatementHandler {
	return &StatementHandler{statementUC: statementUC}
}

// Submit matches an uploaded statement and merges it into the period's seller statements.
func (h *StatementHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitStatementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid statement rows", err.Error())
		return
	}

	res, err := h.statementUC.SubmitStatement(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to submit statement", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.SubmitStatementFromUseCase(res))
}

// Retract withdraws a statement from the period.
func (h *StatementHandler) Retract(w http.ResponseWriter, r *http.Request) {
	res, err := h.statementUC.RetractStatement(r.Context(), chi.URLParam(r, "period"), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to retract statement", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RetractStatementFromUseCase(res))
}

// List lists a period's statements.
func (h *StatementHandler) List(w http.ResponseWriter, r *http.Request) {
	statements, err := h.statementUC.ListStatements(r.Context(), chi.URLParam(r, "period"))
	if err != nil {
		writeDomainError(w, "failed to list statements", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatementsFromDomain(statements))
}

// Matches lists a statement's matched rows.
func (h *StatementHandler) Matches(w http.ResponseWriter, r *http.Request) {
	rows, err := h.statementUC.GetStatementMatches(r.Context(), chi.URLParam(r, "period"), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get statement matches", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MatchedRowsFromDomain(rows))
}

// Regenerate rebuilds the period's seller statements from every active statement.
func (h *StatementHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	report, err := h.statementUC.RegeneratePeriod(r.Context(), chi.URLParam(r, "period"))
	if err != nil {
		writeDomainError(w, "failed to regenerate period", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RegenerateReportFromUseCase(report))
}

// PreviewSplit runs the allocator without persisting anything.
func (h *StatementHandler) PreviewSplit(w http.ResponseWriter, r *http.Request) {
	var req dto.SplitPreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	amount, err := req.Cents()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	res, err := h.statementUC.PreviewSplit(amount, req.Codes)
	if err != nil {
		writeDomainError(w, "failed to split amount", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SplitPreviewFromResult(amount, res))
}
