package budget

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voyplan/voyplan/internal/api"
	"github.com/voyplan/voyplan/internal/api/auth"
	"github.com/voyplan/voyplan/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GetBudgetHandler(w http.ResponseWriter, r *http.Request)
	UpdateBudgetHandler(w http.ResponseWriter, r *http.Request)
	GetSummaryHandler(w http.ResponseWriter, r *http.Request)
	RecalculateHandler(w http.ResponseWriter, r *http.Request)
	AddExpenseHandler(w http.ResponseWriter, r *http.Request)
	RemoveExpenseHandler(w http.ResponseWriter, r *http.Request)
	ListExpensesHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
	}
}

// pathIDs pulls the caller and trip identity every budget route needs.
func (h *HandlerImpl) pathIDs(w http.ResponseWriter, r *http.Request) (userID, tripID uuid.UUID, ok bool) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	tripID, err = uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid trip ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, tripID, true
}

// GetBudgetHandler godoc
// @Summary      Fetch the budget for a trip
// @Tags         budget
// @Security     BearerAuth
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Success      200 {object} types.Budget
// @Router       /trips/{tripID}/budget [get]
func (h *HandlerImpl) GetBudgetHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BudgetHandler").Start(r.Context(), "GetBudget")
	defer span.End()

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	budget, err := h.service.GetBudget(ctx, tripID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get budget")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Budget fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, budget)
}

// UpdateBudgetHandler godoc
// @Summary      Update the budget total and category allocations
// @Tags         budget
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Param        request body types.UpdateBudgetRequest true "budget patch"
// @Success      200 {object} types.Budget
// @Router       /trips/{tripID}/budget [put]
func (h *HandlerImpl) UpdateBudgetHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BudgetHandler").Start(r.Context(), "UpdateBudget")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateBudgetHandler"))

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	var req types.UpdateBudgetRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	budget, err := h.service.UpdateBudget(ctx, tripID, userID, req)
	if err != nil {
		l.ErrorContext(ctx, "Service failed to update budget", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update budget")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Budget updated")
	api.WriteJSONResponse(w, r, http.StatusOK, budget)
}

// GetSummaryHandler godoc
// @Summary      Budget summary with per-category breakdown
// @Tags         budget
// @Security     BearerAuth
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Success      200 {object} types.BudgetSummary
// @Router       /trips/{tripID}/budget/summary [get]
func (h *HandlerImpl) GetSummaryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BudgetHandler").Start(r.Context(), "GetSummary")
	defer span.End()

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	summary, err := h.service.GetSummary(ctx, tripID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to build summary")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Summary built")
	api.WriteJSONResponse(w, r, http.StatusOK, summary)
}

// RecalculateHandler godoc
// @Summary      Rebuild spent figures from activities and expenses
// @Tags         budget
// @Security     BearerAuth
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Success      200 {object} types.Budget
// @Router       /trips/{tripID}/budget/recalculate [post]
func (h *HandlerImpl) RecalculateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BudgetHandler").Start(r.Context(), "Recalculate")
	defer span.End()
	l := h.logger.With(slog.String("handler", "RecalculateHandler"))

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	budget, err := h.service.Recalculate(ctx, tripID, userID)
	if err != nil {
		l.ErrorContext(ctx, "Service failed to recalculate budget", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to recalculate budget")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Budget recalculated")
	api.WriteJSONResponse(w, r, http.StatusOK, budget)
}

// AddExpenseHandler godoc
// @Summary      Record an ad-hoc expense against a category
// @Tags         budget
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Param        request body types.AddExpenseRequest true "expense payload"
// @Success      201 {object} types.Expense
// @Router       /trips/{tripID}/expenses [post]
func (h *HandlerImpl) AddExpenseHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BudgetHandler").Start(r.Context(), "AddExpense")
	defer span.End()
	l := h.logger.With(slog.String("handler", "AddExpenseHandler"))

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	var req types.AddExpenseRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Category.Valid() {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Unknown expense category")
		return
	}
	if req.Amount < 0 {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Expense amount must not be negative")
		return
	}

	expense, err := h.service.AddExpense(ctx, tripID, userID, req)
	if err != nil {
		l.ErrorContext(ctx, "Service failed to add expense", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to add expense")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("expense.id", expense.ID.String()))
	span.SetStatus(codes.Ok, "Expense added")
	api.WriteJSONResponse(w, r, http.StatusCreated, expense)
}

// RemoveExpenseHandler godoc
// @Summary      Delete an expense and reverse its budget contribution
// @Tags         budget
// @Security     BearerAuth
// @Param        tripID path string true "trip ID"
// @Param        expenseID path string true "expense ID"
// @Success      204
// @Router       /trips/{tripID}/expenses/{expenseID} [delete]
func (h *HandlerImpl) RemoveExpenseHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BudgetHandler").Start(r.Context(), "RemoveExpense")
	defer span.End()
	l := h.logger.With(slog.String("handler", "RemoveExpenseHandler"))

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	expenseID, err := uuid.Parse(chi.URLParam(r, "expenseID"))
	if err != nil {
		span.SetStatus(codes.Error, "Invalid expense ID")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid expense ID format")
		return
	}
	span.SetAttributes(attribute.String("expense.id", expenseID.String()))

	if err := h.service.RemoveExpense(ctx, tripID, expenseID, userID); err != nil {
		l.ErrorContext(ctx, "Service failed to remove expense", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to remove expense")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Expense removed")
	w.WriteHeader(http.StatusNoContent)
}

// ListExpensesHandler godoc
// @Summary      List a trip's expenses, most recent first
// @Tags         budget
// @Security     BearerAuth
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Success      200 {array} types.Expense
// @Router       /trips/{tripID}/expenses [get]
func (h *HandlerImpl) ListExpensesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BudgetHandler").Start(r.Context(), "ListExpenses")
	defer span.End()

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	expenses, err := h.service.ListExpenses(ctx, tripID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list expenses")
		api.DomainErrorResponse(w, r, err)
		return
	}
	if expenses == nil {
		expenses = []*types.Expense{}
	}
	span.SetStatus(codes.Ok, "Expenses listed")
	api.WriteJSONResponse(w, r, http.StatusOK, expenses)
}
