package budget

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voyplan/voyplan/app/observability/metrics"
	"github.com/voyplan/voyplan/internal/api/trip"
	"github.com/voyplan/voyplan/internal/types"
)

var _ Service = (*ServiceImpl)(nil)
var _ trip.Summarizer = (*ServiceImpl)(nil)

type Service interface {
	GetBudget(ctx context.Context, tripID, userID uuid.UUID) (*types.Budget, error)
	UpdateBudget(ctx context.Context, tripID, userID uuid.UUID, req types.UpdateBudgetRequest) (*types.Budget, error)
	GetSummary(ctx context.Context, tripID, userID uuid.UUID) (*types.BudgetSummary, error)
	Recalculate(ctx context.Context, tripID, userID uuid.UUID) (*types.Budget, error)
	AddExpense(ctx context.Context, tripID, userID uuid.UUID, req types.AddExpenseRequest) (*types.Expense, error)
	RemoveExpense(ctx context.Context, tripID, expenseID, userID uuid.UUID) error
	ListExpenses(ctx context.Context, tripID, userID uuid.UUID) ([]*types.Expense, error)
	CalculateSummary(ctx context.Context, tripID uuid.UUID) (*types.BudgetSummary, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	trips  trip.Repository
}

func NewService(repo Repository, trips trip.Repository, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		trips:  trips,
	}
}

// ownedTrip loads the trip and rejects callers that do not own it.
func (s *ServiceImpl) ownedTrip(ctx context.Context, tripID, userID uuid.UUID) (*types.Trip, error) {
	t, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("trip %s belongs to another user: %w", tripID, types.ErrForbidden)
	}
	return t, nil
}

func (s *ServiceImpl) GetBudget(ctx context.Context, tripID, userID uuid.UUID) (*types.Budget, error) {
	ctx, span := otel.Tracer("BudgetService").Start(ctx, "GetBudget", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}

	budget, err := s.repo.GetBudget(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get budget")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Budget fetched")
	return budget, nil
}

// UpdateBudget replaces the total and the provided per-category allocations.
// Spent figures are untouched: they only move with activity and expense
// writes, or a Recalculate.
func (s *ServiceImpl) UpdateBudget(ctx context.Context, tripID, userID uuid.UUID, req types.UpdateBudgetRequest) (*types.Budget, error) {
	ctx, span := otel.Tracer("BudgetService").Start(ctx, "UpdateBudget", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateBudget"), slog.String("tripID", tripID.String()))

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}

	if req.Total != nil && *req.Total < 0 {
		return nil, fmt.Errorf("budget total must not be negative: %w", types.ErrConflict)
	}
	for category, allocated := range req.Allocations {
		if !category.Valid() {
			return nil, fmt.Errorf("unknown category %q: %w", category, types.ErrConflict)
		}
		if allocated < 0 {
			return nil, fmt.Errorf("allocation for %q must not be negative: %w", category, types.ErrConflict)
		}
	}

	if err := s.repo.UpdateBudget(ctx, tripID, req.Total, req.Allocations); err != nil {
		l.ErrorContext(ctx, "Failed to update budget", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update budget")
		return nil, err
	}

	budget, err := s.repo.GetBudget(ctx, tripID)
	if err != nil {
		return nil, err
	}
	l.InfoContext(ctx, "Budget updated")
	span.SetStatus(codes.Ok, "Budget updated")
	return budget, nil
}

func (s *ServiceImpl) GetSummary(ctx context.Context, tripID, userID uuid.UUID) (*types.BudgetSummary, error) {
	ctx, span := otel.Tracer("BudgetService").Start(ctx, "GetSummary", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}
	return s.CalculateSummary(ctx, tripID)
}

// CalculateSummary builds the summary view from the stored budget rows. It
// performs no ownership check; callers serving shared links rely on that.
// Reading it twice without intervening writes yields identical figures.
func (s *ServiceImpl) CalculateSummary(ctx context.Context, tripID uuid.UUID) (*types.BudgetSummary, error) {
	ctx, span := otel.Tracer("BudgetService").Start(ctx, "CalculateSummary", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	t, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Trip not found")
		return nil, err
	}
	budget, err := s.repo.GetBudget(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get budget")
		return nil, err
	}

	summary := &types.BudgetSummary{
		TotalBudget: budget.Total,
		Categories:  make([]types.CategorySummary, 0, len(budget.Categories)),
	}
	for _, cat := range budget.Categories {
		summary.TotalSpent += cat.Spent
		percentage := 0.0
		if cat.Allocated > 0 {
			percentage = cat.Spent / cat.Allocated * 100
		}
		summary.Categories = append(summary.Categories, types.CategorySummary{
			Name:       string(cat.Category),
			Budget:     cat.Allocated,
			Spent:      cat.Spent,
			Remaining:  cat.Allocated - cat.Spent,
			Percentage: percentage,
		})
	}
	summary.TotalRemaining = summary.TotalBudget - summary.TotalSpent
	summary.DailyAverage = summary.TotalSpent / float64(tripDays(t))

	span.SetStatus(codes.Ok, "Summary calculated")
	return summary, nil
}

// tripDays is the inclusive day count of the trip, never below one.
func tripDays(t *types.Trip) int {
	days := int(math.Floor(t.EndDate.Sub(t.StartDate).Hours()/24)) + 1
	if days < 1 {
		days = 1
	}
	return days
}

// Recalculate rebuilds spent figures from the underlying rows. Normal writes
// keep them consistent; this is the repair path.
func (s *ServiceImpl) Recalculate(ctx context.Context, tripID, userID uuid.UUID) (*types.Budget, error) {
	ctx, span := otel.Tracer("BudgetService").Start(ctx, "Recalculate", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Recalculate"), slog.String("tripID", tripID.String()))

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}

	start := time.Now()
	budget, err := s.repo.Recalculate(ctx, tripID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to recalculate budget", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to recalculate budget")
		return nil, err
	}

	metrics.Get().BudgetRecalcsTotal.Add(ctx, 1)
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds())
	l.InfoContext(ctx, "Budget recalculated")
	span.SetStatus(codes.Ok, "Budget recalculated")
	return budget, nil
}

func (s *ServiceImpl) AddExpense(ctx context.Context, tripID, userID uuid.UUID, req types.AddExpenseRequest) (*types.Expense, error) {
	ctx, span := otel.Tracer("BudgetService").Start(ctx, "AddExpense", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
		attribute.String("expense.category", string(req.Category)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "AddExpense"), slog.String("tripID", tripID.String()))

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}

	if !req.Category.Valid() {
		return nil, fmt.Errorf("unknown category %q: %w", req.Category, types.ErrConflict)
	}
	if req.Amount < 0 {
		return nil, fmt.Errorf("expense amount must not be negative: %w", types.ErrConflict)
	}
	spentOn := req.SpentOn
	if spentOn.IsZero() {
		spentOn = time.Now()
	}

	expense := types.Expense{
		ID:          uuid.New(),
		TripID:      tripID,
		Category:    req.Category,
		Amount:      req.Amount,
		Description: req.Description,
		SpentOn:     spentOn,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.AddExpense(ctx, expense); err != nil {
		l.ErrorContext(ctx, "Failed to add expense", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to add expense")
		return nil, err
	}

	metrics.Get().BudgetDeltasTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Expense added", slog.String("expenseID", expense.ID.String()))
	span.SetStatus(codes.Ok, "Expense added")
	return &expense, nil
}

// RemoveExpense deletes the expense and reverses its budget contribution.
// The expense must belong to the addressed trip.
func (s *ServiceImpl) RemoveExpense(ctx context.Context, tripID, expenseID, userID uuid.UUID) error {
	ctx, span := otel.Tracer("BudgetService").Start(ctx, "RemoveExpense", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
		attribute.String("expense.id", expenseID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "RemoveExpense"), slog.String("expenseID", expenseID.String()))

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return err
	}

	expense, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Expense not found")
		return err
	}
	if expense.TripID != tripID {
		return fmt.Errorf("expense %s belongs to another trip: %w", expenseID, types.ErrNotFound)
	}

	if err := s.repo.RemoveExpense(ctx, expenseID); err != nil {
		l.ErrorContext(ctx, "Failed to remove expense", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to remove expense")
		return err
	}

	metrics.Get().BudgetDeltasTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Expense removed")
	span.SetStatus(codes.Ok, "Expense removed")
	return nil
}

func (s *ServiceImpl) ListExpenses(ctx context.Context, tripID, userID uuid.UUID) ([]*types.Expense, error) {
	ctx, span := otel.Tracer("BudgetService").Start(ctx, "ListExpenses", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}

	expenses, err := s.repo.ListExpenses(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list expenses")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Expenses listed")
	return expenses, nil
}
