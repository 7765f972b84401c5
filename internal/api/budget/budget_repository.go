package budget

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/voyplan/voyplan/internal/api"
	"github.com/voyplan/voyplan/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository defines persistence for budgets, their category rows and ad-hoc
// expenses.
type Repository interface {
	GetBudget(ctx context.Context, tripID uuid.UUID) (*types.Budget, error)
	UpdateBudget(ctx context.Context, tripID uuid.UUID, total *float64, allocations map[types.ActivityCategory]float64) error
	AddExpense(ctx context.Context, expense types.Expense) error
	GetExpense(ctx context.Context, expenseID uuid.UUID) (*types.Expense, error)
	RemoveExpense(ctx context.Context, expenseID uuid.UUID) error
	ListExpenses(ctx context.Context, tripID uuid.UUID) ([]*types.Expense, error)
	Recalculate(ctx context.Context, tripID uuid.UUID) (*types.Budget, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	db     api.DB
}

func NewRepository(db api.DB, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		db:     db,
	}
}

// ApplyCostDelta adjusts the category spent figure inside the caller's
// transaction. Stamping the budgets row first both locks it, serialising
// concurrent writers on the same trip, and proves the budget exists: zero
// rows affected surfaces ErrBudgetMissing so the caller aborts instead of
// losing the delta.
func ApplyCostDelta(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, category types.ActivityCategory, delta float64) error {
	result, err := tx.Exec(ctx, `UPDATE budgets SET updated_at = now() WHERE trip_id = $1`, tripID)
	if err != nil {
		return fmt.Errorf("failed to stamp budget: %w", api.MapStoreError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("trip %s: %w", tripID, types.ErrBudgetMissing)
	}

	query := `
        INSERT INTO budget_categories (trip_id, category, allocated, spent)
        VALUES ($1, $2, 0, $3)
        ON CONFLICT (trip_id, category)
        DO UPDATE SET spent = budget_categories.spent + EXCLUDED.spent
    `
	if _, err := tx.Exec(ctx, query, tripID, category, delta); err != nil {
		return fmt.Errorf("failed to apply cost delta: %w", api.MapStoreError(err))
	}
	return nil
}

func (r *RepositoryImpl) GetBudget(ctx context.Context, tripID uuid.UUID) (*types.Budget, error) {
	var budget types.Budget
	query := `SELECT trip_id, total, created_at, updated_at FROM budgets WHERE trip_id = $1`
	err := r.db.QueryRow(ctx, query, tripID).Scan(
		&budget.TripID, &budget.Total, &budget.CreatedAt, &budget.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("trip %s: %w", tripID, types.ErrBudgetMissing)
		}
		r.logger.ErrorContext(ctx, "Failed to get budget", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get budget: %w", api.MapStoreError(err))
	}

	categories, err := r.listCategories(ctx, tripID)
	if err != nil {
		return nil, err
	}
	budget.Categories = categories
	return &budget, nil
}

func (r *RepositoryImpl) listCategories(ctx context.Context, tripID uuid.UUID) ([]types.BudgetCategory, error) {
	query := `SELECT category, allocated, spent FROM budget_categories WHERE trip_id = $1 ORDER BY category`
	rows, err := r.db.Query(ctx, query, tripID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list budget categories", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list budget categories: %w", api.MapStoreError(err))
	}
	defer rows.Close()

	var categories []types.BudgetCategory
	for rows.Next() {
		var cat types.BudgetCategory
		if err := rows.Scan(&cat.Category, &cat.Allocated, &cat.Spent); err != nil {
			return nil, fmt.Errorf("failed to scan budget category: %w", err)
		}
		categories = append(categories, cat)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget category rows: %w", api.MapStoreError(err))
	}
	return categories, nil
}

// UpdateBudget rewrites the total and any provided per-category allocations
// in one transaction. Allocations for categories without a row yet are
// inserted with zero spent.
func (r *RepositoryImpl) UpdateBudget(ctx context.Context, tripID uuid.UUID, total *float64, allocations map[types.ActivityCategory]float64) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", api.MapStoreError(err))
	}
	defer tx.Rollback(ctx)

	if total != nil {
		result, err := tx.Exec(ctx,
			`UPDATE budgets SET total = $2, updated_at = now() WHERE trip_id = $1`, tripID, *total)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to update budget total", slog.Any("error", err))
			return fmt.Errorf("failed to update budget total: %w", api.MapStoreError(err))
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("trip %s: %w", tripID, types.ErrBudgetMissing)
		}
	} else {
		result, err := tx.Exec(ctx,
			`UPDATE budgets SET updated_at = now() WHERE trip_id = $1`, tripID)
		if err != nil {
			return fmt.Errorf("failed to stamp budget: %w", api.MapStoreError(err))
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("trip %s: %w", tripID, types.ErrBudgetMissing)
		}
	}

	allocQuery := `
        INSERT INTO budget_categories (trip_id, category, allocated, spent)
        VALUES ($1, $2, $3, 0)
        ON CONFLICT (trip_id, category)
        DO UPDATE SET allocated = EXCLUDED.allocated
    `
	for _, category := range types.ActivityCategories {
		allocated, ok := allocations[category]
		if !ok {
			continue
		}
		if _, err := tx.Exec(ctx, allocQuery, tripID, category, allocated); err != nil {
			r.logger.ErrorContext(ctx, "Failed to update allocation", slog.Any("error", err))
			return fmt.Errorf("failed to update allocation: %w", api.MapStoreError(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", api.MapStoreError(err))
	}
	return nil
}

// AddExpense inserts the expense row and applies its amount to the category
// spent figure in the same transaction.
func (r *RepositoryImpl) AddExpense(ctx context.Context, expense types.Expense) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", api.MapStoreError(err))
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO expenses (id, trip_id, category, amount, description, spent_on, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err = tx.Exec(ctx, query,
		expense.ID, expense.TripID, expense.Category, expense.Amount,
		expense.Description, expense.SpentOn, expense.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert expense", slog.Any("error", err))
		return fmt.Errorf("failed to insert expense: %w", api.MapStoreError(err))
	}

	if err := ApplyCostDelta(ctx, tx, expense.TripID, expense.Category, expense.Amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", api.MapStoreError(err))
	}
	return nil
}

func (r *RepositoryImpl) GetExpense(ctx context.Context, expenseID uuid.UUID) (*types.Expense, error) {
	var expense types.Expense
	query := `SELECT id, trip_id, category, amount, description, spent_on, created_at FROM expenses WHERE id = $1`
	err := r.db.QueryRow(ctx, query, expenseID).Scan(
		&expense.ID, &expense.TripID, &expense.Category, &expense.Amount,
		&expense.Description, &expense.SpentOn, &expense.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("expense not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get expense", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get expense: %w", api.MapStoreError(err))
	}
	return &expense, nil
}

// RemoveExpense deletes the row and reverses its contribution to the
// category spent figure atomically.
func (r *RepositoryImpl) RemoveExpense(ctx context.Context, expenseID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", api.MapStoreError(err))
	}
	defer tx.Rollback(ctx)

	var expense types.Expense
	query := `DELETE FROM expenses WHERE id = $1 RETURNING trip_id, category, amount`
	err = tx.QueryRow(ctx, query, expenseID).Scan(&expense.TripID, &expense.Category, &expense.Amount)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("expense not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to delete expense", slog.Any("error", err))
		return fmt.Errorf("failed to delete expense: %w", api.MapStoreError(err))
	}

	if err := ApplyCostDelta(ctx, tx, expense.TripID, expense.Category, -expense.Amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", api.MapStoreError(err))
	}
	return nil
}

func (r *RepositoryImpl) ListExpenses(ctx context.Context, tripID uuid.UUID) ([]*types.Expense, error) {
	query := `
        SELECT id, trip_id, category, amount, description, spent_on, created_at
        FROM expenses WHERE trip_id = $1 ORDER BY spent_on DESC, created_at DESC
    `
	rows, err := r.db.Query(ctx, query, tripID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list expenses", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list expenses: %w", api.MapStoreError(err))
	}
	defer rows.Close()

	var expenses []*types.Expense
	for rows.Next() {
		var expense types.Expense
		err := rows.Scan(
			&expense.ID, &expense.TripID, &expense.Category, &expense.Amount,
			&expense.Description, &expense.SpentOn, &expense.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, &expense)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expense rows: %w", api.MapStoreError(err))
	}
	return expenses, nil
}

// Recalculate rebuilds every category spent figure from the activity and
// expense rows. A repair operation: the incremental deltas keep the figures
// consistent in normal operation.
func (r *RepositoryImpl) Recalculate(ctx context.Context, tripID uuid.UUID) (*types.Budget, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", api.MapStoreError(err))
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `UPDATE budgets SET updated_at = now() WHERE trip_id = $1`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to stamp budget: %w", api.MapStoreError(err))
	}
	if result.RowsAffected() == 0 {
		return nil, fmt.Errorf("trip %s: %w", tripID, types.ErrBudgetMissing)
	}

	query := `
        UPDATE budget_categories bc
        SET spent = COALESCE((
                SELECT SUM(a.cost) FROM activities a
                WHERE a.trip_id = bc.trip_id AND a.category = bc.category
            ), 0) + COALESCE((
                SELECT SUM(e.amount) FROM expenses e
                WHERE e.trip_id = bc.trip_id AND e.category = bc.category
            ), 0)
        WHERE bc.trip_id = $1
    `
	if _, err := tx.Exec(ctx, query, tripID); err != nil {
		r.logger.ErrorContext(ctx, "Failed to recalculate budget", slog.Any("error", err))
		return nil, fmt.Errorf("failed to recalculate budget: %w", api.MapStoreError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", api.MapStoreError(err))
	}
	return r.GetBudget(ctx, tripID)
}
