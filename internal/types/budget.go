package types

import (
	"time"

	"github.com/google/uuid"
)

// Budget is the per-trip allocation record, keyed by trip ID. Category spent
// figures are maintained incrementally: every cost-affecting activity or
// expense write applies its delta inside the same database transaction.
type Budget struct {
	TripID     uuid.UUID        `json:"trip_id"`
	Total      float64          `json:"total"`
	Categories []BudgetCategory `json:"categories"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type BudgetCategory struct {
	Category  ActivityCategory `json:"category"`
	Allocated float64          `json:"allocated"`
	Spent     float64          `json:"spent"`
}

// Expense is an ad-hoc spend entry not tied to an activity. Expenses are
// independent rows addressable by ID, so removing one never rewrites a list.
type Expense struct {
	ID          uuid.UUID        `json:"id"`
	TripID      uuid.UUID        `json:"trip_id"`
	Category    ActivityCategory `json:"category"`
	Amount      float64          `json:"amount"`
	Description string           `json:"description,omitempty"`
	SpentOn     time.Time        `json:"spent_on"`
	CreatedAt   time.Time        `json:"created_at"`
}

type AddExpenseRequest struct {
	Category    ActivityCategory `json:"category"`
	Amount      float64          `json:"amount"`
	Description string           `json:"description,omitempty"`
	SpentOn     time.Time        `json:"spent_on"`
}

type UpdateBudgetRequest struct {
	Total       *float64                     `json:"total,omitempty"`
	Allocations map[ActivityCategory]float64 `json:"allocations,omitempty"`
}

type CategorySummary struct {
	Name       string  `json:"name"`
	Budget     float64 `json:"budget"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

type BudgetSummary struct {
	TotalBudget    float64           `json:"total_budget"`
	TotalSpent     float64           `json:"total_spent"`
	TotalRemaining float64           `json:"total_remaining"`
	DailyAverage   float64           `json:"daily_average"`
	Categories     []CategorySummary `json:"categories"`
}
