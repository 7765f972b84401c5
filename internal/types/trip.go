package types

import (
	"time"

	"github.com/google/uuid"
)

type TripStatus string

const (
	TripStatusPlanning  TripStatus = "planning"
	TripStatusOngoing   TripStatus = "ongoing"
	TripStatusCompleted TripStatus = "completed"
)

// City is an ordered value object embedded in its owning trip. Cities carry
// no activities; activities reference the city by ID instead.
type City struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Country     string     `json:"country"`
	CountryCode string     `json:"country_code,omitempty"`
	VisitDate   *time.Time `json:"visit_date,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Budget      string     `json:"budget,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type Trip struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	TotalBudget float64    `json:"total_budget"`
	Status      TripStatus `json:"status"`
	IsShared    bool       `json:"is_shared"`
	ShareToken  *string    `json:"share_token,omitempty"`
	Cities      []City     `json:"cities"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CreateTripRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Budget      float64   `json:"budget,omitempty"`
	Cities      []City    `json:"cities,omitempty"`
}

// UpdateTripRequest is a merge patch: nil fields keep their stored value.
// Owner and share token are not patchable through this request.
type UpdateTripRequest struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	StartDate   *time.Time  `json:"start_date,omitempty"`
	EndDate     *time.Time  `json:"end_date,omitempty"`
	TotalBudget *float64    `json:"total_budget,omitempty"`
	Status      *TripStatus `json:"status,omitempty"`
	Cities      *[]City     `json:"cities,omitempty"`
}

type ListTripsFilter struct {
	Status *TripStatus
	SortBy string // created_at | start_date | name
	Limit  int
}

// SharedTripResponse is the public read-only view served by share token.
type SharedTripResponse struct {
	Trip    *Trip          `json:"trip"`
	Summary *BudgetSummary `json:"summary,omitempty"`
}
