package types

import (
	"time"

	"github.com/google/uuid"
)

type ActivityCategory string

const (
	CategorySightseeing    ActivityCategory = "sightseeing"
	CategoryFood           ActivityCategory = "food"
	CategoryAdventure      ActivityCategory = "adventure"
	CategoryCulture        ActivityCategory = "culture"
	CategoryShopping       ActivityCategory = "shopping"
	CategoryRelaxation     ActivityCategory = "relaxation"
	CategoryTransportation ActivityCategory = "transportation"
	CategoryAccommodation  ActivityCategory = "accommodation"
)

// ActivityCategories is the fixed bucketing used for budget totals.
var ActivityCategories = []ActivityCategory{
	CategorySightseeing,
	CategoryFood,
	CategoryAdventure,
	CategoryCulture,
	CategoryShopping,
	CategoryRelaxation,
	CategoryTransportation,
	CategoryAccommodation,
}

func (c ActivityCategory) Valid() bool {
	for _, known := range ActivityCategories {
		if c == known {
			return true
		}
	}
	return false
}

type Activity struct {
	ID          uuid.UUID        `json:"id"`
	TripID      uuid.UUID        `json:"trip_id"`
	CityID      uuid.UUID        `json:"city_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    ActivityCategory `json:"category"`
	Cost        float64          `json:"cost"`
	Duration    string           `json:"duration,omitempty"`
	Location    string           `json:"location,omitempty"`
	GroupSize   *int             `json:"group_size,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	IsFavorite  bool             `json:"is_favorite"`
	IsCompleted bool             `json:"is_completed"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type CreateActivityRequest struct {
	CityID      uuid.UUID        `json:"city_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    ActivityCategory `json:"category"`
	Cost        *float64         `json:"cost,omitempty"`
	Duration    string           `json:"duration,omitempty"`
	Location    string           `json:"location,omitempty"`
	GroupSize   *int             `json:"group_size,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// UpdateActivityRequest is a merge patch: nil fields keep their stored value.
type UpdateActivityRequest struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Category    *ActivityCategory `json:"category,omitempty"`
	Cost        *float64          `json:"cost,omitempty"`
	Duration    *string           `json:"duration,omitempty"`
	Location    *string           `json:"location,omitempty"`
	GroupSize   *int              `json:"group_size,omitempty"`
	Tags        *[]string         `json:"tags,omitempty"`
	Notes       *string           `json:"notes,omitempty"`
}
