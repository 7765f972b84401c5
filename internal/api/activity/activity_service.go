package activity

import (
	"context"
	"fmt"
	"log/slog"
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

type Service interface {
	CreateActivity(ctx context.Context, tripID, userID uuid.UUID, req types.CreateActivityRequest) (*types.Activity, error)
	GetActivity(ctx context.Context, tripID, activityID, userID uuid.UUID) (*types.Activity, error)
	ListActivities(ctx context.Context, tripID, userID uuid.UUID) ([]*types.Activity, error)
	ListCityActivities(ctx context.Context, tripID, cityID, userID uuid.UUID) ([]*types.Activity, error)
	UpdateActivity(ctx context.Context, tripID, activityID, userID uuid.UUID, patch types.UpdateActivityRequest) (*types.Activity, error)
	DeleteActivity(ctx context.Context, tripID, activityID, userID uuid.UUID) error
	ToggleFavorite(ctx context.Context, tripID, activityID, userID uuid.UUID) (*types.Activity, error)
	ToggleCompleted(ctx context.Context, tripID, activityID, userID uuid.UUID) (*types.Activity, error)
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

// tripActivity fetches the activity and verifies it hangs off the addressed
// trip, so an ID from another trip cannot be reached through this route.
func (s *ServiceImpl) tripActivity(ctx context.Context, tripID, activityID uuid.UUID) (*types.Activity, error) {
	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity.TripID != tripID {
		return nil, fmt.Errorf("activity %s belongs to another trip: %w", activityID, types.ErrNotFound)
	}
	return activity, nil
}

func cityExists(t *types.Trip, cityID uuid.UUID) bool {
	for _, city := range t.Cities {
		if city.ID == cityID {
			return true
		}
	}
	return false
}

// CreateActivity validates the category and target city, then persists the
// row together with its budget delta. A trip whose budget row is gone
// surfaces ErrBudgetMissing instead of silently dropping the cost.
func (s *ServiceImpl) CreateActivity(ctx context.Context, tripID, userID uuid.UUID, req types.CreateActivityRequest) (*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "CreateActivity", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
		attribute.String("activity.category", string(req.Category)),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateActivity"), slog.String("tripID", tripID.String()))

	t, err := s.ownedTrip(ctx, tripID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}

	if !req.Category.Valid() {
		return nil, fmt.Errorf("unknown category %q: %w", req.Category, types.ErrConflict)
	}
	if req.CityID != uuid.Nil && !cityExists(t, req.CityID) {
		return nil, fmt.Errorf("city %s is not part of trip %s: %w", req.CityID, tripID, types.ErrNotFound)
	}

	cost := 0.0
	if req.Cost != nil {
		if *req.Cost < 0 {
			return nil, fmt.Errorf("activity cost must not be negative: %w", types.ErrConflict)
		}
		cost = *req.Cost
	}

	now := time.Now()
	activity := types.Activity{
		ID:          uuid.New(),
		TripID:      tripID,
		CityID:      req.CityID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Cost:        cost,
		Duration:    req.Duration,
		Location:    req.Location,
		GroupSize:   req.GroupSize,
		Tags:        req.Tags,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		l.ErrorContext(ctx, "Failed to create activity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create activity")
		return nil, err
	}

	metrics.Get().ActivityWritesTotal.Add(ctx, 1)
	if cost != 0 {
		metrics.Get().BudgetDeltasTotal.Add(ctx, 1)
	}
	l.InfoContext(ctx, "Activity created", slog.String("activityID", activity.ID.String()))
	span.SetStatus(codes.Ok, "Activity created")
	return &activity, nil
}

func (s *ServiceImpl) GetActivity(ctx context.Context, tripID, activityID, userID uuid.UUID) (*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "GetActivity", trace.WithAttributes(
		attribute.String("activity.id", activityID.String()),
	))
	defer span.End()

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}
	activity, err := s.tripActivity(ctx, tripID, activityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Activity not found")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Activity fetched")
	return activity, nil
}

func (s *ServiceImpl) ListActivities(ctx context.Context, tripID, userID uuid.UUID) ([]*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "ListActivities", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}
	activities, err := s.repo.ListByTrip(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list activities")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Activities listed")
	return activities, nil
}

func (s *ServiceImpl) ListCityActivities(ctx context.Context, tripID, cityID, userID uuid.UUID) ([]*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "ListCityActivities", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
		attribute.String("city.id", cityID.String()),
	))
	defer span.End()

	t, err := s.ownedTrip(ctx, tripID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}
	if !cityExists(t, cityID) {
		return nil, fmt.Errorf("city %s is not part of trip %s: %w", cityID, tripID, types.ErrNotFound)
	}
	activities, err := s.repo.ListByCity(ctx, tripID, cityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list activities")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Activities listed")
	return activities, nil
}

// UpdateActivity applies a merge patch. Category or cost changes move the
// spent figures between buckets atomically with the row rewrite.
func (s *ServiceImpl) UpdateActivity(ctx context.Context, tripID, activityID, userID uuid.UUID, patch types.UpdateActivityRequest) (*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "UpdateActivity", trace.WithAttributes(
		attribute.String("activity.id", activityID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateActivity"), slog.String("activityID", activityID.String()))

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}
	activity, err := s.tripActivity(ctx, tripID, activityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Activity not found")
		return nil, err
	}

	costChanged := false
	if patch.Name != nil {
		activity.Name = *patch.Name
	}
	if patch.Description != nil {
		activity.Description = *patch.Description
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, fmt.Errorf("unknown category %q: %w", *patch.Category, types.ErrConflict)
		}
		if *patch.Category != activity.Category {
			costChanged = true
		}
		activity.Category = *patch.Category
	}
	if patch.Cost != nil {
		if *patch.Cost < 0 {
			return nil, fmt.Errorf("activity cost must not be negative: %w", types.ErrConflict)
		}
		if *patch.Cost != activity.Cost {
			costChanged = true
		}
		activity.Cost = *patch.Cost
	}
	if patch.Duration != nil {
		activity.Duration = *patch.Duration
	}
	if patch.Location != nil {
		activity.Location = *patch.Location
	}
	if patch.GroupSize != nil {
		activity.GroupSize = patch.GroupSize
	}
	if patch.Tags != nil {
		activity.Tags = *patch.Tags
	}
	if patch.Notes != nil {
		activity.Notes = *patch.Notes
	}
	activity.UpdatedAt = time.Now()

	if err := s.repo.UpdateActivity(ctx, *activity); err != nil {
		l.ErrorContext(ctx, "Failed to update activity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update activity")
		return nil, err
	}

	metrics.Get().ActivityWritesTotal.Add(ctx, 1)
	if costChanged {
		metrics.Get().BudgetDeltasTotal.Add(ctx, 1)
	}
	span.SetStatus(codes.Ok, "Activity updated")
	return activity, nil
}

func (s *ServiceImpl) DeleteActivity(ctx context.Context, tripID, activityID, userID uuid.UUID) error {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "DeleteActivity", trace.WithAttributes(
		attribute.String("activity.id", activityID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "DeleteActivity"), slog.String("activityID", activityID.String()))

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return err
	}
	activity, err := s.tripActivity(ctx, tripID, activityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Activity not found")
		return err
	}

	if err := s.repo.DeleteActivity(ctx, activityID); err != nil {
		l.ErrorContext(ctx, "Failed to delete activity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete activity")
		return err
	}

	metrics.Get().ActivityWritesTotal.Add(ctx, 1)
	if activity.Cost != 0 {
		metrics.Get().BudgetDeltasTotal.Add(ctx, 1)
	}
	l.InfoContext(ctx, "Activity deleted")
	span.SetStatus(codes.Ok, "Activity deleted")
	return nil
}

func (s *ServiceImpl) ToggleFavorite(ctx context.Context, tripID, activityID, userID uuid.UUID) (*types.Activity, error) {
	return s.toggle(ctx, tripID, activityID, userID, "ToggleFavorite", s.repo.ToggleFavorite)
}

func (s *ServiceImpl) ToggleCompleted(ctx context.Context, tripID, activityID, userID uuid.UUID) (*types.Activity, error) {
	return s.toggle(ctx, tripID, activityID, userID, "ToggleCompleted", s.repo.ToggleCompleted)
}

func (s *ServiceImpl) toggle(ctx context.Context, tripID, activityID, userID uuid.UUID, name string,
	flip func(context.Context, uuid.UUID) (*types.Activity, error)) (*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, name, trace.WithAttributes(
		attribute.String("activity.id", activityID.String()),
	))
	defer span.End()

	if _, err := s.ownedTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Ownership check failed")
		return nil, err
	}
	if _, err := s.tripActivity(ctx, tripID, activityID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Activity not found")
		return nil, err
	}

	activity, err := flip(ctx, activityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to toggle flag")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Flag toggled")
	return activity, nil
}
