package trip

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voyplan/voyplan/app/observability/metrics"
	"github.com/voyplan/voyplan/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	CreateTrip(ctx context.Context, userID uuid.UUID, req types.CreateTripRequest) (*types.Trip, error)
	GetTrip(ctx context.Context, tripID, userID uuid.UUID) (*types.Trip, error)
	ListTrips(ctx context.Context, userID uuid.UUID, filter types.ListTripsFilter) ([]*types.Trip, error)
	UpdateTrip(ctx context.Context, tripID, userID uuid.UUID, patch types.UpdateTripRequest) (*types.Trip, error)
	DeleteTrip(ctx context.Context, tripID, userID uuid.UUID) error
	ShareTrip(ctx context.Context, tripID, userID uuid.UUID) (string, error)
	GetSharedTrip(ctx context.Context, token string) (*types.SharedTripResponse, error)
}

// Summarizer produces the budget summary view for a trip. Implemented by the
// budget service; declared here so this package needs no budget import.
type Summarizer interface {
	CalculateSummary(ctx context.Context, tripID uuid.UUID) (*types.BudgetSummary, error)
}

type ServiceImpl struct {
	logger     *slog.Logger
	repo       Repository
	summarizer Summarizer
	shareCache *gocache.Cache
}

func NewService(repo Repository, summarizer Summarizer, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:     logger,
		repo:       repo,
		summarizer: summarizer,
		shareCache: gocache.New(30*time.Second, time.Minute),
	}
}

// CreateTrip allocates a trip plus its companion budget. The repository runs
// both inserts in one transaction, so no partial state survives a failure.
func (s *ServiceImpl) CreateTrip(ctx context.Context, userID uuid.UUID, req types.CreateTripRequest) (*types.Trip, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "CreateTrip", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("trip.name", req.Name),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateTrip"), slog.String("userID", userID.String()))

	if userID == uuid.Nil {
		return nil, types.ErrUnauthenticated
	}

	budget := req.Budget
	if budget < 0 {
		budget = 0
	}

	cities := req.Cities
	if cities == nil {
		cities = []types.City{}
	}
	for i := range cities {
		if cities[i].ID == uuid.Nil {
			cities[i].ID = uuid.New()
		}
	}

	now := time.Now()
	trip := types.Trip{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		TotalBudget: budget,
		Status:      types.TripStatusPlanning,
		IsShared:    false,
		Cities:      cities,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateTrip(ctx, trip); err != nil {
		l.ErrorContext(ctx, "Failed to create trip", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create trip")
		return nil, err
	}

	metrics.Get().TripsCreatedTotal.Add(ctx, 1)
	l.InfoContext(ctx, "Trip created", slog.String("tripID", trip.ID.String()))
	span.SetStatus(codes.Ok, "Trip created")
	return &trip, nil
}

func (s *ServiceImpl) GetTrip(ctx context.Context, tripID, userID uuid.UUID) (*types.Trip, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "GetTrip", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Trip not found")
		return nil, err
	}
	if trip.UserID != userID {
		span.SetStatus(codes.Error, "Not the owner")
		return nil, fmt.Errorf("trip %s belongs to another user: %w", tripID, types.ErrForbidden)
	}
	span.SetStatus(codes.Ok, "Trip fetched")
	return trip, nil
}

func (s *ServiceImpl) ListTrips(ctx context.Context, userID uuid.UUID, filter types.ListTripsFilter) ([]*types.Trip, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "ListTrips", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
	))
	defer span.End()

	trips, err := s.repo.ListTripsByUser(ctx, userID, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list trips")
		return nil, err
	}
	span.SetStatus(codes.Ok, "Trips listed")
	return trips, nil
}

// UpdateTrip applies a merge patch on behalf of the owner. Non-owners get
// ErrForbidden and the stored document is untouched.
func (s *ServiceImpl) UpdateTrip(ctx context.Context, tripID, userID uuid.UUID, patch types.UpdateTripRequest) (*types.Trip, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "UpdateTrip", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateTrip"), slog.String("tripID", tripID.String()))

	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Trip not found")
		return nil, err
	}
	if trip.UserID != userID {
		l.WarnContext(ctx, "Update rejected, caller does not own trip",
			slog.String("ownerID", trip.UserID.String()))
		span.SetStatus(codes.Error, "Not the owner")
		return nil, fmt.Errorf("trip %s belongs to another user: %w", tripID, types.ErrForbidden)
	}

	if patch.Name != nil {
		trip.Name = *patch.Name
	}
	if patch.Description != nil {
		trip.Description = *patch.Description
	}
	if patch.StartDate != nil {
		trip.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		trip.EndDate = *patch.EndDate
	}
	if patch.TotalBudget != nil {
		trip.TotalBudget = *patch.TotalBudget
	}
	if patch.Status != nil {
		// Any status transition is allowed.
		trip.Status = *patch.Status
	}
	if patch.Cities != nil {
		cities := *patch.Cities
		for i := range cities {
			if cities[i].ID == uuid.Nil {
				cities[i].ID = uuid.New()
			}
		}
		trip.Cities = cities
	}
	trip.UpdatedAt = time.Now()

	if err := s.repo.UpdateTrip(ctx, *trip); err != nil {
		l.ErrorContext(ctx, "Failed to update trip", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update trip")
		return nil, err
	}

	s.invalidateShareCache(trip)
	span.SetStatus(codes.Ok, "Trip updated")
	return trip, nil
}

// DeleteTrip cascades to the budget and every activity in one transaction.
func (s *ServiceImpl) DeleteTrip(ctx context.Context, tripID, userID uuid.UUID) error {
	ctx, span := otel.Tracer("TripService").Start(ctx, "DeleteTrip", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "DeleteTrip"), slog.String("tripID", tripID.String()))

	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Trip not found")
		return err
	}
	if trip.UserID != userID {
		l.WarnContext(ctx, "Delete rejected, caller does not own trip",
			slog.String("ownerID", trip.UserID.String()))
		span.SetStatus(codes.Error, "Not the owner")
		return fmt.Errorf("trip %s belongs to another user: %w", tripID, types.ErrForbidden)
	}

	if err := s.repo.DeleteTrip(ctx, tripID); err != nil {
		l.ErrorContext(ctx, "Failed to delete trip", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete trip")
		return err
	}

	metrics.Get().TripsDeletedTotal.Add(ctx, 1)
	s.invalidateShareCache(trip)
	l.InfoContext(ctx, "Trip deleted with cascade")
	span.SetStatus(codes.Ok, "Trip deleted")
	return nil
}

// ShareTrip mints a fresh opaque token. Calling it again replaces the old
// token; the previous link stops resolving once the cache entry expires.
func (s *ServiceImpl) ShareTrip(ctx context.Context, tripID, userID uuid.UUID) (string, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "ShareTrip", trace.WithAttributes(
		attribute.String("trip.id", tripID.String()),
	))
	defer span.End()

	trip, err := s.repo.GetTrip(ctx, tripID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Trip not found")
		return "", err
	}
	if trip.UserID != userID {
		span.SetStatus(codes.Error, "Not the owner")
		return "", fmt.Errorf("trip %s belongs to another user: %w", tripID, types.ErrForbidden)
	}

	token := uuid.NewString()
	if err := s.repo.SetShareToken(ctx, tripID, token); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to set share token")
		return "", err
	}

	s.invalidateShareCache(trip)
	span.SetStatus(codes.Ok, "Trip shared")
	return token, nil
}

// GetSharedTrip serves the unauthenticated read-only view behind a share
// token. Responses are cached briefly since shared links get hot.
func (s *ServiceImpl) GetSharedTrip(ctx context.Context, token string) (*types.SharedTripResponse, error) {
	ctx, span := otel.Tracer("TripService").Start(ctx, "GetSharedTrip")
	defer span.End()

	if cached, found := s.shareCache.Get(token); found {
		span.SetStatus(codes.Ok, "Served from cache")
		return cached.(*types.SharedTripResponse), nil
	}

	trip, err := s.repo.GetTripByShareToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Share token not found")
		return nil, err
	}

	summary, err := s.summarizer.CalculateSummary(ctx, trip.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to summarize budget")
		return nil, err
	}

	resp := &types.SharedTripResponse{Trip: trip, Summary: summary}
	s.shareCache.SetDefault(token, resp)
	span.SetStatus(codes.Ok, "Shared trip fetched")
	return resp, nil
}

func (s *ServiceImpl) invalidateShareCache(trip *types.Trip) {
	if trip.ShareToken != nil {
		s.shareCache.Delete(*trip.ShareToken)
	}
}
