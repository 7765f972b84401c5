package trip

import (
	"log/slog"
	"net/http"
	"strconv"

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
	CreateTripHandler(w http.ResponseWriter, r *http.Request)
	GetTripHandler(w http.ResponseWriter, r *http.Request)
	ListTripsHandler(w http.ResponseWriter, r *http.Request)
	UpdateTripHandler(w http.ResponseWriter, r *http.Request)
	DeleteTripHandler(w http.ResponseWriter, r *http.Request)
	ShareTripHandler(w http.ResponseWriter, r *http.Request)
	GetSharedTripHandler(w http.ResponseWriter, r *http.Request)
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

// CreateTripHandler godoc
// @Summary      Create a trip with its companion budget
// @Tags         trips
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request body types.CreateTripRequest true "trip payload"
// @Success      201 {object} types.Trip
// @Router       /trips [post]
func (h *HandlerImpl) CreateTripHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TripHandler").Start(r.Context(), "CreateTrip")
	defer span.End()
	l := h.logger.With(slog.String("handler", "CreateTripHandler"))

	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "Unauthenticated")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	var req types.CreateTripRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "trip name is required")
		return
	}
	if req.EndDate.Before(req.StartDate) {
		api.ErrorResponse(w, r, http.StatusBadRequest, "end date must not precede start date")
		return
	}

	trip, err := h.service.CreateTrip(ctx, userID, req)
	if err != nil {
		l.ErrorContext(ctx, "Service failed to create trip", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create trip")
		api.DomainErrorResponse(w, r, err)
		return
	}

	span.SetAttributes(attribute.String("trip.id", trip.ID.String()))
	span.SetStatus(codes.Ok, "Trip created")
	api.WriteJSONResponse(w, r, http.StatusCreated, trip)
}

// GetTripHandler godoc
// @Summary      Fetch one of the caller's trips
// @Tags         trips
// @Security     BearerAuth
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Success      200 {object} types.Trip
// @Router       /trips/{tripID} [get]
func (h *HandlerImpl) GetTripHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TripHandler").Start(r.Context(), "GetTrip")
	defer span.End()

	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "Unauthenticated")
		api.DomainErrorResponse(w, r, err)
		return
	}

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		span.SetStatus(codes.Error, "Invalid trip ID")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid trip ID format")
		return
	}

	trip, err := h.service.GetTrip(ctx, tripID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get trip")
		api.DomainErrorResponse(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Trip fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, trip)
}

// ListTripsHandler godoc
// @Summary      List the caller's trips
// @Tags         trips
// @Security     BearerAuth
// @Produce      json
// @Param        status  query string false "filter by status"
// @Param        sort_by query string false "created_at | start_date | name"
// @Param        limit   query int    false "max results"
// @Success      200 {array} types.Trip
// @Router       /trips [get]
func (h *HandlerImpl) ListTripsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TripHandler").Start(r.Context(), "ListTrips")
	defer span.End()

	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "Unauthenticated")
		api.DomainErrorResponse(w, r, err)
		return
	}

	sortBy := r.URL.Query().Get("sort_by")
	switch sortBy {
	case "", "created_at", "start_date", "name":
	default:
		api.ErrorResponse(w, r, http.StatusBadRequest, "sort_by must be one of created_at, start_date, name")
		return
	}

	filter := types.ListTripsFilter{SortBy: sortBy}
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := types.TripStatus(statusStr)
		filter.Status = &status
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	trips, err := h.service.ListTrips(ctx, userID, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list trips")
		api.DomainErrorResponse(w, r, err)
		return
	}
	if trips == nil {
		trips = []*types.Trip{}
	}

	span.SetStatus(codes.Ok, "Trips listed")
	api.WriteJSONResponse(w, r, http.StatusOK, trips)
}

// UpdateTripHandler godoc
// @Summary      Merge-patch a trip
// @Tags         trips
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        tripID  path string true "trip ID"
// @Param        request body types.UpdateTripRequest true "merge patch"
// @Success      200 {object} types.Trip
// @Router       /trips/{tripID} [patch]
func (h *HandlerImpl) UpdateTripHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TripHandler").Start(r.Context(), "UpdateTrip")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateTripHandler"))

	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "Unauthenticated")
		api.DomainErrorResponse(w, r, err)
		return
	}

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid trip ID format")
		return
	}

	var patch types.UpdateTripRequest
	if err := api.DecodeJSONBody(w, r, &patch); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	trip, err := h.service.UpdateTrip(ctx, tripID, userID, patch)
	if err != nil {
		l.ErrorContext(ctx, "Service failed to update trip", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update trip")
		api.DomainErrorResponse(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Trip updated")
	api.WriteJSONResponse(w, r, http.StatusOK, trip)
}

// DeleteTripHandler godoc
// @Summary      Delete a trip, its budget and all its activities
// @Tags         trips
// @Security     BearerAuth
// @Param        tripID path string true "trip ID"
// @Success      204
// @Router       /trips/{tripID} [delete]
func (h *HandlerImpl) DeleteTripHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TripHandler").Start(r.Context(), "DeleteTrip")
	defer span.End()

	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "Unauthenticated")
		api.DomainErrorResponse(w, r, err)
		return
	}

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid trip ID format")
		return
	}

	if err := h.service.DeleteTrip(ctx, tripID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete trip")
		api.DomainErrorResponse(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Trip deleted")
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// ShareTripHandler godoc
// @Summary      Mint a share token for a trip
// @Tags         trips
// @Security     BearerAuth
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Success      200 {object} map[string]string
// @Router       /trips/{tripID}/share [post]
func (h *HandlerImpl) ShareTripHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TripHandler").Start(r.Context(), "ShareTrip")
	defer span.End()

	userID, err := auth.RequireUserID(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "Unauthenticated")
		api.DomainErrorResponse(w, r, err)
		return
	}

	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid trip ID format")
		return
	}

	token, err := h.service.ShareTrip(ctx, tripID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to share trip")
		api.DomainErrorResponse(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Trip shared")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"share_token": token})
}

// GetSharedTripHandler godoc
// @Summary      Public read-only trip view by share token
// @Tags         trips
// @Produce      json
// @Param        shareToken path string true "share token"
// @Success      200 {object} types.SharedTripResponse
// @Router       /public/trips/{shareToken} [get]
func (h *HandlerImpl) GetSharedTripHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TripHandler").Start(r.Context(), "GetSharedTrip")
	defer span.End()

	token := chi.URLParam(r, "shareToken")
	if token == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Share token required")
		return
	}

	resp, err := h.service.GetSharedTrip(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch shared trip")
		api.DomainErrorResponse(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Shared trip fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
