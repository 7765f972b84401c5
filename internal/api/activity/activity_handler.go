package activity

import (
	"context"
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
	CreateActivityHandler(w http.ResponseWriter, r *http.Request)
	GetActivityHandler(w http.ResponseWriter, r *http.Request)
	ListActivitiesHandler(w http.ResponseWriter, r *http.Request)
	UpdateActivityHandler(w http.ResponseWriter, r *http.Request)
	DeleteActivityHandler(w http.ResponseWriter, r *http.Request)
	ToggleFavoriteHandler(w http.ResponseWriter, r *http.Request)
	ToggleCompletedHandler(w http.ResponseWriter, r *http.Request)
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

func (h *HandlerImpl) activityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	activityID, err := uuid.Parse(chi.URLParam(r, "activityID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid activity ID format")
		return uuid.Nil, false
	}
	return activityID, true
}

// CreateActivityHandler godoc
// @Summary      Add an activity to a trip
// @Tags         activities
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Param        request body types.CreateActivityRequest true "activity payload"
// @Success      201 {object} types.Activity
// @Router       /trips/{tripID}/activities [post]
func (h *HandlerImpl) CreateActivityHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ActivityHandler").Start(r.Context(), "CreateActivity")
	defer span.End()
	l := h.logger.With(slog.String("handler", "CreateActivityHandler"))

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	var req types.CreateActivityRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "activity name is required")
		return
	}
	if !req.Category.Valid() {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Unknown activity category")
		return
	}

	activity, err := h.service.CreateActivity(ctx, tripID, userID, req)
	if err != nil {
		l.ErrorContext(ctx, "Service failed to create activity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create activity")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("activity.id", activity.ID.String()))
	span.SetStatus(codes.Ok, "Activity created")
	api.WriteJSONResponse(w, r, http.StatusCreated, activity)
}

// GetActivityHandler godoc
// @Summary      Fetch a single activity
// @Tags         activities
// @Security     BearerAuth
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Param        activityID path string true "activity ID"
// @Success      200 {object} types.Activity
// @Router       /trips/{tripID}/activities/{activityID} [get]
func (h *HandlerImpl) GetActivityHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ActivityHandler").Start(r.Context(), "GetActivity")
	defer span.End()

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	activityID, ok := h.activityID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("activity.id", activityID.String()))

	activity, err := h.service.GetActivity(ctx, tripID, activityID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get activity")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Activity fetched")
	api.WriteJSONResponse(w, r, http.StatusOK, activity)
}

// ListActivitiesHandler godoc
// @Summary      List a trip's activities, optionally scoped to one city
// @Tags         activities
// @Security     BearerAuth
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Param        cityID query string false "filter by city ID"
// @Success      200 {array} types.Activity
// @Router       /trips/{tripID}/activities [get]
func (h *HandlerImpl) ListActivitiesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ActivityHandler").Start(r.Context(), "ListActivities")
	defer span.End()

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("trip.id", tripID.String()))

	var activities []*types.Activity
	var err error
	if raw := r.URL.Query().Get("cityID"); raw != "" {
		cityID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid city ID format")
			return
		}
		activities, err = h.service.ListCityActivities(ctx, tripID, cityID, userID)
	} else {
		activities, err = h.service.ListActivities(ctx, tripID, userID)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list activities")
		api.DomainErrorResponse(w, r, err)
		return
	}
	if activities == nil {
		activities = []*types.Activity{}
	}
	span.SetStatus(codes.Ok, "Activities listed")
	api.WriteJSONResponse(w, r, http.StatusOK, activities)
}

// UpdateActivityHandler godoc
// @Summary      Patch an activity; cost and category changes move budget figures
// @Tags         activities
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Param        activityID path string true "activity ID"
// @Param        request body types.UpdateActivityRequest true "activity patch"
// @Success      200 {object} types.Activity
// @Router       /trips/{tripID}/activities/{activityID} [patch]
func (h *HandlerImpl) UpdateActivityHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ActivityHandler").Start(r.Context(), "UpdateActivity")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateActivityHandler"))

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	activityID, ok := h.activityID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("activity.id", activityID.String()))

	var patch types.UpdateActivityRequest
	if err := api.DecodeJSONBody(w, r, &patch); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	activity, err := h.service.UpdateActivity(ctx, tripID, activityID, userID, patch)
	if err != nil {
		l.ErrorContext(ctx, "Service failed to update activity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update activity")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Activity updated")
	api.WriteJSONResponse(w, r, http.StatusOK, activity)
}

// DeleteActivityHandler godoc
// @Summary      Delete an activity and release its cost from the budget
// @Tags         activities
// @Security     BearerAuth
// @Param        tripID path string true "trip ID"
// @Param        activityID path string true "activity ID"
// @Success      204
// @Router       /trips/{tripID}/activities/{activityID} [delete]
func (h *HandlerImpl) DeleteActivityHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ActivityHandler").Start(r.Context(), "DeleteActivity")
	defer span.End()
	l := h.logger.With(slog.String("handler", "DeleteActivityHandler"))

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	activityID, ok := h.activityID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("activity.id", activityID.String()))

	if err := h.service.DeleteActivity(ctx, tripID, activityID, userID); err != nil {
		l.ErrorContext(ctx, "Service failed to delete activity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete activity")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Activity deleted")
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavoriteHandler godoc
// @Summary      Flip the favorite flag on an activity
// @Tags         activities
// @Security     BearerAuth
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Param        activityID path string true "activity ID"
// @Success      200 {object} types.Activity
// @Router       /trips/{tripID}/activities/{activityID}/favorite [post]
func (h *HandlerImpl) ToggleFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "ToggleFavorite", h.service.ToggleFavorite)
}

// ToggleCompletedHandler godoc
// @Summary      Flip the completed flag on an activity
// @Tags         activities
// @Security     BearerAuth
// @Produce      json
// @Param        tripID path string true "trip ID"
// @Param        activityID path string true "activity ID"
// @Success      200 {object} types.Activity
// @Router       /trips/{tripID}/activities/{activityID}/complete [post]
func (h *HandlerImpl) ToggleCompletedHandler(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "ToggleCompleted", h.service.ToggleCompleted)
}

func (h *HandlerImpl) toggle(w http.ResponseWriter, r *http.Request, name string,
	flip func(ctx context.Context, tripID, activityID, userID uuid.UUID) (*types.Activity, error)) {
	ctx, span := otel.Tracer("ActivityHandler").Start(r.Context(), name)
	defer span.End()

	userID, tripID, ok := h.pathIDs(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	activityID, ok := h.activityID(w, r)
	if !ok {
		span.SetStatus(codes.Error, "Bad request")
		return
	}
	span.SetAttributes(attribute.String("activity.id", activityID.String()))

	activity, err := flip(ctx, tripID, activityID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to toggle flag")
		api.DomainErrorResponse(w, r, err)
		return
	}
	span.SetStatus(codes.Ok, "Flag toggled")
	api.WriteJSONResponse(w, r, http.StatusOK, activity)
}
