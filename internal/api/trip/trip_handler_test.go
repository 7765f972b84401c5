package trip

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/voyplan/voyplan/internal/api/auth"
	"github.com/voyplan/voyplan/internal/types"
)

type MockTripService struct {
	mock.Mock
}

func (m *MockTripService) CreateTrip(ctx context.Context, userID uuid.UUID, req types.CreateTripRequest) (*types.Trip, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Trip), args.Error(1)
}

func (m *MockTripService) GetTrip(ctx context.Context, tripID, userID uuid.UUID) (*types.Trip, error) {
	args := m.Called(ctx, tripID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Trip), args.Error(1)
}

func (m *MockTripService) ListTrips(ctx context.Context, userID uuid.UUID, filter types.ListTripsFilter) ([]*types.Trip, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Trip), args.Error(1)
}

func (m *MockTripService) UpdateTrip(ctx context.Context, tripID, userID uuid.UUID, patch types.UpdateTripRequest) (*types.Trip, error) {
	args := m.Called(ctx, tripID, userID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Trip), args.Error(1)
}

func (m *MockTripService) DeleteTrip(ctx context.Context, tripID, userID uuid.UUID) error {
	args := m.Called(ctx, tripID, userID)
	return args.Error(0)
}

func (m *MockTripService) ShareTrip(ctx context.Context, tripID, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, tripID, userID)
	return args.String(0), args.Error(1)
}

func (m *MockTripService) GetSharedTrip(ctx context.Context, token string) (*types.SharedTripResponse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SharedTripResponse), args.Error(1)
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, uuid.NewString())
	return req.WithContext(ctx)
}

func TestListTripsSortValidation(t *testing.T) {
	t.Run("UnknownSortFieldIsBadRequest", func(t *testing.T) {
		mockService := new(MockTripService)
		handler := NewHandler(mockService, slog.Default())

		req := authedRequest(http.MethodGet, "/trips?sort_by=budget")
		w := httptest.NewRecorder()

		handler.ListTripsHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "ListTrips", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("SupportedSortFieldPassesThrough", func(t *testing.T) {
		mockService := new(MockTripService)
		handler := NewHandler(mockService, slog.Default())

		mockService.On("ListTrips", mock.Anything, mock.Anything,
			types.ListTripsFilter{SortBy: "start_date"}).Return([]*types.Trip{}, nil).Once()

		req := authedRequest(http.MethodGet, "/trips?sort_by=start_date")
		w := httptest.NewRecorder()

		handler.ListTripsHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})
}
