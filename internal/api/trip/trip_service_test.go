package trip

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/voyplan/voyplan/internal/types"
)

// MockTripRepo is a mock implementation of the Repository interface
type MockTripRepo struct {
	mock.Mock
}

func (m *MockTripRepo) CreateTrip(ctx context.Context, trip types.Trip) error {
	args := m.Called(ctx, trip)
	return args.Error(0)
}

func (m *MockTripRepo) GetTrip(ctx context.Context, tripID uuid.UUID) (*types.Trip, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Trip), args.Error(1)
}

func (m *MockTripRepo) GetTripByShareToken(ctx context.Context, token string) (*types.Trip, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Trip), args.Error(1)
}

func (m *MockTripRepo) ListTripsByUser(ctx context.Context, userID uuid.UUID, filter types.ListTripsFilter) ([]*types.Trip, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*types.Trip), args.Error(1)
}

func (m *MockTripRepo) UpdateTrip(ctx context.Context, trip types.Trip) error {
	args := m.Called(ctx, trip)
	return args.Error(0)
}

func (m *MockTripRepo) DeleteTrip(ctx context.Context, tripID uuid.UUID) error {
	args := m.Called(ctx, tripID)
	return args.Error(0)
}

func (m *MockTripRepo) SetShareToken(ctx context.Context, tripID uuid.UUID, token string) error {
	args := m.Called(ctx, tripID, token)
	return args.Error(0)
}

// MockSummarizer is a mock implementation of the Summarizer interface
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) CalculateSummary(ctx context.Context, tripID uuid.UUID) (*types.BudgetSummary, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.BudgetSummary), args.Error(1)
}

func newTestService() (*MockTripRepo, *MockSummarizer, *ServiceImpl) {
	mockRepo := new(MockTripRepo)
	mockSummarizer := new(MockSummarizer)
	return mockRepo, mockSummarizer, NewService(mockRepo, mockSummarizer, slog.Default())
}

func ownedTrip(userID uuid.UUID) *types.Trip {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return &types.Trip{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        "Japan Trip",
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 9),
		TotalBudget: 100000,
		Status:      types.TripStatusPlanning,
		Cities: []types.City{
			{ID: uuid.New(), Name: "Tokyo", Country: "Japan"},
		},
	}
}

func TestCreateTrip(t *testing.T) {
	t.Run("AssignsIDsAndDefaults", func(t *testing.T) {
		mockRepo, _, service := newTestService()
		ctx := context.Background()
		userID := uuid.New()

		mockRepo.On("CreateTrip", mock.Anything, mock.MatchedBy(func(trip types.Trip) bool {
			return trip.UserID == userID &&
				trip.ID != uuid.Nil &&
				trip.Status == types.TripStatusPlanning &&
				!trip.IsShared &&
				len(trip.Cities) == 1 &&
				trip.Cities[0].ID != uuid.Nil
		})).Return(nil).Once()

		trip, err := service.CreateTrip(ctx, userID, types.CreateTripRequest{
			Name:   "Japan Trip",
			Budget: 100000,
			Cities: []types.City{{Name: "Tokyo", Country: "Japan"}},
		})

		require.NoError(t, err)
		assert.Equal(t, 100000.0, trip.TotalBudget)
		mockRepo.AssertExpectations(t)
	})

	t.Run("RejectsAnonymousCaller", func(t *testing.T) {
		mockRepo, _, service := newTestService()

		_, err := service.CreateTrip(context.Background(), uuid.Nil, types.CreateTripRequest{Name: "x"})

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		mockRepo.AssertNotCalled(t, "CreateTrip", mock.Anything, mock.Anything)
	})
}

func TestOwnershipIsolation(t *testing.T) {
	owner := uuid.New()
	intruder := uuid.New()

	t.Run("GetRejectsNonOwner", func(t *testing.T) {
		mockRepo, _, service := newTestService()
		trip := ownedTrip(owner)
		mockRepo.On("GetTrip", mock.Anything, trip.ID).Return(trip, nil).Once()

		got, err := service.GetTrip(context.Background(), trip.ID, intruder)

		assert.Nil(t, got)
		assert.ErrorIs(t, err, types.ErrForbidden)
	})

	t.Run("UpdateLeavesTripUntouchedForNonOwner", func(t *testing.T) {
		mockRepo, _, service := newTestService()
		trip := ownedTrip(owner)
		mockRepo.On("GetTrip", mock.Anything, trip.ID).Return(trip, nil).Once()

		name := "hijacked"
		got, err := service.UpdateTrip(context.Background(), trip.ID, intruder, types.UpdateTripRequest{Name: &name})

		assert.Nil(t, got)
		assert.ErrorIs(t, err, types.ErrForbidden)
		mockRepo.AssertNotCalled(t, "UpdateTrip", mock.Anything, mock.Anything)
	})

	t.Run("DeleteLeavesTripUntouchedForNonOwner", func(t *testing.T) {
		mockRepo, _, service := newTestService()
		trip := ownedTrip(owner)
		mockRepo.On("GetTrip", mock.Anything, trip.ID).Return(trip, nil).Once()

		err := service.DeleteTrip(context.Background(), trip.ID, intruder)

		assert.ErrorIs(t, err, types.ErrForbidden)
		mockRepo.AssertNotCalled(t, "DeleteTrip", mock.Anything, trip.ID)
	})

	t.Run("ShareRejectsNonOwner", func(t *testing.T) {
		mockRepo, _, service := newTestService()
		trip := ownedTrip(owner)
		mockRepo.On("GetTrip", mock.Anything, trip.ID).Return(trip, nil).Once()

		token, err := service.ShareTrip(context.Background(), trip.ID, intruder)

		assert.Empty(t, token)
		assert.ErrorIs(t, err, types.ErrForbidden)
		mockRepo.AssertNotCalled(t, "SetShareToken", mock.Anything, trip.ID, mock.Anything)
	})
}

func TestUpdateTripMergePatch(t *testing.T) {
	mockRepo, _, service := newTestService()
	owner := uuid.New()
	trip := ownedTrip(owner)

	mockRepo.On("GetTrip", mock.Anything, trip.ID).Return(trip, nil).Once()
	mockRepo.On("UpdateTrip", mock.Anything, mock.MatchedBy(func(updated types.Trip) bool {
		// Only the patched fields move.
		return updated.Name == "Honeymoon" &&
			updated.TotalBudget == trip.TotalBudget &&
			updated.Status == types.TripStatusOngoing
	})).Return(nil).Once()

	name := "Honeymoon"
	status := types.TripStatusOngoing
	updated, err := service.UpdateTrip(context.Background(), trip.ID, owner, types.UpdateTripRequest{
		Name:   &name,
		Status: &status,
	})

	require.NoError(t, err)
	assert.Equal(t, "Honeymoon", updated.Name)
	mockRepo.AssertExpectations(t)
}

func TestShareTrip(t *testing.T) {
	t.Run("MintsOpaqueToken", func(t *testing.T) {
		mockRepo, _, service := newTestService()
		owner := uuid.New()
		trip := ownedTrip(owner)

		mockRepo.On("GetTrip", mock.Anything, trip.ID).Return(trip, nil).Once()
		mockRepo.On("SetShareToken", mock.Anything, trip.ID, mock.AnythingOfType("string")).Return(nil).Once()

		token, err := service.ShareTrip(context.Background(), trip.ID, owner)

		require.NoError(t, err)
		_, parseErr := uuid.Parse(token)
		assert.NoError(t, parseErr)
		mockRepo.AssertExpectations(t)
	})

	t.Run("RepeatedSharesReplaceTheToken", func(t *testing.T) {
		mockRepo, _, service := newTestService()
		owner := uuid.New()
		trip := ownedTrip(owner)

		mockRepo.On("GetTrip", mock.Anything, trip.ID).Return(trip, nil).Twice()
		mockRepo.On("SetShareToken", mock.Anything, trip.ID, mock.AnythingOfType("string")).Return(nil).Twice()

		first, err := service.ShareTrip(context.Background(), trip.ID, owner)
		require.NoError(t, err)
		second, err := service.ShareTrip(context.Background(), trip.ID, owner)
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})
}

func TestGetSharedTrip(t *testing.T) {
	t.Run("BundlesTripAndSummary", func(t *testing.T) {
		mockRepo, mockSummarizer, service := newTestService()
		trip := ownedTrip(uuid.New())
		token := uuid.NewString()
		trip.IsShared = true
		trip.ShareToken = &token
		summary := &types.BudgetSummary{TotalBudget: 100000, TotalSpent: 5000}

		mockRepo.On("GetTripByShareToken", mock.Anything, token).Return(trip, nil).Once()
		mockSummarizer.On("CalculateSummary", mock.Anything, trip.ID).Return(summary, nil).Once()

		resp, err := service.GetSharedTrip(context.Background(), token)

		require.NoError(t, err)
		assert.Equal(t, trip, resp.Trip)
		assert.Equal(t, summary, resp.Summary)
		mockSummarizer.AssertExpectations(t)
	})

	t.Run("SecondReadIsServedFromCache", func(t *testing.T) {
		mockRepo, mockSummarizer, service := newTestService()
		trip := ownedTrip(uuid.New())
		token := uuid.NewString()
		trip.IsShared = true
		trip.ShareToken = &token
		summary := &types.BudgetSummary{TotalBudget: 100000}

		mockRepo.On("GetTripByShareToken", mock.Anything, token).Return(trip, nil).Once()
		mockSummarizer.On("CalculateSummary", mock.Anything, trip.ID).Return(summary, nil).Once()

		first, err := service.GetSharedTrip(context.Background(), token)
		require.NoError(t, err)
		second, err := service.GetSharedTrip(context.Background(), token)
		require.NoError(t, err)

		assert.Same(t, first, second)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UnknownTokenIsNotFound", func(t *testing.T) {
		mockRepo, _, service := newTestService()
		token := uuid.NewString()
		mockRepo.On("GetTripByShareToken", mock.Anything, token).Return(nil, types.ErrNotFound).Once()

		resp, err := service.GetSharedTrip(context.Background(), token)

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}
