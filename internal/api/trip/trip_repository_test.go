package trip

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyplan/voyplan/internal/types"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *RepositoryImpl) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return mockPool, NewRepository(mockPool, slog.Default())
}

func sampleTrip() types.Trip {
	now := time.Now()
	return types.Trip{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Name:        "Japan Trip",
		StartDate:   now,
		EndDate:     now.AddDate(0, 0, 9),
		TotalBudget: 100000,
		Status:      types.TripStatusPlanning,
		Cities:      []types.City{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestCreateTripTransaction(t *testing.T) {
	t.Run("CommitsTripBudgetAndCategories", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		trip := sampleTrip()

		mockPool.ExpectBegin()
		mockPool.ExpectExec("INSERT INTO trips").
			WithArgs(trip.ID, trip.UserID, trip.Name, trip.Description, trip.StartDate,
				trip.EndDate, trip.TotalBudget, trip.Status, trip.IsShared, []byte("[]"),
				trip.CreatedAt, trip.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec("INSERT INTO budgets").
			WithArgs(trip.ID, trip.TotalBudget, trip.CreatedAt, trip.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		for _, category := range types.ActivityCategories {
			mockPool.ExpectExec("INSERT INTO budget_categories").
				WithArgs(trip.ID, category).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}
		mockPool.ExpectCommit()

		err := repo.CreateTrip(context.Background(), trip)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("RollsBackWhenBudgetInsertFails", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		trip := sampleTrip()

		mockPool.ExpectBegin()
		mockPool.ExpectExec("INSERT INTO trips").
			WithArgs(trip.ID, trip.UserID, trip.Name, trip.Description, trip.StartDate,
				trip.EndDate, trip.TotalBudget, trip.Status, trip.IsShared, []byte("[]"),
				trip.CreatedAt, trip.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec("INSERT INTO budgets").
			WithArgs(trip.ID, trip.TotalBudget, trip.CreatedAt, trip.UpdatedAt).
			WillReturnError(errors.New("disk full"))
		mockPool.ExpectRollback()

		err := repo.CreateTrip(context.Background(), trip)

		assert.Error(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestUpdateTripTransaction(t *testing.T) {
	t.Run("SyncsBudgetTotalWithTheTripDocument", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		trip := sampleTrip()
		trip.TotalBudget = 120000

		mockPool.ExpectBegin()
		mockPool.ExpectExec("UPDATE trips").
			WithArgs(trip.Name, trip.Description, trip.StartDate, trip.EndDate,
				trip.TotalBudget, trip.Status, []byte("[]"), trip.UpdatedAt, trip.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec("UPDATE budgets SET total").
			WithArgs(trip.ID, trip.TotalBudget, trip.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()

		err := repo.UpdateTrip(context.Background(), trip)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("UnknownTripRollsBack", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		trip := sampleTrip()

		mockPool.ExpectBegin()
		mockPool.ExpectExec("UPDATE trips").
			WithArgs(trip.Name, trip.Description, trip.StartDate, trip.EndDate,
				trip.TotalBudget, trip.Status, []byte("[]"), trip.UpdatedAt, trip.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectRollback()

		err := repo.UpdateTrip(context.Background(), trip)

		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestDeleteTripTransaction(t *testing.T) {
	tripID := uuid.New()

	t.Run("CascadesInOneTransaction", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec("DELETE FROM expenses").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))
		mockPool.ExpectExec("DELETE FROM budget_categories").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 8))
		mockPool.ExpectExec("DELETE FROM budgets").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mockPool.ExpectExec("DELETE FROM activities").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mockPool.ExpectExec("DELETE FROM trips").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mockPool.ExpectCommit()

		err := repo.DeleteTrip(context.Background(), tripID)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("RollsBackWhenAStepFails", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec("DELETE FROM expenses").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec("DELETE FROM budget_categories").WithArgs(tripID).
			WillReturnError(errors.New("connection reset"))
		mockPool.ExpectRollback()

		err := repo.DeleteTrip(context.Background(), tripID)

		assert.Error(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("ReturnsNotFoundForUnknownTrip", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec("DELETE FROM expenses").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec("DELETE FROM budget_categories").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec("DELETE FROM budgets").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec("DELETE FROM activities").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec("DELETE FROM trips").WithArgs(tripID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectRollback()

		err := repo.DeleteTrip(context.Background(), tripID)

		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSetShareToken(t *testing.T) {
	mockPool, repo := newMockRepo(t)
	tripID := uuid.New()
	token := uuid.NewString()

	mockPool.ExpectExec("UPDATE trips SET is_shared = TRUE").WithArgs(tripID, token).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SetShareToken(context.Background(), tripID, token)

	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
