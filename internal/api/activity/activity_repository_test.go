package activity

import (
	"context"
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

func sampleActivity() types.Activity {
	now := time.Now()
	return types.Activity{
		ID:        uuid.New(),
		TripID:    uuid.New(),
		CityID:    uuid.New(),
		Name:      "Tsukiji food tour",
		Category:  types.CategoryFood,
		Cost:      3000,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateActivityTransaction(t *testing.T) {
	t.Run("AppliesCostDeltaInSameTransaction", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		activity := sampleActivity()

		mockPool.ExpectBegin()
		mockPool.ExpectExec("INSERT INTO activities").
			WithArgs(activity.ID, activity.TripID, activity.CityID, activity.Name,
				activity.Description, activity.Category, activity.Cost, activity.Duration,
				activity.Location, activity.GroupSize, activity.Tags, activity.Notes,
				activity.IsFavorite, activity.IsCompleted, activity.CreatedAt, activity.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec("UPDATE budgets SET updated_at").WithArgs(activity.TripID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec("INSERT INTO budget_categories").
			WithArgs(activity.TripID, activity.Category, activity.Cost).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		err := repo.CreateActivity(context.Background(), activity)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("SkipsDeltaForZeroCost", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		activity := sampleActivity()
		activity.Cost = 0

		mockPool.ExpectBegin()
		mockPool.ExpectExec("INSERT INTO activities").
			WithArgs(activity.ID, activity.TripID, activity.CityID, activity.Name,
				activity.Description, activity.Category, activity.Cost, activity.Duration,
				activity.Location, activity.GroupSize, activity.Tags, activity.Notes,
				activity.IsFavorite, activity.IsCompleted, activity.CreatedAt, activity.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		err := repo.CreateActivity(context.Background(), activity)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("RollsBackWhenBudgetIsMissing", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		activity := sampleActivity()

		mockPool.ExpectBegin()
		mockPool.ExpectExec("INSERT INTO activities").
			WithArgs(activity.ID, activity.TripID, activity.CityID, activity.Name,
				activity.Description, activity.Category, activity.Cost, activity.Duration,
				activity.Location, activity.GroupSize, activity.Tags, activity.Notes,
				activity.IsFavorite, activity.IsCompleted, activity.CreatedAt, activity.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec("UPDATE budgets SET updated_at").WithArgs(activity.TripID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectRollback()

		err := repo.CreateActivity(context.Background(), activity)

		assert.ErrorIs(t, err, types.ErrBudgetMissing)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestUpdateActivityTransaction(t *testing.T) {
	t.Run("MovesCostBetweenCategories", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		activity := sampleActivity()
		activity.Category = types.CategoryCulture
		activity.Cost = 5000

		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT category, cost FROM activities").WithArgs(activity.ID).
			WillReturnRows(pgxmock.NewRows([]string{"category", "cost"}).
				AddRow(types.CategoryFood, 3000.0))
		mockPool.ExpectExec("UPDATE activities").
			WithArgs(activity.CityID, activity.Name, activity.Description, activity.Category,
				activity.Cost, activity.Duration, activity.Location, activity.GroupSize,
				activity.Tags, activity.Notes, activity.UpdatedAt, activity.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec("UPDATE budgets SET updated_at").WithArgs(activity.TripID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec("INSERT INTO budget_categories").
			WithArgs(activity.TripID, types.CategoryFood, -3000.0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec("UPDATE budgets SET updated_at").WithArgs(activity.TripID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec("INSERT INTO budget_categories").
			WithArgs(activity.TripID, types.CategoryCulture, 5000.0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		err := repo.UpdateActivity(context.Background(), activity)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("AppliesOnlyTheDifferenceWithinACategory", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		activity := sampleActivity()
		activity.Cost = 5000

		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT category, cost FROM activities").WithArgs(activity.ID).
			WillReturnRows(pgxmock.NewRows([]string{"category", "cost"}).
				AddRow(types.CategoryFood, 3000.0))
		mockPool.ExpectExec("UPDATE activities").
			WithArgs(activity.CityID, activity.Name, activity.Description, activity.Category,
				activity.Cost, activity.Duration, activity.Location, activity.GroupSize,
				activity.Tags, activity.Notes, activity.UpdatedAt, activity.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec("UPDATE budgets SET updated_at").WithArgs(activity.TripID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectExec("INSERT INTO budget_categories").
			WithArgs(activity.TripID, types.CategoryFood, 2000.0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		err := repo.UpdateActivity(context.Background(), activity)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("SkipsDeltaWhenCostUnchanged", func(t *testing.T) {
		mockPool, repo := newMockRepo(t)
		activity := sampleActivity()

		mockPool.ExpectBegin()
		mockPool.ExpectQuery("SELECT category, cost FROM activities").WithArgs(activity.ID).
			WillReturnRows(pgxmock.NewRows([]string{"category", "cost"}).
				AddRow(activity.Category, activity.Cost))
		mockPool.ExpectExec("UPDATE activities").
			WithArgs(activity.CityID, activity.Name, activity.Description, activity.Category,
				activity.Cost, activity.Duration, activity.Location, activity.GroupSize,
				activity.Tags, activity.Notes, activity.UpdatedAt, activity.ID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()

		err := repo.UpdateActivity(context.Background(), activity)

		assert.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestDeleteActivityTransaction(t *testing.T) {
	mockPool, repo := newMockRepo(t)
	activityID := uuid.New()
	tripID := uuid.New()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery("DELETE FROM activities").WithArgs(activityID).
		WillReturnRows(pgxmock.NewRows([]string{"trip_id", "category", "cost"}).
			AddRow(tripID, types.CategoryFood, 3000.0))
	mockPool.ExpectExec("UPDATE budgets SET updated_at").WithArgs(tripID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec("INSERT INTO budget_categories").
		WithArgs(tripID, types.CategoryFood, -3000.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	err := repo.DeleteActivity(context.Background(), activityID)

	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
