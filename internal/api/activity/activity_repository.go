package activity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/voyplan/voyplan/internal/api"
	"github.com/voyplan/voyplan/internal/api/budget"
	"github.com/voyplan/voyplan/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository defines persistence for activities. Every cost-affecting write
// applies its budget delta inside the same transaction as the row change.
type Repository interface {
	CreateActivity(ctx context.Context, activity types.Activity) error
	GetActivity(ctx context.Context, activityID uuid.UUID) (*types.Activity, error)
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]*types.Activity, error)
	ListByCity(ctx context.Context, tripID, cityID uuid.UUID) ([]*types.Activity, error)
	UpdateActivity(ctx context.Context, activity types.Activity) error
	DeleteActivity(ctx context.Context, activityID uuid.UUID) error
	ToggleFavorite(ctx context.Context, activityID uuid.UUID) (*types.Activity, error)
	ToggleCompleted(ctx context.Context, activityID uuid.UUID) (*types.Activity, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	db     api.DB
}

func NewRepository(db api.DB, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		db:     db,
	}
}

const activityColumns = `id, trip_id, city_id, name, description, category, cost, duration,
       location, group_size, tags, notes, is_favorite, is_completed, created_at, updated_at`

// CreateActivity inserts the row and adds its cost to the category spent
// figure in one transaction. A missing budget aborts the whole write.
func (r *RepositoryImpl) CreateActivity(ctx context.Context, activity types.Activity) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", api.MapStoreError(err))
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO activities (
            id, trip_id, city_id, name, description, category, cost, duration,
            location, group_size, tags, notes, is_favorite, is_completed, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `
	_, err = tx.Exec(ctx, query,
		activity.ID, activity.TripID, activity.CityID, activity.Name, activity.Description,
		activity.Category, activity.Cost, activity.Duration, activity.Location, activity.GroupSize,
		activity.Tags, activity.Notes, activity.IsFavorite, activity.IsCompleted,
		activity.CreatedAt, activity.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert activity", slog.Any("error", err))
		return fmt.Errorf("failed to insert activity: %w", api.MapStoreError(err))
	}

	if activity.Cost != 0 {
		if err := budget.ApplyCostDelta(ctx, tx, activity.TripID, activity.Category, activity.Cost); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", api.MapStoreError(err))
	}
	return nil
}

func (r *RepositoryImpl) GetActivity(ctx context.Context, activityID uuid.UUID) (*types.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`
	return r.scanActivity(ctx, r.db.QueryRow(ctx, query, activityID))
}

func (r *RepositoryImpl) scanActivity(ctx context.Context, row pgx.Row) (*types.Activity, error) {
	var activity types.Activity
	err := row.Scan(
		&activity.ID, &activity.TripID, &activity.CityID, &activity.Name, &activity.Description,
		&activity.Category, &activity.Cost, &activity.Duration, &activity.Location,
		&activity.GroupSize, &activity.Tags, &activity.Notes, &activity.IsFavorite,
		&activity.IsCompleted, &activity.CreatedAt, &activity.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("activity not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get activity", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get activity: %w", api.MapStoreError(err))
	}
	return &activity, nil
}

func (r *RepositoryImpl) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]*types.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE trip_id = $1 ORDER BY created_at ASC`
	return r.listActivities(ctx, query, tripID)
}

func (r *RepositoryImpl) ListByCity(ctx context.Context, tripID, cityID uuid.UUID) ([]*types.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE trip_id = $1 AND city_id = $2 ORDER BY created_at ASC`
	return r.listActivities(ctx, query, tripID, cityID)
}

func (r *RepositoryImpl) listActivities(ctx context.Context, query string, args ...any) ([]*types.Activity, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list activities", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list activities: %w", api.MapStoreError(err))
	}
	defer rows.Close()

	var activities []*types.Activity
	for rows.Next() {
		var activity types.Activity
		err := rows.Scan(
			&activity.ID, &activity.TripID, &activity.CityID, &activity.Name, &activity.Description,
			&activity.Category, &activity.Cost, &activity.Duration, &activity.Location,
			&activity.GroupSize, &activity.Tags, &activity.Notes, &activity.IsFavorite,
			&activity.IsCompleted, &activity.CreatedAt, &activity.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, &activity)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", api.MapStoreError(err))
	}
	return activities, nil
}

// UpdateActivity rewrites the row and moves the cost between category
// buckets in one transaction. The old row is locked first so a concurrent
// update cannot double-apply a delta.
func (r *RepositoryImpl) UpdateActivity(ctx context.Context, activity types.Activity) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", api.MapStoreError(err))
	}
	defer tx.Rollback(ctx)

	var oldCategory types.ActivityCategory
	var oldCost float64
	err = tx.QueryRow(ctx,
		`SELECT category, cost FROM activities WHERE id = $1 FOR UPDATE`, activity.ID,
	).Scan(&oldCategory, &oldCost)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("activity not found: %w", types.ErrNotFound)
		}
		return fmt.Errorf("failed to lock activity: %w", api.MapStoreError(err))
	}

	query := `
        UPDATE activities
        SET city_id = $1, name = $2, description = $3, category = $4, cost = $5,
            duration = $6, location = $7, group_size = $8, tags = $9, notes = $10,
            updated_at = $11
        WHERE id = $12
    `
	_, err = tx.Exec(ctx, query,
		activity.CityID, activity.Name, activity.Description, activity.Category, activity.Cost,
		activity.Duration, activity.Location, activity.GroupSize, activity.Tags, activity.Notes,
		activity.UpdatedAt, activity.ID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update activity", slog.Any("error", err))
		return fmt.Errorf("failed to update activity: %w", api.MapStoreError(err))
	}

	if oldCategory == activity.Category {
		if delta := activity.Cost - oldCost; delta != 0 {
			if err := budget.ApplyCostDelta(ctx, tx, activity.TripID, activity.Category, delta); err != nil {
				return err
			}
		}
	} else {
		if err := budget.ApplyCostDelta(ctx, tx, activity.TripID, oldCategory, -oldCost); err != nil {
			return err
		}
		if err := budget.ApplyCostDelta(ctx, tx, activity.TripID, activity.Category, activity.Cost); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", api.MapStoreError(err))
	}
	return nil
}

// DeleteActivity removes the row and subtracts its cost from the category
// spent figure atomically.
func (r *RepositoryImpl) DeleteActivity(ctx context.Context, activityID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", api.MapStoreError(err))
	}
	defer tx.Rollback(ctx)

	var tripID uuid.UUID
	var category types.ActivityCategory
	var cost float64
	err = tx.QueryRow(ctx,
		`DELETE FROM activities WHERE id = $1 RETURNING trip_id, category, cost`, activityID,
	).Scan(&tripID, &category, &cost)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("activity not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to delete activity", slog.Any("error", err))
		return fmt.Errorf("failed to delete activity: %w", api.MapStoreError(err))
	}

	if cost != 0 {
		if err := budget.ApplyCostDelta(ctx, tx, tripID, category, -cost); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", api.MapStoreError(err))
	}
	return nil
}

// ToggleFavorite flips the flag in a single statement, so concurrent toggles
// interleave instead of clobbering each other.
func (r *RepositoryImpl) ToggleFavorite(ctx context.Context, activityID uuid.UUID) (*types.Activity, error) {
	query := `UPDATE activities SET is_favorite = NOT is_favorite, updated_at = now()
              WHERE id = $1 RETURNING ` + activityColumns
	return r.scanActivity(ctx, r.db.QueryRow(ctx, query, activityID))
}

func (r *RepositoryImpl) ToggleCompleted(ctx context.Context, activityID uuid.UUID) (*types.Activity, error) {
	query := `UPDATE activities SET is_completed = NOT is_completed, updated_at = now()
              WHERE id = $1 RETURNING ` + activityColumns
	return r.scanActivity(ctx, r.db.QueryRow(ctx, query, activityID))
}
