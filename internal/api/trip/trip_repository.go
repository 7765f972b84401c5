package trip

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/voyplan/voyplan/internal/api"
	"github.com/voyplan/voyplan/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository defines persistence for trips and their companion budgets.
type Repository interface {
	CreateTrip(ctx context.Context, trip types.Trip) error
	GetTrip(ctx context.Context, tripID uuid.UUID) (*types.Trip, error)
	GetTripByShareToken(ctx context.Context, token string) (*types.Trip, error)
	ListTripsByUser(ctx context.Context, userID uuid.UUID, filter types.ListTripsFilter) ([]*types.Trip, error)
	UpdateTrip(ctx context.Context, trip types.Trip) error
	DeleteTrip(ctx context.Context, tripID uuid.UUID) error
	SetShareToken(ctx context.Context, tripID uuid.UUID, token string) error
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

const tripColumns = `id, user_id, name, description, start_date, end_date, total_budget,
       status, is_shared, share_token, cities, created_at, updated_at`

// CreateTrip inserts the trip, its budget and the zeroed category rows in a
// single transaction: either the trip and its whole budget exist, or nothing.
func (r *RepositoryImpl) CreateTrip(ctx context.Context, trip types.Trip) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", api.MapStoreError(err))
	}
	defer tx.Rollback(ctx)

	citiesJSON, err := json.Marshal(trip.Cities)
	if err != nil {
		return fmt.Errorf("failed to marshal cities: %w", err)
	}

	tripQuery := `
        INSERT INTO trips (
            id, user_id, name, description, start_date, end_date, total_budget,
            status, is_shared, cities, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err = tx.Exec(ctx, tripQuery,
		trip.ID, trip.UserID, trip.Name, trip.Description, trip.StartDate, trip.EndDate,
		trip.TotalBudget, trip.Status, trip.IsShared, citiesJSON, trip.CreatedAt, trip.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert trip", slog.Any("error", err))
		return fmt.Errorf("failed to insert trip: %w", api.MapStoreError(err))
	}

	budgetQuery := `
        INSERT INTO budgets (trip_id, total, created_at, updated_at)
        VALUES ($1, $2, $3, $4)
    `
	_, err = tx.Exec(ctx, budgetQuery, trip.ID, trip.TotalBudget, trip.CreatedAt, trip.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert companion budget", slog.Any("error", err))
		return fmt.Errorf("failed to insert companion budget: %w", api.MapStoreError(err))
	}

	catQuery := `INSERT INTO budget_categories (trip_id, category, allocated, spent) VALUES ($1, $2, 0, 0)`
	for _, category := range types.ActivityCategories {
		if _, err = tx.Exec(ctx, catQuery, trip.ID, category); err != nil {
			r.logger.ErrorContext(ctx, "Failed to insert budget category", slog.Any("error", err))
			return fmt.Errorf("failed to insert budget category: %w", api.MapStoreError(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", api.MapStoreError(err))
	}
	return nil
}

func (r *RepositoryImpl) GetTrip(ctx context.Context, tripID uuid.UUID) (*types.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	return r.scanTrip(ctx, r.db.QueryRow(ctx, query, tripID))
}

func (r *RepositoryImpl) GetTripByShareToken(ctx context.Context, token string) (*types.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE share_token = $1 AND is_shared = TRUE`
	return r.scanTrip(ctx, r.db.QueryRow(ctx, query, token))
}

func (r *RepositoryImpl) scanTrip(ctx context.Context, row pgx.Row) (*types.Trip, error) {
	var trip types.Trip
	var citiesJSON []byte
	err := row.Scan(
		&trip.ID, &trip.UserID, &trip.Name, &trip.Description, &trip.StartDate, &trip.EndDate,
		&trip.TotalBudget, &trip.Status, &trip.IsShared, &trip.ShareToken, &citiesJSON,
		&trip.CreatedAt, &trip.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("trip not found: %w", types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to get trip", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get trip: %w", api.MapStoreError(err))
	}
	if err := json.Unmarshal(citiesJSON, &trip.Cities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cities: %w", err)
	}
	return &trip, nil
}

// ListTripsByUser returns the owner's trips, optionally filtered by status.
// Ties within the sort column keep store-native order.
func (r *RepositoryImpl) ListTripsByUser(ctx context.Context, userID uuid.UUID, filter types.ListTripsFilter) ([]*types.Trip, error) {
	orderBy, ok := map[string]string{
		"":           "created_at DESC",
		"created_at": "created_at DESC",
		"start_date": "start_date ASC",
		"name":       "name ASC",
	}[filter.SortBy]
	if !ok {
		return nil, fmt.Errorf("unsupported sort field %q", filter.SortBy)
	}

	query := `SELECT ` + tripColumns + ` FROM trips WHERE user_id = $1`
	args := []interface{}{userID}
	if filter.Status != nil {
		query += ` AND status = $2`
		args = append(args, *filter.Status)
	}
	query += ` ORDER BY ` + orderBy
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list trips", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list trips: %w", api.MapStoreError(err))
	}
	defer rows.Close()

	var trips []*types.Trip
	for rows.Next() {
		var trip types.Trip
		var citiesJSON []byte
		err := rows.Scan(
			&trip.ID, &trip.UserID, &trip.Name, &trip.Description, &trip.StartDate, &trip.EndDate,
			&trip.TotalBudget, &trip.Status, &trip.IsShared, &trip.ShareToken, &citiesJSON,
			&trip.CreatedAt, &trip.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		if err := json.Unmarshal(citiesJSON, &trip.Cities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cities: %w", err)
		}
		trips = append(trips, &trip)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trip rows: %w", api.MapStoreError(err))
	}
	return trips, nil
}

func (r *RepositoryImpl) UpdateTrip(ctx context.Context, trip types.Trip) error {
	citiesJSON, err := json.Marshal(trip.Cities)
	if err != nil {
		return fmt.Errorf("failed to marshal cities: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", api.MapStoreError(err))
	}
	defer tx.Rollback(ctx)

	query := `
        UPDATE trips
        SET name = $1, description = $2, start_date = $3, end_date = $4,
            total_budget = $5, status = $6, cities = $7, updated_at = $8
        WHERE id = $9
    `
	result, err := tx.Exec(ctx, query,
		trip.Name, trip.Description, trip.StartDate, trip.EndDate,
		trip.TotalBudget, trip.Status, citiesJSON, trip.UpdatedAt, trip.ID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update trip", slog.Any("error", err))
		return fmt.Errorf("failed to update trip: %w", api.MapStoreError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no trip with ID %s: %w", trip.ID, types.ErrNotFound)
	}

	// The companion budget carries the same total; keep the two in step.
	_, err = tx.Exec(ctx,
		`UPDATE budgets SET total = $2, updated_at = $3 WHERE trip_id = $1`,
		trip.ID, trip.TotalBudget, trip.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to sync companion budget total", slog.Any("error", err))
		return fmt.Errorf("failed to sync companion budget total: %w", api.MapStoreError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", api.MapStoreError(err))
	}
	return nil
}

// DeleteTrip removes the trip and everything hanging off it in a single
// transaction; a reader can never observe a partial cascade.
func (r *RepositoryImpl) DeleteTrip(ctx context.Context, tripID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", api.MapStoreError(err))
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM expenses WHERE trip_id = $1`,
		`DELETE FROM budget_categories WHERE trip_id = $1`,
		`DELETE FROM budgets WHERE trip_id = $1`,
		`DELETE FROM activities WHERE trip_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, tripID); err != nil {
			r.logger.ErrorContext(ctx, "Failed cascade delete step", slog.Any("error", err))
			return fmt.Errorf("failed cascade delete: %w", api.MapStoreError(err))
		}
	}

	result, err := tx.Exec(ctx, `DELETE FROM trips WHERE id = $1`, tripID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete trip", slog.Any("error", err))
		return fmt.Errorf("failed to delete trip: %w", api.MapStoreError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no trip with ID %s: %w", tripID, types.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", api.MapStoreError(err))
	}
	return nil
}

// SetShareToken marks the trip shared. Repeated calls overwrite the token:
// last write wins.
func (r *RepositoryImpl) SetShareToken(ctx context.Context, tripID uuid.UUID, token string) error {
	query := `UPDATE trips SET is_shared = TRUE, share_token = $2, updated_at = now() WHERE id = $1`
	result, err := r.db.Exec(ctx, query, tripID, token)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to set share token", slog.Any("error", err))
		return fmt.Errorf("failed to set share token: %w", api.MapStoreError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no trip with ID %s: %w", tripID, types.ErrNotFound)
	}
	return nil
}
