package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voyplan/voyplan/internal/api"
	"github.com/voyplan/voyplan/internal/types"
)

var _ Repository = (*RepositoryImpl)(nil)

// Repository defines persistence for users and refresh tokens.
type Repository interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (uuid.UUID, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpsertOAuthUser(ctx context.Context, username, email, provider string) (*types.User, error)
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	GetRefreshTokenUser(ctx context.Context, token string) (uuid.UUID, error)
	InvalidateRefreshToken(ctx context.Context, token string) error
	InvalidateAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error
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

func (r *RepositoryImpl) CreateUser(ctx context.Context, username, email, passwordHash string) (uuid.UUID, error) {
	query := `
        INSERT INTO users (username, email, password_hash, provider)
        VALUES ($1, $2, $3, 'local')
        RETURNING id
    `
	var id uuid.UUID
	err := r.db.QueryRow(ctx, query, username, email, passwordHash).Scan(&id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		return uuid.Nil, fmt.Errorf("failed to create user: %w", api.MapStoreError(err))
	}
	return id, nil
}

func (r *RepositoryImpl) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	query := `
        SELECT id, username, email, password_hash, provider, created_at, updated_at
        FROM users
        WHERE email = $1
    `
	var user types.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.Provider,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", api.MapStoreError(err))
	}
	return &user, nil
}

func (r *RepositoryImpl) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	query := `
        SELECT id, username, email, password_hash, provider, created_at, updated_at
        FROM users
        WHERE id = $1
    `
	var user types.User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.Provider,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", api.MapStoreError(err))
	}
	return &user, nil
}

// UpsertOAuthUser creates or refreshes an account backed by an external
// identity provider. The email is the join key.
func (r *RepositoryImpl) UpsertOAuthUser(ctx context.Context, username, email, provider string) (*types.User, error) {
	query := `
        INSERT INTO users (username, email, provider)
        VALUES ($1, $2, $3)
        ON CONFLICT (email) DO UPDATE SET username = EXCLUDED.username, updated_at = now()
        RETURNING id, username, email, password_hash, provider, created_at, updated_at
    `
	var user types.User
	err := r.db.QueryRow(ctx, query, username, email, provider).Scan(
		&user.ID, &user.Username, &user.Email, &user.Password, &user.Provider,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upsert oauth user", slog.Any("error", err))
		return nil, fmt.Errorf("failed to upsert oauth user: %w", api.MapStoreError(err))
	}
	return &user, nil
}

func (r *RepositoryImpl) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	query := `INSERT INTO refresh_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, query, token, userID, expiresAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to store refresh token", slog.Any("error", err))
		return fmt.Errorf("failed to store refresh token: %w", api.MapStoreError(err))
	}
	return nil
}

// GetRefreshTokenUser resolves a live refresh token to its user. Expired or
// invalidated tokens are treated as unauthenticated, not as missing rows.
func (r *RepositoryImpl) GetRefreshTokenUser(ctx context.Context, token string) (uuid.UUID, error) {
	query := `SELECT user_id, expires_at, invalidated_at FROM refresh_tokens WHERE token = $1`
	var userID uuid.UUID
	var expiresAt time.Time
	var invalidatedAt *time.Time
	err := r.db.QueryRow(ctx, query, token).Scan(&userID, &expiresAt, &invalidatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("refresh token not found: %w", types.ErrUnauthenticated)
	}
	if time.Now().After(expiresAt) || invalidatedAt != nil {
		return uuid.Nil, fmt.Errorf("refresh token expired or invalidated: %w", types.ErrUnauthenticated)
	}
	return userID, nil
}

func (r *RepositoryImpl) InvalidateRefreshToken(ctx context.Context, token string) error {
	query := `UPDATE refresh_tokens SET invalidated_at = now() WHERE token = $1 AND invalidated_at IS NULL`
	_, err := r.db.Exec(ctx, query, token)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to invalidate refresh token", slog.Any("error", err))
		return fmt.Errorf("failed to invalidate refresh token: %w", api.MapStoreError(err))
	}
	return nil
}

func (r *RepositoryImpl) InvalidateAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE refresh_tokens SET invalidated_at = now() WHERE user_id = $1 AND invalidated_at IS NULL`
	_, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to invalidate user refresh tokens", slog.Any("error", err))
		return fmt.Errorf("failed to invalidate user refresh tokens: %w", api.MapStoreError(err))
	}
	return nil
}
