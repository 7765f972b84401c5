package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"golang.org/x/crypto/bcrypt"

	"github.com/voyplan/voyplan/config"
	"github.com/voyplan/voyplan/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	Register(ctx context.Context, username, email, password string) error
	Login(ctx context.Context, email, password string) (string, string, error)
	RefreshSession(ctx context.Context, refreshToken string) (string, string, error)
	Logout(ctx context.Context, refreshToken string) error
	OAuthLogin(ctx context.Context, gothUser goth.User) (string, string, error)
	ValidateSession(ctx context.Context, userID uuid.UUID) (*types.User, error)
	InvalidateAllSessions(ctx context.Context, userID uuid.UUID) error
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	jwtCfg config.JWTConfig
}

func NewService(repo Repository, jwtCfg config.JWTConfig, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		jwtCfg: jwtCfg,
	}
}

func (s *ServiceImpl) Register(ctx context.Context, username, email, password string) error {
	l := s.logger.With(slog.String("method", "Register"), slog.String("email", email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if _, err := s.repo.CreateUser(ctx, username, email, string(hash)); err != nil {
		l.ErrorContext(ctx, "Failed to register user", slog.Any("error", err))
		return err
	}

	l.InfoContext(ctx, "User registered")
	return nil
}

func (s *ServiceImpl) Login(ctx context.Context, email, password string) (string, string, error) {
	l := s.logger.With(slog.String("method", "Login"), slog.String("email", email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return "", "", fmt.Errorf("unknown email: %w", types.ErrUnauthenticated)
		}
		return "", "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		l.WarnContext(ctx, "Password mismatch")
		return "", "", fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	return s.issueTokens(ctx, user)
}

// RefreshSession rotates the refresh token: the presented token is
// invalidated and a fresh pair is issued.
func (s *ServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (string, string, error) {
	l := s.logger.With(slog.String("method", "RefreshSession"))

	userID, err := s.repo.GetRefreshTokenUser(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", err
	}

	if err := s.repo.InvalidateRefreshToken(ctx, refreshToken); err != nil {
		return "", "", err
	}

	l.DebugContext(ctx, "Refresh token rotated", slog.String("userID", userID.String()))
	return s.issueTokens(ctx, user)
}

func (s *ServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.InvalidateRefreshToken(ctx, refreshToken)
}

// ValidateSession resolves the bearer token's subject to a live user record.
// A token surviving account deletion reads as unauthenticated, not missing.
func (s *ServiceImpl) ValidateSession(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

// OAuthLogin signs in (or provisions) a user from an external identity
// provider profile and issues the usual token pair.
func (s *ServiceImpl) OAuthLogin(ctx context.Context, gothUser goth.User) (string, string, error) {
	l := s.logger.With(slog.String("method", "OAuthLogin"), slog.String("provider", gothUser.Provider))

	if gothUser.Email == "" {
		return "", "", fmt.Errorf("provider returned no email: %w", types.ErrUnauthenticated)
	}

	username := gothUser.NickName
	if username == "" {
		username = gothUser.Name
	}

	user, err := s.repo.UpsertOAuthUser(ctx, username, gothUser.Email, gothUser.Provider)
	if err != nil {
		l.ErrorContext(ctx, "Failed to upsert oauth user", slog.Any("error", err))
		return "", "", err
	}

	return s.issueTokens(ctx, user)
}

func (s *ServiceImpl) InvalidateAllSessions(ctx context.Context, userID uuid.UUID) error {
	return s.repo.InvalidateAllUserRefreshTokens(ctx, userID)
}

func (s *ServiceImpl) issueTokens(ctx context.Context, user *types.User) (string, string, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken := uuid.NewString()
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return "", "", fmt.Errorf("invalid user id: %w", err)
	}
	expiresAt := time.Now().Add(s.jwtCfg.RefreshTTL)
	if err := s.repo.StoreRefreshToken(ctx, userID, refreshToken, expiresAt); err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (s *ServiceImpl) generateAccessToken(user *types.User) (string, error) {
	now := time.Now()
	claims := types.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.jwtCfg.Issuer,
			Audience:  jwt.ClaimStrings{s.jwtCfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtCfg.AccessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.SecretKey))
}
