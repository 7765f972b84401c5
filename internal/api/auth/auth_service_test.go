package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/voyplan/voyplan/config"
	"github.com/voyplan/voyplan/internal/types"
)

// MockAuthRepo is a mock implementation of the Repository interface
type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (uuid.UUID, error) {
	args := m.Called(ctx, username, email, passwordHash)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) UpsertOAuthUser(ctx context.Context, username, email, provider string) (*types.User, error) {
	args := m.Called(ctx, username, email, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, token, expiresAt)
	return args.Error(0)
}

func (m *MockAuthRepo) GetRefreshTokenUser(ctx context.Context, token string) (uuid.UUID, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockAuthRepo) InvalidateRefreshToken(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		SecretKey:  "test-secret",
		Issuer:     "voyplan-test",
		Audience:   "voyplan-api",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 168 * time.Hour,
	}
}

func hashedUser(password string) *types.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &types.User{
		ID:       uuid.NewString(),
		Username: "kenji",
		Email:    "kenji@example.com",
		Password: string(hash),
	}
}

func TestRegister(t *testing.T) {
	mockRepo := new(MockAuthRepo)
	service := NewService(mockRepo, testJWTConfig(), slog.Default())

	t.Run("HashesThePassword", func(t *testing.T) {
		ctx := context.Background()
		mockRepo.On("CreateUser", ctx, "kenji", "kenji@example.com", mock.MatchedBy(func(hash string) bool {
			return bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")) == nil
		})).Return(uuid.New(), nil).Once()

		err := service.Register(ctx, "kenji", "kenji@example.com", "s3cret-pass")

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("DuplicateEmailConflicts", func(t *testing.T) {
		ctx := context.Background()
		mockRepo.On("CreateUser", ctx, "kenji", "kenji@example.com", mock.Anything).
			Return(uuid.Nil, types.ErrConflict).Once()

		err := service.Register(ctx, "kenji", "kenji@example.com", "s3cret-pass")

		assert.ErrorIs(t, err, types.ErrConflict)
	})
}

func TestLogin(t *testing.T) {
	cfg := testJWTConfig()
	mockRepo := new(MockAuthRepo)
	service := NewService(mockRepo, cfg, slog.Default())
	user := hashedUser("s3cret-pass")

	t.Run("IssuesSignedTokenPair", func(t *testing.T) {
		ctx := context.Background()
		mockRepo.On("GetUserByEmail", ctx, user.Email).Return(user, nil).Once()
		mockRepo.On("StoreRefreshToken", ctx, mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(nil).Once()

		access, refresh, err := service.Login(ctx, user.Email, "s3cret-pass")

		require.NoError(t, err)
		assert.NotEmpty(t, refresh)

		claims := &types.Claims{}
		parsed, err := jwt.ParseWithClaims(access, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.SecretKey), nil
		})
		require.NoError(t, err)
		assert.True(t, parsed.Valid)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, cfg.Issuer, claims.Issuer)
		mockRepo.AssertExpectations(t)
	})

	t.Run("WrongPasswordIsUnauthenticated", func(t *testing.T) {
		ctx := context.Background()
		freshRepo := new(MockAuthRepo)
		freshService := NewService(freshRepo, cfg, slog.Default())
		freshRepo.On("GetUserByEmail", ctx, user.Email).Return(user, nil).Once()

		_, _, err := freshService.Login(ctx, user.Email, "wrong")

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		freshRepo.AssertNotCalled(t, "StoreRefreshToken", ctx, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownEmailIsUnauthenticated", func(t *testing.T) {
		ctx := context.Background()
		mockRepo.On("GetUserByEmail", ctx, "ghost@example.com").Return(nil, types.ErrNotFound).Once()

		_, _, err := service.Login(ctx, "ghost@example.com", "whatever")

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})
}

func TestRefreshSession(t *testing.T) {
	mockRepo := new(MockAuthRepo)
	service := NewService(mockRepo, testJWTConfig(), slog.Default())
	user := hashedUser("s3cret-pass")
	userID := uuid.MustParse(user.ID)

	t.Run("RotatesTheRefreshToken", func(t *testing.T) {
		ctx := context.Background()
		oldToken := uuid.NewString()
		mockRepo.On("GetRefreshTokenUser", ctx, oldToken).Return(userID, nil).Once()
		mockRepo.On("GetUserByID", ctx, userID).Return(user, nil).Once()
		mockRepo.On("InvalidateRefreshToken", ctx, oldToken).Return(nil).Once()
		mockRepo.On("StoreRefreshToken", ctx, userID, mock.MatchedBy(func(newToken string) bool {
			return newToken != oldToken
		}), mock.Anything).Return(nil).Once()

		access, refresh, err := service.RefreshSession(ctx, oldToken)

		require.NoError(t, err)
		assert.NotEmpty(t, access)
		assert.NotEqual(t, oldToken, refresh)
		mockRepo.AssertExpectations(t)
	})

	t.Run("ExpiredTokenIsRejected", func(t *testing.T) {
		ctx := context.Background()
		staleToken := uuid.NewString()
		mockRepo.On("GetRefreshTokenUser", ctx, staleToken).
			Return(uuid.Nil, types.ErrUnauthenticated).Once()

		_, _, err := service.RefreshSession(ctx, staleToken)

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		mockRepo.AssertNotCalled(t, "InvalidateRefreshToken", ctx, staleToken)
	})
}

func TestLogout(t *testing.T) {
	mockRepo := new(MockAuthRepo)
	service := NewService(mockRepo, testJWTConfig(), slog.Default())

	ctx := context.Background()
	token := uuid.NewString()
	mockRepo.On("InvalidateRefreshToken", ctx, token).Return(nil).Once()

	err := service.Logout(ctx, token)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestValidateSession(t *testing.T) {
	t.Run("ReturnsTheTokenSubject", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := NewService(mockRepo, testJWTConfig(), slog.Default())

		ctx := context.Background()
		user := hashedUser("irrelevant")
		userID := uuid.MustParse(user.ID)
		mockRepo.On("GetUserByID", ctx, userID).Return(user, nil).Once()

		got, err := service.ValidateSession(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
		mockRepo.AssertExpectations(t)
	})

	t.Run("DeletedUserReadsAsUnauthenticated", func(t *testing.T) {
		mockRepo := new(MockAuthRepo)
		service := NewService(mockRepo, testJWTConfig(), slog.Default())

		ctx := context.Background()
		userID := uuid.New()
		mockRepo.On("GetUserByID", ctx, userID).Return(nil, types.ErrNotFound).Once()

		_, err := service.ValidateSession(ctx, userID)

		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})
}
