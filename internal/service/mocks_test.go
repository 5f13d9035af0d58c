package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/stack501/nodebird-api/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetLocalByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByProvider(ctx context.Context, provider domain.Provider, snsID string) (*domain.User, error) {
	args := m.Called(ctx, provider, snsID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// --- Mock Follow Repository ---

type mockFollowRepository struct {
	mock.Mock
}

func (m *mockFollowRepository) Follow(ctx context.Context, followerID, followingID string) error {
	args := m.Called(ctx, followerID, followingID)
	return args.Error(0)
}

func (m *mockFollowRepository) Followers(ctx context.Context, userID string) ([]domain.FollowRef, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FollowRef), args.Error(1)
}

func (m *mockFollowRepository) Followings(ctx context.Context, userID string) ([]domain.FollowRef, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FollowRef), args.Error(1)
}

// --- Mock Domain Repository ---

type mockDomainRepository struct {
	mock.Mock
}

func (m *mockDomainRepository) Create(ctx context.Context, d *domain.Domain) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDomainRepository) GetByClientSecret(ctx context.Context, secret string) (*domain.Domain, error) {
	args := m.Called(ctx, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Domain), args.Error(1)
}

func (m *mockDomainRepository) ListByOwner(ctx context.Context, userID string) ([]domain.Domain, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Domain), args.Error(1)
}

func (m *mockDomainRepository) ExistsByHost(ctx context.Context, host string) (bool, error) {
	args := m.Called(ctx, host)
	return args.Bool(0), args.Error(1)
}

// --- Mock Session Store ---

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) Save(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	args := m.Called(ctx, sessionID, userID, ttl)
	return args.Error(0)
}

func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

func (m *mockSessionStore) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// --- Mock Event Publisher ---

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishUserJoined(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishDomainRegistered(ctx context.Context, d *domain.Domain) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

// --- Mock OAuth Provider ---

type mockOAuthProvider struct {
	mock.Mock
}

func (m *mockOAuthProvider) Name() domain.Provider {
	return domain.ProviderKakao
}

func (m *mockOAuthProvider) AuthCodeURL(state string) string {
	return "https://kauth.example.test/oauth/authorize?state=" + state
}

func (m *mockOAuthProvider) Exchange(ctx context.Context, code string) (*domain.ExternalProfile, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExternalProfile), args.Error(1)
}
