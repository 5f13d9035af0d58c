package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stack501/nodebird-api/internal/admission"
	"github.com/stack501/nodebird-api/internal/auth"
	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/event"
	"github.com/stack501/nodebird-api/internal/service"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
	"github.com/stack501/nodebird-api/pkg/health"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ============================================================================
// In-memory stores
// ============================================================================

type memStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	follows  map[[2]string]time.Time
	domains  map[string]*domain.Domain
	sessions map[string]string

	// sessionErr, when set, is returned by every session lookup.
	sessionErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*domain.User),
		follows:  make(map[[2]string]time.Time),
		domains:  make(map[string]*domain.Domain),
		sessions: make(map[string]string),
	}
}

type memUsers struct{ *memStore }

func (s memUsers) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if user.Provider == domain.ProviderLocal && u.Provider == domain.ProviderLocal &&
			strings.EqualFold(u.Email, user.Email) {
			return apperrors.AlreadyExists("user", "email", user.Email)
		}
		if user.Provider != domain.ProviderLocal && u.Provider == user.Provider && u.SnsID == user.SnsID {
			return apperrors.AlreadyExists("user", "sns_id", user.SnsID)
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (s memUsers) GetLocalByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Provider == domain.ProviderLocal && strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user", email)
}

func (s memUsers) GetByProvider(_ context.Context, provider domain.Provider, snsID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Provider == provider && u.SnsID == snsID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user", snsID)
}

type memFollows struct{ *memStore }

func (s memFollows) Follow(_ context.Context, followerID, followingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[followingID]; !ok {
		return apperrors.NotFound("user", followingID)
	}
	key := [2]string{followerID, followingID}
	if _, ok := s.follows[key]; !ok {
		s.follows[key] = time.Now()
	}
	return nil
}

func (s memFollows) refs(userID string, followers bool) []domain.FollowRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := []domain.FollowRef{}
	for k := range s.follows {
		var other string
		switch {
		case followers && k[1] == userID:
			other = k[0]
		case !followers && k[0] == userID:
			other = k[1]
		default:
			continue
		}
		refs = append(refs, domain.FollowRef{ID: other, Nick: s.users[other].Nick})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

func (s memFollows) Followers(_ context.Context, userID string) ([]domain.FollowRef, error) {
	return s.refs(userID, true), nil
}

func (s memFollows) Followings(_ context.Context, userID string) ([]domain.FollowRef, error) {
	return s.refs(userID, false), nil
}

type memDomains struct{ *memStore }

func (s memDomains) Create(_ context.Context, d *domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.domains {
		if existing.Host == d.Host {
			return apperrors.AlreadyExists("domain", "host", d.Host)
		}
	}
	cp := *d
	s.domains[d.ID] = &cp
	return nil
}

func (s memDomains) GetByClientSecret(_ context.Context, secret string) (*domain.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.domains {
		if d.ClientSecret == secret {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s memDomains) ListByOwner(_ context.Context, userID string) ([]domain.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Domain{}
	for _, d := range s.domains {
		if d.OwnerUserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s memDomains) ExistsByHost(_ context.Context, host string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.domains {
		if d.Host == host {
			return true, nil
		}
	}
	return false, nil
}

type memSessions struct{ *memStore }

func (s memSessions) Save(_ context.Context, sessionID, userID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = userID
	return nil
}

func (s memSessions) Get(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return "", s.sessionErr
	}
	userID, ok := s.sessions[sessionID]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return userID, nil
}

func (s memSessions) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// ============================================================================
// Fake identity provider
// ============================================================================

type fakeProvider struct{}

func (fakeProvider) Name() domain.Provider { return domain.ProviderKakao }

func (fakeProvider) AuthCodeURL(state string) string {
	return "https://kauth.example.test/oauth/authorize?state=" + state
}

func (fakeProvider) Exchange(_ context.Context, code string) (*domain.ExternalProfile, error) {
	if code != "good-code" {
		return nil, errors.New("invalid_grant")
	}
	return &domain.ExternalProfile{ID: "4242", Nick: "kim", Email: "kim@example.com"}, nil
}

// ============================================================================
// Test environment
// ============================================================================

const (
	testSecret = "handler-test-secret-with-enough-length"
	testIssuer = "nodebird"
	cookieName = "connect.sid"
)

type testEnv struct {
	store  *memStore
	router http.Handler
	jwt    *auth.JWTManager
}

type envOption func(*RouterConfig)

func withV1Deprecated() envOption {
	return func(c *RouterConfig) { c.V1Deprecated = true }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	store := newMemStore()
	users, follows, domains, sessions := memUsers{store}, memFollows{store}, memDomains{store}, memSessions{store}
	logger := newTestLogger()
	events := event.Noop{}

	local, err := service.NewLocalVerifier(users, bcrypt.MinCost, logger)
	require.NoError(t, err)
	resolver := service.NewFederatedResolver(users, events, logger)
	kakao := service.NewFederatedVerifier(fakeProvider{}, resolver, logger)
	codec := service.NewSessionCodec(users, follows, sessions, time.Hour)
	jwt := auth.NewJWTManager(testSecret, testIssuer)

	svc := Services{
		Auth:    service.NewAuthService(users, codec, events, bcrypt.MinCost, logger, local, kakao),
		Tokens:  service.NewTokenService(jwt, domains, users, local, time.Minute, logger),
		Domains: service.NewDomainService(domains, events, logger),
		Follows: service.NewFollowService(follows, logger),
	}
	gates := Admission{
		Gate: admission.NewDomainGate(domains, logger),
		Limiter: admission.NewRateLimiter(admission.NewMemoryStore(), admission.RateLimitConfig{
			Window:  time.Minute,
			Limit:   10,
			Message: "only 10 requests per minute are allowed",
			Scope:   "api",
		}, logger),
		Throttle: admission.NewThrottle(1000, 1000, logger),
	}

	cfg := RouterConfig{Session: SessionConfig{CookieName: cookieName, TTL: time.Hour}}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testEnv{
		store:  store,
		router: NewRouter(svc, gates, health.NewHandler(), cfg, logger),
		jwt:    jwt,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// seedUser stores a local user with password "s3cret-pass".
func (e *testEnv) seedUser(t *testing.T, id, email, nick string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{
		ID:           id,
		Email:        email,
		Nick:         nick,
		PasswordHash: string(hash),
		Provider:     domain.ProviderLocal,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, memUsers{e.store}.Create(context.Background(), u))
	return u
}

// seedSession logs userID in and returns the session cookie.
func (e *testEnv) seedSession(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	sid := fmt.Sprintf("sid-%s", userID)
	require.NoError(t, memSessions{e.store}.Save(context.Background(), sid, userID, time.Hour))
	return &http.Cookie{Name: cookieName, Value: sid}
}

// seedDomain registers host for ownerID with the given secret.
func (e *testEnv) seedDomain(t *testing.T, ownerID, host, secret string) {
	t.Helper()
	require.NoError(t, memDomains{e.store}.Create(context.Background(), &domain.Domain{
		ID:           "d-" + host,
		Host:         host,
		Type:         domain.DomainTypeFree,
		ClientSecret: secret,
		OwnerUserID:  ownerID,
		CreatedAt:    time.Now().UTC(),
	}))
}
