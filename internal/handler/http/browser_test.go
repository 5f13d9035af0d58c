package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stack501/nodebird-api/pkg/httputil"
)

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func location(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	u, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return u
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	return resp.Error
}

// ---------------------------------------------------------------------------
// Join
// ---------------------------------------------------------------------------

func TestJoin_FormCreatesUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(formRequest(http.MethodPost, "/auth/join", url.Values{
		"nick": {"alice"}, "email": {"alice@example.com"}, "password": {"s3cret-pass"},
	}))

	assert.Equal(t, "/", location(t, rec).Path)
	assert.Len(t, env.store.users, 1)
}

func TestJoin_JSONBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/auth/join",
		strings.NewReader(`{"nick":"alice","email":"alice@example.com","password":"s3cret-pass"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := env.do(req)

	assert.Equal(t, "/", location(t, rec).Path)
}

func TestJoin_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "alice@example.com", "alice")

	rec := env.do(formRequest(http.MethodPost, "/auth/join", url.Values{
		"nick": {"alice2"}, "email": {"Alice@Example.com"}, "password": {"other-pass"},
	}))

	loc := location(t, rec)
	assert.Equal(t, "/join", loc.Path)
	assert.Equal(t, "exist", loc.Query().Get("error"))
}

func TestJoin_InvalidEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(formRequest(http.MethodPost, "/auth/join", url.Values{
		"nick": {"alice"}, "email": {"not-an-email"}, "password": {"pw"},
	}))

	loc := location(t, rec)
	assert.Equal(t, "/join", loc.Path)
	assert.Contains(t, loc.Query().Get("error"), "email")
	assert.Empty(t, env.store.users)
}

// ---------------------------------------------------------------------------
// Login / session
// ---------------------------------------------------------------------------

func TestLogin_SuccessSetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "alice@example.com", "alice")

	rec := env.do(formRequest(http.MethodPost, "/auth/login", url.Values{
		"email": {"alice@example.com"}, "password": {"s3cret-pass"},
	}))

	assert.Equal(t, "/", location(t, rec).Path)
	cookie := findCookie(rec, cookieName)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "u-1", env.store.sessions[cookie.Value])

	// The cookie now identifies the user.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: cookie.Value})
	index := env.do(req)

	require.Equal(t, http.StatusOK, index.Code)
	var body IndexResponse
	decodeData(t, index, &body)
	require.NotNil(t, body.User)
	assert.Equal(t, "alice", body.User.Nick)
	assert.Empty(t, body.User.Followers)
}

func TestLogin_FailuresShareOneMessage(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "alice@example.com", "alice")

	wrongPassword := env.do(formRequest(http.MethodPost, "/auth/login", url.Values{
		"email": {"alice@example.com"}, "password": {"wrong"},
	}))
	unknownEmail := env.do(formRequest(http.MethodPost, "/auth/login", url.Values{
		"email": {"ghost@example.com"}, "password": {"wrong"},
	}))

	a := location(t, wrongPassword).Query().Get("loginError")
	b := location(t, unknownEmail).Query().Get("loginError")
	assert.Equal(t, "invalid email or password", a)
	assert.Equal(t, a, b)
	assert.Nil(t, findCookie(wrongPassword, cookieName))
	assert.Empty(t, env.store.sessions)
}

func TestLogin_AlreadyLoggedInRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "alice@example.com", "alice")
	cookie := env.seedSession(t, "u-1")

	req := formRequest(http.MethodPost, "/auth/login", url.Values{
		"email": {"alice@example.com"}, "password": {"s3cret-pass"},
	})
	req.AddCookie(cookie)
	rec := env.do(req)

	assert.Equal(t, alreadyLoggedInMessage, location(t, rec).Query().Get("error"))
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "alice@example.com", "alice")
	cookie := env.seedSession(t, "u-1")

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(cookie)
	rec := env.do(req)

	assert.Equal(t, "/", location(t, rec).Path)
	cleared := findCookie(rec, cookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
	assert.Empty(t, env.store.sessions)
}

func TestLogout_RequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/logout", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "LOGIN_REQUIRED", decodeError(t, rec).Code)
}

func TestStaleSessionCookieIsCleared(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "expired-session"})
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	cleared := findCookie(rec, cookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	var body IndexResponse
	decodeData(t, rec, &body)
	assert.Nil(t, body.User)
}

func TestSessionOfDeletedUserIsAnonymous(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.seedSession(t, "u-deleted")

	req := httptest.NewRequest(http.MethodPost, "/domain", nil)
	req.AddCookie(cookie)
	rec := env.do(req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	env.store.mu.Lock()
	_, kept := env.store.sessions[cookie.Value]
	env.store.mu.Unlock()
	assert.False(t, kept, "stale session should be deleted")
}

func TestSessionStoreFailureIsInternalError(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "a@example.com", "alice")
	cookie := env.seedSession(t, "u-1")
	env.store.sessionErr = errors.New("redis: connection refused")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := env.do(req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

// ---------------------------------------------------------------------------
// Kakao
// ---------------------------------------------------------------------------

func TestKakao_FullFlow(t *testing.T) {
	env := newTestEnv(t)

	start := env.do(httptest.NewRequest(http.MethodGet, "/auth/kakao", nil))
	require.Equal(t, http.StatusFound, start.Code)
	redirect, err := url.Parse(start.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "kauth.example.test", redirect.Host)
	state := findCookie(start, oauthStateCookie)
	require.NotNil(t, state)
	assert.Equal(t, state.Value, redirect.Query().Get("state"))

	callback := httptest.NewRequest(http.MethodGet, "/auth/kakao/callback?code=good-code&state="+state.Value, nil)
	callback.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: state.Value})
	rec := env.do(callback)

	assert.Equal(t, "/", location(t, rec).Path)
	require.NotNil(t, findCookie(rec, cookieName))
	require.Len(t, env.store.users, 1)
	for _, u := range env.store.users {
		assert.Equal(t, "4242", u.SnsID)
		assert.Equal(t, "kim", u.Nick)
	}
}

func TestKakao_StateMismatch(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/kakao/callback?code=good-code&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "original"})
	rec := env.do(req)

	assert.NotEmpty(t, location(t, rec).Query().Get("loginError"))
	assert.Empty(t, env.store.users)
}

func TestKakao_ExchangeFailure(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/kakao/callback?code=bad-code&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s1"})
	rec := env.do(req)

	assert.Equal(t, "federated login failed", location(t, rec).Query().Get("loginError"))
	assert.Nil(t, findCookie(rec, cookieName))
}

// ---------------------------------------------------------------------------
// Domains and follows
// ---------------------------------------------------------------------------

func TestRegisterDomain(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "alice@example.com", "alice")
	cookie := env.seedSession(t, "u-1")

	req := formRequest(http.MethodPost, "/domain", url.Values{"host": {"https://App.Example.com"}, "type": {"premium"}})
	req.AddCookie(cookie)
	rec := env.do(req)

	assert.Equal(t, "/", location(t, rec).Path)
	require.Len(t, env.store.domains, 1)
	for _, d := range env.store.domains {
		assert.Equal(t, "app.example.com", d.Host)
		assert.NotEmpty(t, d.ClientSecret)
	}

	dup := formRequest(http.MethodPost, "/domain", url.Values{"host": {"app.example.com"}})
	dup.AddCookie(cookie)
	assert.Equal(t, "domain-exist", location(t, env.do(dup)).Query().Get("error"))
}

func TestRegisterDomain_InvalidType(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "alice@example.com", "alice")
	cookie := env.seedSession(t, "u-1")

	req := formRequest(http.MethodPost, "/domain", url.Values{"host": {"app.example.com"}, "type": {"gold"}})
	req.AddCookie(cookie)
	rec := env.do(req)

	assert.NotEmpty(t, location(t, rec).Query().Get("error"))
	assert.Empty(t, env.store.domains)
}

func TestRegisterDomain_HostTooLong(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "alice@example.com", "alice")
	cookie := env.seedSession(t, "u-1")

	host := strings.Repeat("a", 100) + ".com"
	req := formRequest(http.MethodPost, "/domain", url.Values{"host": {host}})
	req.AddCookie(cookie)
	rec := env.do(req)

	loc := location(t, rec)
	assert.Equal(t, "/", loc.Path)
	assert.Equal(t, "host must be at most 80 characters", loc.Query().Get("error"))
	assert.Empty(t, env.store.domains)
}

func TestFollow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "alice@example.com", "alice")
	env.seedUser(t, "u-2", "bob@example.com", "bob")
	cookie := env.seedSession(t, "u-1")

	req := httptest.NewRequest(http.MethodPost, "/user/u-2/follow", nil)
	req.AddCookie(cookie)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":"success"}`, rec.Body.String())

	index := httptest.NewRequest(http.MethodGet, "/", nil)
	index.AddCookie(cookie)
	var body IndexResponse
	decodeData(t, env.do(index), &body)
	require.Len(t, body.User.Followings, 1)
	assert.Equal(t, "bob", body.User.Followings[0].Nick)
}

func TestFollow_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "u-1", "alice@example.com", "alice")
	cookie := env.seedSession(t, "u-1")

	tests := []struct {
		name   string
		target string
		cookie *http.Cookie
		want   int
	}{
		{"self", "u-1", cookie, http.StatusBadRequest},
		{"unknown target", "u-ghost", cookie, http.StatusNotFound},
		{"anonymous", "u-1", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/user/"+tt.target+"/follow", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			assert.Equal(t, tt.want, env.do(req).Code)
		})
	}
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
