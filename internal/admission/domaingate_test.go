package admission

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticLookup struct {
	hosts map[string]bool
	err   error
	calls int
}

func (s *staticLookup) ExistsByHost(_ context.Context, host string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.hosts[host], nil
}

func newGate(hosts ...string) (*DomainGate, *staticLookup) {
	lookup := &staticLookup{hosts: make(map[string]bool)}
	for _, h := range hosts {
		lookup.hosts[h] = true
	}
	return NewDomainGate(lookup, newTestLogger()), lookup
}

func serveWithOrigin(g *DomainGate, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/v2/token", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	g.Middleware(okHandler).ServeHTTP(rec, req)
	return rec
}

func TestDomainGate_RegisteredOriginGranted(t *testing.T) {
	g, _ := newGate("app.example.com")

	rec := serveWithOrigin(g, http.MethodPost, "https://app.example.com", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestDomainGate_UnregisteredOriginNotGranted(t *testing.T) {
	g, _ := newGate("app.example.com")

	rec := serveWithOrigin(g, http.MethodPost, "https://evil.example.com", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestDomainGate_PortIsPartOfHost(t *testing.T) {
	g, _ := newGate("localhost:4000")

	assert.Equal(t, "http://localhost:4000",
		serveWithOrigin(g, http.MethodGet, "http://localhost:4000", false).Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t,
		serveWithOrigin(g, http.MethodGet, "http://localhost:5000", false).Header().Get("Access-Control-Allow-Origin"))
}

func TestDomainGate_HostMatchIsCaseInsensitive(t *testing.T) {
	g, _ := newGate("app.example.com")

	rec := serveWithOrigin(g, http.MethodGet, "https://APP.Example.com", false)
	assert.Equal(t, "https://APP.Example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDomainGate_PreflightGranted(t *testing.T) {
	g, _ := newGate("app.example.com")

	rec := serveWithOrigin(g, http.MethodOptions, "https://app.example.com", true)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestDomainGate_PreflightDenied(t *testing.T) {
	g, _ := newGate("app.example.com")

	rec := serveWithOrigin(g, http.MethodOptions, "https://evil.example.com", true)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "ORIGIN_NOT_ALLOWED")
}

func TestDomainGate_UnusableOriginsSkipLookup(t *testing.T) {
	for _, origin := range []string{"", "null", "app.example.com", "ftp://app.example.com", "://bad"} {
		t.Run(origin, func(t *testing.T) {
			g, lookup := newGate("app.example.com")
			rec := serveWithOrigin(g, http.MethodGet, origin, false)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Zero(t, lookup.calls)
		})
	}
}

func TestDomainGate_LookupFailureIsNoGrant(t *testing.T) {
	g := NewDomainGate(&staticLookup{err: errors.New("db down")}, newTestLogger())

	rec := serveWithOrigin(g, http.MethodGet, "https://app.example.com", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
