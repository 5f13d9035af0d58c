package auth

import (
	"context"
	"net/http"

	"github.com/stack501/nodebird-api/internal/domain"
)

// OAuthProvider is an external identity provider using the authorization
// code flow.
type OAuthProvider interface {
	// Name identifies the provider in the users table.
	Name() domain.Provider

	// AuthCodeURL returns the provider's consent page URL carrying state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for the user's profile.
	Exchange(ctx context.Context, code string) (*domain.ExternalProfile, error)
}

// Doer sends HTTP requests. *httpclient.CircuitBreakerClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}
