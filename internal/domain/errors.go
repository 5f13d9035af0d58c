package domain

import "errors"

// Failure kinds surfaced by the identity and admission layers. Handlers map
// them to transport errors; the kinds stay reachable through errors.Is.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrPasswordMismatch = errors.New("password mismatch")
	ErrSessionInvalid   = errors.New("session invalid")
	ErrTokenInvalid     = errors.New("token invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrRateLimited      = errors.New("rate limited")
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrDomainNotFound   = errors.New("domain not registered")
	ErrProviderDisabled = errors.New("identity provider not configured")
)
