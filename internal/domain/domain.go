package domain

import (
	"net/url"
	"strings"
	"time"
)

// DomainType is the plan a registered domain is on.
type DomainType string

// Domain types.
const (
	DomainTypeFree    DomainType = "free"
	DomainTypePremium DomainType = "premium"
)

// Valid reports whether t is a known domain type.
func (t DomainType) Valid() bool {
	return t == DomainTypeFree || t == DomainTypePremium
}

// MaxHostLength is the longest normalized host the domains table accepts.
const MaxHostLength = 80

// Domain is an origin registered by a user. Browsers on that origin may make
// credentialed cross-origin API calls, and the client secret is exchanged for
// API tokens.
type Domain struct {
	ID           string     `json:"id"`
	Host         string     `json:"host"`
	Type         DomainType `json:"type"`
	ClientSecret string     `json:"client_secret"`
	OwnerUserID  string     `json:"owner_user_id"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NormalizeHost reduces a user-supplied host or origin to the lowercase
// host[:port] form stored in the registry. Schemes, paths, queries and
// userinfo are dropped. It returns "" when nothing usable remains.
func NormalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Host)
}

// OriginHost extracts the normalized host from an Origin header value. Unlike
// NormalizeHost it requires an http or https scheme, so "null" and
// scheme-less values yield "".
func OriginHost(origin string) string {
	origin = strings.TrimSpace(origin)
	if origin == "" || origin == "null" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return strings.ToLower(u.Host)
}
