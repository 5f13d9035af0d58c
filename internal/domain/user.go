package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Provider identifies how a user authenticates.
type Provider string

// Supported providers.
const (
	ProviderLocal Provider = "local"
	ProviderKakao Provider = "kakao"
)

// MaxNickLength is the longest nick, in runes, the users table accepts.
const MaxNickLength = 15

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderKakao:
		return true
	default:
		return false
	}
}

// User is a persisted account. Email is empty when unknown, PasswordHash is
// set only for local users and SnsID only for federated ones.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email,omitempty"`
	Nick         string     `json:"nick"`
	PasswordHash string     `json:"-"`
	Provider     Provider   `json:"provider"`
	SnsID        string     `json:"sns_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"-"`
}

// FollowRef is the compact view of a related user carried in an Identity.
type FollowRef struct {
	ID   string `json:"id"`
	Nick string `json:"nick"`
}

// Identity is the verified representation of a user without secret material.
type Identity struct {
	ID         string      `json:"id"`
	Email      string      `json:"email,omitempty"`
	Nick       string      `json:"nick"`
	Provider   Provider    `json:"provider"`
	SnsID      string      `json:"sns_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	Followers  []FollowRef `json:"followers"`
	Followings []FollowRef `json:"followings"`
}

// Identity strips secret material from u. Relation sets start empty.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:         u.ID,
		Email:      u.Email,
		Nick:       u.Nick,
		Provider:   u.Provider,
		SnsID:      u.SnsID,
		CreatedAt:  u.CreatedAt,
		Followers:  []FollowRef{},
		Followings: []FollowRef{},
	}
}

// ExternalProfile is what an identity provider reports about a user.
// Email and Nick are best-effort and may be empty.
type ExternalProfile struct {
	ID    string
	Email string
	Nick  string
}

// FederatedNick picks the nick for a new federated user: the profile's own
// nick when present, otherwise "<provider>-<id>", truncated to MaxNickLength.
func FederatedNick(provider Provider, profile ExternalProfile) string {
	nick := strings.TrimSpace(profile.Nick)
	if nick == "" {
		nick = fmt.Sprintf("%s-%s", provider, profile.ID)
	}
	return truncateRunes(nick, MaxNickLength)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
