package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/stack501/nodebird-api/pkg/validator"
)

const maxBodyBytes = 1 << 20

// formBinder is implemented by request DTOs that browser forms can post.
type formBinder interface {
	bindForm(url.Values)
}

// decodeRequest fills dst from a JSON body or, for any other content type,
// from url-encoded form fields, then validates it.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst formBinder) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return fmt.Errorf("invalid request body: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("invalid form: %w", err)
		}
		dst.bindForm(r.PostForm)
	}

	return validator.Validate(dst)
}

// errorMessage flattens a decode or validation error into a redirect-safe
// message.
func errorMessage(err error) string {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return valErr.Error()
	}
	return strings.TrimSpace(err.Error())
}

// --- Request DTOs ---

// JoinRequest is the sign-up form.
type JoinRequest struct {
	Nick     string `json:"nick" validate:"required,max=15"`
	Email    string `json:"email" validate:"required,email,max=40"`
	Password string `json:"password" validate:"required,max=72"`
}

func (r *JoinRequest) bindForm(v url.Values) {
	r.Nick = v.Get("nick")
	r.Email = v.Get("email")
	r.Password = v.Get("password")
}

// LoginRequest is the local login form.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) bindForm(v url.Values) {
	r.Email = v.Get("email")
	r.Password = v.Get("password")
}

// DomainRequest registers an origin.
type DomainRequest struct {
	Host string `json:"host" validate:"required,max=255"`
	Type string `json:"type" validate:"omitempty,oneof=free premium"`
}

func (r *DomainRequest) bindForm(v url.Values) {
	r.Host = v.Get("host")
	r.Type = v.Get("type")
}

// TokenRequest asks for an API token with either a domain client secret or
// local credentials.
type TokenRequest struct {
	ClientSecret string `json:"clientSecret"`
	Email        string `json:"email" validate:"omitempty,email"`
	Password     string `json:"password"`
}

func (r *TokenRequest) bindForm(v url.Values) {
	r.ClientSecret = v.Get("clientSecret")
	r.Email = v.Get("email")
	r.Password = v.Get("password")
}
