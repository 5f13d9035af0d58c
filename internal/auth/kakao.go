package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/pkg/httpclient"
)

// KakaoConfig holds the Kakao application settings.
type KakaoConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// AuthURL is the kauth host serving /oauth/authorize and /oauth/token.
	AuthURL string
	// APIURL is the kapi host serving /v2/user/me.
	APIURL string
}

// KakaoProvider implements OAuthProvider for Kakao Login.
type KakaoProvider struct {
	config KakaoConfig
	client Doer
}

// NewKakaoProvider creates a Kakao provider sending requests through client.
func NewKakaoProvider(cfg KakaoConfig, client Doer) *KakaoProvider {
	cfg.AuthURL = strings.TrimRight(cfg.AuthURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &KakaoProvider{config: cfg, client: client}
}

// Name returns domain.ProviderKakao.
func (p *KakaoProvider) Name() domain.Provider {
	return domain.ProviderKakao
}

// AuthCodeURL returns the Kakao consent page URL.
func (p *KakaoProvider) AuthCodeURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"state":         {state},
	}
	return p.config.AuthURL + "/oauth/authorize?" + params.Encode()
}

type kakaoTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type kakaoNamed struct {
	Nickname string `json:"nickname"`
}

type kakaoAccount struct {
	Email   string     `json:"email"`
	Profile kakaoNamed `json:"profile"`
}

// kakaoUser is the /v2/user/me body. Older integrations returned the account
// under the misspelled kakao_accout key, so both are read.
type kakaoUser struct {
	ID            json.Number  `json:"id"`
	Properties    kakaoNamed   `json:"properties"`
	Account       kakaoAccount `json:"kakao_account"`
	LegacyAccount kakaoAccount `json:"kakao_accout"`
}

// Exchange trades code for an access token, then fetches the user profile.
func (p *KakaoProvider) Exchange(ctx context.Context, code string) (*domain.ExternalProfile, error) {
	token, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange kakao code: %w", err)
	}

	user, err := p.fetchUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch kakao profile: %w", err)
	}

	return user.profile(), nil
}

func (p *KakaoProvider) exchangeToken(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {p.config.ClientID},
		"redirect_uri": {p.config.RedirectURL},
		"code":         {code},
	}
	if p.config.ClientSecret != "" {
		form.Set("client_secret", p.config.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.AuthURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	var body kakaoTokenResponse
	if err := p.doJSON(ctx, req, &body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	return body.AccessToken, nil
}

func (p *KakaoProvider) fetchUser(ctx context.Context, accessToken string) (*kakaoUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.APIURL+"/v2/user/me", nil)
	if err != nil {
		return nil, fmt.Errorf("create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var user kakaoUser
	if err := p.doJSON(ctx, req, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("empty id in profile response")
	}

	return &user, nil
}

func (p *KakaoProvider) doJSON(ctx context.Context, req *http.Request, out any) error {
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := httpclient.CheckResponse(resp); err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// profile extracts what the rest of the service needs. Nick and email are
// best-effort: a missing value is left empty.
func (u *kakaoUser) profile() *domain.ExternalProfile {
	nick := u.Properties.Nickname
	if nick == "" {
		nick = u.Account.Profile.Nickname
	}
	if nick == "" {
		nick = u.LegacyAccount.Profile.Nickname
	}

	email := u.Account.Email
	if email == "" {
		email = u.LegacyAccount.Email
	}

	return &domain.ExternalProfile{
		ID:    u.ID.String(),
		Email: email,
		Nick:  nick,
	}
}

var _ OAuthProvider = (*KakaoProvider)(nil)
