package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/sio60/guildrunner/pkg/logger"
)

const userInfoURL = "https://kapi.kakao.com/v2/user/me"

var (
	// ErrEmailRequired is returned when Kakao did not grant the email
	// scope or the user withheld consent. The login flow cannot proceed
	// without an email, so callers surface this as a user-actionable error.
	ErrEmailRequired = errors.New("kakao: email not provided")

	// ErrNoAccessToken means the token endpoint answered 2xx without a token.
	ErrNoAccessToken = errors.New("kakao: no access token in response")
)

// ProviderError carries the upstream status code and response body
// verbatim. Authorization codes are single-use, so these are never
// retried.
type ProviderError struct {
	Op     string // "token" or "me"
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("kakao: %s request failed with status %d: %s", e.Op, e.Status, e.Body)
}

// Profile is the flat projection of Kakao's nested user response.
// Internal code never depends on upstream field presence directly.
type Profile struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatar_url"`
}

type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	endpoint     oauth2.Endpoint
	userURL      string
	logger       logger.Client
}

func NewClient(httpClient *http.Client, clientID, clientSecret string, logger logger.Client) *Client {
	return &Client{
		httpClient:   httpClient,
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     endpoints.KaKao,
		userURL:      userInfoURL,
		logger:       logger,
	}
}

// NewClientWithEndpoints overrides the Kakao hosts, used against stubs in tests.
func NewClientWithEndpoints(httpClient *http.Client, clientID, clientSecret, authURL, tokenURL, userURL string, logger logger.Client) *Client {
	c := NewClient(httpClient, clientID, clientSecret, logger)
	c.endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	c.userURL = userURL
	return c
}

// AuthorizeURL composes the outbound redirect URL to Kakao. Every
// dynamic component is percent-encoded by the oauth2 config.
func (c *Client) AuthorizeURL(redirectURI, state string) string {
	conf := oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: redirectURI,
		Endpoint:    c.endpoint,
	}
	return conf.AuthCodeURL(state)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeCode trades a single-use authorization code for an access
// token. The redirect URI must exactly match the one used to obtain
// the code; Kakao enforces this server-side.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", c.clientID)
	data.Set("redirect_uri", redirectURI)
	data.Set("code", code)
	if c.clientSecret != "" {
		data.Set("client_secret", c.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("kakao: failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("kakao: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("kakao: failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("kakao token exchange failed",
			logger.Field{Key: "status", Value: resp.StatusCode},
			logger.Field{Key: "body", Value: string(body)})
		return "", &ProviderError{Op: "token", Status: resp.StatusCode, Body: string(body)}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("kakao: failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", ErrNoAccessToken
	}

	return tokenResp.AccessToken, nil
}

type kakaoUser struct {
	ID           int64 `json:"id"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

// FetchProfile fetches the user behind accessToken and flattens the
// nested response. Returns ErrEmailRequired when no email was granted.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("kakao: failed to build user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kakao: user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kakao: failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("kakao user info failed",
			logger.Field{Key: "status", Value: resp.StatusCode},
			logger.Field{Key: "body", Value: string(body)})
		return nil, &ProviderError{Op: "me", Status: resp.StatusCode, Body: string(body)}
	}

	var me kakaoUser
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, fmt.Errorf("kakao: failed to decode user info: %w", err)
	}

	if me.KakaoAccount.Email == "" {
		return nil, ErrEmailRequired
	}

	return &Profile{
		ID:        me.ID,
		Email:     me.KakaoAccount.Email,
		Nickname:  me.KakaoAccount.Profile.Nickname,
		AvatarURL: me.KakaoAccount.Profile.ProfileImageURL,
	}, nil
}
