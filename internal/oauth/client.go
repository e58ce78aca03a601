// Package oauth talks to the Google OAuth endpoints on behalf of the
// fixed first-party client the Antigravity upstream expects.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"antigravity2api-go/internal/constants"
	apperrors "antigravity2api-go/internal/errors"
)

// Token is the result of a code exchange or refresh.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ClientOption customizes Client creation.
type ClientOption func(*Client)

// Client performs the OAuth flows: consent URL, code exchange, token
// refresh, project-id resolution, and best-effort email lookup.
type Client struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client

	authURL      string
	tokenURL     string
	userInfoURL  string
	assistBase   string
	projectsURL  string
	allowRandom  bool
	pollInterval time.Duration
	now          func() time.Time
}

// NewClient creates an OAuth client with the built-in endpoints.
func NewClient(clientID, clientSecret string, opts ...ClientOption) *Client {
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		authURL:      constants.OAuthAuthURL,
		tokenURL:     constants.OAuthTokenURL,
		userInfoURL:  constants.OAuthUserInfoURL,
		assistBase:   constants.UpstreamEndpoint,
		projectsURL:  constants.ProjectsListURL,
		pollInterval: constants.OnboardPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// WithHTTPClient overrides the HTTP client used for outbound calls.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoints overrides every endpoint at once, for tests. Empty strings
// keep the defaults.
func WithEndpoints(authURL, tokenURL, userInfoURL, assistBase string) ClientOption {
	return func(c *Client) {
		if authURL != "" {
			c.authURL = authURL
		}
		if tokenURL != "" {
			c.tokenURL = tokenURL
		}
		if userInfoURL != "" {
			c.userInfoURL = userInfoURL
		}
		if assistBase != "" {
			c.assistBase = strings.TrimRight(assistBase, "/")
		}
	}
}

// WithProjectsURL overrides the Resource Manager projects endpoint, for
// tests.
func WithProjectsURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.projectsURL = url
		}
	}
}

// WithAllowRandomProjectID lets ResolveProjectID fall back to a synthetic
// id when the upstream cannot name one.
func WithAllowRandomProjectID(allow bool) ClientOption {
	return func(c *Client) { c.allowRandom = allow }
}

// WithPollInterval tunes the onboard polling cadence, for tests.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func (c *Client) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       append([]string(nil), constants.OAuthScopes...),
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.authURL,
			TokenURL: c.tokenURL,
		},
	}
}

// BuildAuthURL returns the consent URL with offline access and the given
// state parameter.
func (c *Client) BuildAuthURL(redirectURI, state string) string {
	return c.oauthConfig(redirectURI).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.AuthExchangeFailed(err.Error())
	}
	expiresIn := int64(time.Until(tok.Expiry).Seconds())
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// Refresh trades a refresh token for a new access token. HTTP 400 and 403
// are terminal for the credential; the caller is expected to disable it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.MapNetworkError(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.New(apperrors.KindUpstreamTerminal, resp.StatusCode,
			"refresh_rejected", "permission_error",
			fmt.Sprintf("token refresh rejected (HTTP %d): %s", resp.StatusCode, truncate(body, 200)))
	default:
		return nil, apperrors.New(apperrors.KindUpstreamTransient, resp.StatusCode,
			"refresh_failed", "server_error",
			fmt.Sprintf("token refresh failed (HTTP %d)", resp.StatusCode))
	}

	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, apperrors.New(apperrors.KindUpstreamTransient, resp.StatusCode,
			"refresh_failed", "server_error", "refresh response carried no access token")
	}
	if tok.ExpiresIn == 0 {
		tok.ExpiresIn = 3600
	}
	return &tok, nil
}

// FetchUserEmail looks up the account email. Best-effort; errors are the
// caller's to ignore.
func (c *Client) FetchUserEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo returned HTTP %d", resp.StatusCode)
	}
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.Email, nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// SyntheticProjectID mints a uuid-derived project id for credentials the
// upstream never names, when the deployment opts in.
func SyntheticProjectID() string {
	return "synthetic-" + uuid.NewString()[:13]
}
