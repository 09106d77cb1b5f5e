package auth

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/fivetwenty-io/sfapi/internal/constants"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// WebServerProvider implements the OAuth2 web-server flow. The authorization
// code is single-use: the first exchange consumes it and yields the refresh
// token every later exchange runs on. The code exchange stamps the assumed
// session lifetime; refreshed tokens carry no expiry and stay in use until
// the server rejects one.
type WebServerProvider struct {
	creds      *sfapi.WebServerCredentials
	endpoint   string
	httpClient *http.Client

	mu           sync.Mutex
	authCode     string
	refreshToken string
}

// NewWebServerProvider creates a web-server flow provider.
func NewWebServerProvider(creds *sfapi.WebServerCredentials, domain string, httpClient *http.Client) *WebServerProvider {
	return &WebServerProvider{
		creds:        creds,
		endpoint:     TokenEndpoint(domain),
		httpClient:   httpClient,
		authCode:     creds.AuthCode,
		refreshToken: creds.RefreshToken,
	}
}

// Authenticate exchanges the authorization code, or falls through to the
// refresh grant when the code was already consumed.
func (p *WebServerProvider) Authenticate(ctx context.Context) (*sfapi.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.authCode == "" {
		return p.refreshLocked(ctx)
	}

	return p.exchangeCodeLocked(ctx)
}

// Refresh obtains a new access token from the stored refresh token, or runs
// the code exchange when the code was never consumed.
func (p *WebServerProvider) Refresh(ctx context.Context) (*sfapi.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.refreshToken == "" && p.authCode != "" {
		return p.exchangeCodeLocked(ctx)
	}

	return p.refreshLocked(ctx)
}

// exchangeCodeLocked runs the authorization_code grant. Caller holds mu.
func (p *WebServerProvider) exchangeCodeLocked(ctx context.Context) (*sfapi.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", p.authCode)
	form.Set("client_id", p.creds.ClientID)
	form.Set("client_secret", p.creds.ClientSecret)
	form.Set("redirect_uri", p.creds.RedirectURI)

	resp, err := requestToken(ctx, p.httpClient, p.endpoint, p.creds.Kind(), form)
	if err != nil {
		return nil, err
	}

	// The code is consumed; a second exchange with it would be rejected.
	p.authCode = ""

	if resp.RefreshToken != "" {
		p.refreshToken = resp.RefreshToken
	}

	return newToken(resp, constants.AssumedTokenLifetime), nil
}

// refreshLocked runs the refresh_token grant. Caller holds mu.
func (p *WebServerProvider) refreshLocked(ctx context.Context) (*sfapi.Token, error) {
	if p.refreshToken == "" {
		return nil, &sfapi.AuthError{
			Kind:          p.creds.Kind(),
			RemoteMessage: "no refresh token available; a new authorization code is required",
		}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", p.refreshToken)
	form.Set("client_id", p.creds.ClientID)
	form.Set("client_secret", p.creds.ClientSecret)

	resp, err := requestToken(ctx, p.httpClient, p.endpoint, p.creds.Kind(), form)
	if err != nil {
		return nil, err
	}

	if resp.RefreshToken != "" {
		p.refreshToken = resp.RefreshToken
	}

	return newToken(resp, 0), nil
}
