package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fivetwenty-io/sfapi/internal/constants"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// PasswordProvider implements the username-password flow. The security
// token is appended to the password, and the response carries no expiry, so
// tokens are stamped with the documented session lifetime and re-exchanged
// from the full credentials on refresh.
type PasswordProvider struct {
	creds      *sfapi.UsernamePasswordCredentials
	endpoint   string
	httpClient *http.Client
}

// NewPasswordProvider creates a username-password provider.
func NewPasswordProvider(creds *sfapi.UsernamePasswordCredentials, domain string, httpClient *http.Client) *PasswordProvider {
	return &PasswordProvider{
		creds:      creds,
		endpoint:   TokenEndpoint(domain),
		httpClient: httpClient,
	}
}

// Authenticate exchanges the username and password for a token.
func (p *PasswordProvider) Authenticate(ctx context.Context) (*sfapi.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", p.creds.Username)
	form.Set("password", p.creds.Password+p.creds.SecurityToken)

	if p.creds.ClientID != "" {
		form.Set("client_id", p.creds.ClientID)
		form.Set("client_secret", p.creds.ClientSecret)
	}

	resp, err := requestToken(ctx, p.httpClient, p.endpoint, p.creds.Kind(), form)
	if err != nil {
		return nil, err
	}

	return newToken(resp, constants.AssumedTokenLifetime), nil
}

// Refresh re-runs the exchange. The password grant issues no refresh token.
func (p *PasswordProvider) Refresh(ctx context.Context) (*sfapi.Token, error) {
	return p.Authenticate(ctx)
}
