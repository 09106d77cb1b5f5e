// Package auth implements the Salesforce OAuth2 credential flows and the
// per-org token lifecycle: exchange, cached reuse, and single-flight refresh.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/sfapi/internal/constants"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// Provider exchanges credentials for tokens. Authenticate performs the
// flow's initial exchange; Refresh obtains a replacement for a token the
// server rejected or that expired locally.
type Provider interface {
	Authenticate(ctx context.Context) (*sfapi.Token, error)
	Refresh(ctx context.Context) (*sfapi.Token, error)
}

// NewProvider selects the provider for the credential type.
func NewProvider(creds sfapi.Credentials, domain string, httpClient *http.Client) (Provider, error) {
	if creds == nil {
		return nil, sfapi.ErrCredentialsRequired
	}

	err := creds.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid %s credentials: %w", creds.Kind(), err)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	switch c := creds.(type) {
	case *sfapi.UsernamePasswordCredentials:
		return NewPasswordProvider(c, domain, httpClient), nil
	case *sfapi.WebServerCredentials:
		return NewWebServerProvider(c, domain, httpClient), nil
	case *sfapi.JWTBearerCredentials:
		return NewJWTBearerProvider(c, domain, httpClient), nil
	default:
		return nil, fmt.Errorf("%w: %T", sfapi.ErrUnsupportedCredentials, creds)
	}
}

// TokenHost resolves the login host for a domain. "login" and "test" map to
// the standard Salesforce hosts; anything containing a dot is used verbatim
// so My Domain and scratch org hosts work unchanged.
func TokenHost(domain string) string {
	if domain == "" {
		domain = constants.DefaultDomain
	}

	if strings.Contains(domain, ".") {
		return domain
	}

	return domain + ".salesforce.com"
}

// TokenEndpoint resolves the OAuth2 token endpoint for a domain.
func TokenEndpoint(domain string) string {
	return "https://" + TokenHost(domain) + "/services/oauth2/token"
}

// tokenResponse is the token endpoint's success body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	InstanceURL  string `json:"instance_url"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	IssuedAt     string `json:"issued_at"`
}

// requestToken posts a form to the token endpoint and decodes the result.
// Failures surface as AuthError with the endpoint's error_description.
func requestToken(ctx context.Context, httpClient *http.Client, endpoint, kind string, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &sfapi.AuthError{Kind: kind, Err: err}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &sfapi.AuthError{Kind: kind, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &sfapi.AuthError{Kind: kind, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		respErr := sfapi.ParseResponseError(resp.StatusCode, body)

		return nil, &sfapi.AuthError{
			Kind:          kind,
			RemoteMessage: respErr.First().Error(),
			Err:           respErr,
		}
	}

	var token tokenResponse

	err = json.Unmarshal(body, &token)
	if err != nil {
		return nil, &sfapi.AuthError{Kind: kind, Err: fmt.Errorf("failed to decode token response: %w", err)}
	}

	if token.AccessToken == "" {
		return nil, &sfapi.AuthError{Kind: kind, RemoteMessage: "token response carried no access token"}
	}

	return &token, nil
}

// newToken converts a wire response into the exported token type. expiresIn
// of zero leaves the expiry nil, meaning valid until rejected.
func newToken(resp *tokenResponse, expiresIn time.Duration) *sfapi.Token {
	token := &sfapi.Token{
		AccessToken: resp.AccessToken,
		InstanceURL: resp.InstanceURL,
		IssuedAt:    time.Now(),
	}

	if expiresIn > 0 {
		expiresAt := token.IssuedAt.Add(expiresIn)
		token.ExpiresAt = &expiresAt
	}

	return token
}
