package auth

import (
	"context"
	"crypto/rsa"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fivetwenty-io/sfapi/internal/constants"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// JWTBearerProvider implements the JWT bearer flow: every exchange signs a
// fresh short-lived RS256 assertion, so there is no refresh token and no
// stored secret beyond the private key.
type JWTBearerProvider struct {
	creds      *sfapi.JWTBearerCredentials
	audience   string
	endpoint   string
	httpClient *http.Client

	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
}

// NewJWTBearerProvider creates a JWT bearer flow provider.
func NewJWTBearerProvider(creds *sfapi.JWTBearerCredentials, domain string, httpClient *http.Client) *JWTBearerProvider {
	return &JWTBearerProvider{
		creds:      creds,
		audience:   "https://" + TokenHost(domain),
		endpoint:   TokenEndpoint(domain),
		httpClient: httpClient,
	}
}

// Authenticate signs an assertion and exchanges it for a token.
func (p *JWTBearerProvider) Authenticate(ctx context.Context) (*sfapi.Token, error) {
	assertion, err := p.signAssertion()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	resp, err := requestToken(ctx, p.httpClient, p.endpoint, p.creds.Kind(), form)
	if err != nil {
		return nil, err
	}

	return newToken(resp, 0), nil
}

// Refresh signs and exchanges a new assertion; the flow has no refresh token.
func (p *JWTBearerProvider) Refresh(ctx context.Context) (*sfapi.Token, error) {
	return p.Authenticate(ctx)
}

// signAssertion builds and signs the short-lived bearer assertion.
func (p *JWTBearerProvider) signAssertion() (string, error) {
	p.keyOnce.Do(func() {
		p.key, p.keyErr = jwt.ParseRSAPrivateKeyFromPEM(p.creds.PrivateKey)
	})

	if p.keyErr != nil {
		return "", &sfapi.AuthError{Kind: p.creds.Kind(), Err: p.keyErr}
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.creds.ClientID,
		Subject:   p.creds.Username,
		Audience:  jwt.ClaimStrings{p.audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(constants.JWTAssertionLifetime)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	assertion, err := token.SignedString(p.key)
	if err != nil {
		return "", &sfapi.AuthError{Kind: p.creds.Kind(), Err: err}
	}

	return assertion, nil
}
