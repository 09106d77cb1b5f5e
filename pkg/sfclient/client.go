// Package sfclient provides the main entry point for creating Salesforce API clients
package sfclient

import (
	"fmt"
	"strings"

	"github.com/fivetwenty-io/sfapi/internal/client"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// DefaultOrgAlias is the alias the single-org constructors register.
const DefaultOrgAlias = "default"

// New creates a new Salesforce API client from the configuration.
func New(config *sfapi.Config) (sfapi.Client, error) {
	if config == nil {
		return nil, sfapi.ErrConfigRequired
	}

	// Normalize org domains so full URLs and bare hosts both work.
	for i := range config.Orgs {
		config.Orgs[i].Domain = normalizeDomain(config.Orgs[i].Domain)
	}

	// Use the internal client implementation
	sfClient, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return sfClient, nil
}

// normalizeDomain strips a scheme and trailing slash from a configured
// domain. "login", "test", and bare My Domain hosts pass through unchanged.
func normalizeDomain(domain string) string {
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")

	return strings.TrimSuffix(domain, "/")
}

// NewWithCredentials creates a single-org client for the given domain and
// credential flow. The org registers under DefaultOrgAlias.
func NewWithCredentials(domain string, creds sfapi.Credentials) (sfapi.Client, error) {
	return New(&sfapi.Config{
		Orgs: []sfapi.OrgConfig{{
			Alias:       DefaultOrgAlias,
			Domain:      domain,
			Credentials: creds,
		}},
	})
}

// NewWithPassword creates a single-org client using the username-password
// flow. Orgs that require a connected app or a security token should use
// NewWithCredentials with a full UsernamePasswordCredentials value.
func NewWithPassword(domain, username, password string) (sfapi.Client, error) {
	return NewWithCredentials(domain, &sfapi.UsernamePasswordCredentials{
		Username: username,
		Password: password,
	})
}

// NewWithJWT creates a single-org client using the JWT bearer flow. The key
// is the connected app certificate's PEM-encoded RSA private key.
func NewWithJWT(domain, clientID, username string, privateKey []byte) (sfapi.Client, error) {
	return NewWithCredentials(domain, &sfapi.JWTBearerCredentials{
		ClientID:   clientID,
		Username:   username,
		PrivateKey: privateKey,
	})
}

// NewWithRefreshToken creates a single-org client using the web-server flow
// with a refresh token obtained by an earlier authorization. Exchanging a
// fresh authorization code instead goes through NewWithCredentials.
func NewWithRefreshToken(domain, clientID, clientSecret, refreshToken string) (sfapi.Client, error) {
	return NewWithCredentials(domain, &sfapi.WebServerCredentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
	})
}
