package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/sfapi/internal/constants"
	internalhttp "github.com/fivetwenty-io/sfapi/internal/http"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// Shared test doubles for the package tests.

// fakeAuthProvider implements auth.Provider with call counting. Tokens it
// mints address the test server standing in for the org instance.
type fakeAuthProvider struct {
	mu                sync.Mutex
	instanceURL       string
	tokenLifetime     time.Duration // zero mints tokens without expiry
	authenticateCalls int
	refreshCalls      int
}

func (p *fakeAuthProvider) Authenticate(ctx context.Context) (*sfapi.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.authenticateCalls++

	return p.mint("authenticated"), nil
}

func (p *fakeAuthProvider) Refresh(ctx context.Context) (*sfapi.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refreshCalls++

	return p.mint("refreshed"), nil
}

func (p *fakeAuthProvider) mint(prefix string) *sfapi.Token {
	token := &sfapi.Token{
		AccessToken: fmt.Sprintf("%s-%d", prefix, p.authenticateCalls+p.refreshCalls),
		InstanceURL: p.instanceURL,
		IssuedAt:    time.Now(),
	}

	if p.tokenLifetime > 0 {
		expiry := time.Now().Add(p.tokenLifetime)
		token.ExpiresAt = &expiry
	}

	return token
}

func (p *fakeAuthProvider) calls() (authenticates, refreshes int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.authenticateCalls, p.refreshCalls
}

// staticTokenManager hands out one fixed token, for tests that do not care
// about refresh behavior.
type staticTokenManager struct {
	token *sfapi.Token
}

func newStaticTokenManager(instanceURL string) *staticTokenManager {
	return &staticTokenManager{
		token: &sfapi.Token{
			AccessToken: "test-token",
			InstanceURL: instanceURL,
			IssuedAt:    time.Now(),
		},
	}
}

func (m *staticTokenManager) GetToken(ctx context.Context) (*sfapi.Token, error) {
	return m.token, nil
}

func (m *staticTokenManager) ForceRefresh(ctx context.Context, rejected *sfapi.Token) (*sfapi.Token, error) {
	return m.token, nil
}

// newTestDispatcher builds a dispatcher addressing the given test server.
func newTestDispatcher(serverURL string) *internalhttp.Client {
	return internalhttp.NewClient(newStaticTokenManager(serverURL))
}

func testBasePath() string {
	return apiBasePath(constants.DefaultAPIVersion)
}

// testOrgConfig builds a registrable org with valid credentials.
func testOrgConfig(alias string) sfapi.OrgConfig {
	return sfapi.OrgConfig{
		Alias:  alias,
		Domain: "test",
		Credentials: &sfapi.UsernamePasswordCredentials{
			Username: "it@example.com",
			Password: "hunter2",
		},
	}
}
