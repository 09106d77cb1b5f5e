package auth

import (
	"context"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// Manager owns one org's token lifecycle. A valid cached token is returned
// without touching the token endpoint; an invalid one is replaced by exactly
// one exchange even under concurrent callers.
type Manager struct {
	provider Provider
	store    *TokenStore

	// refreshMu serializes exchanges so concurrent callers that all find
	// the cached token invalid trigger a single refresh.
	refreshMu chan struct{}
}

// NewManager creates a token manager around a provider.
func NewManager(provider Provider) *Manager {
	return &Manager{
		provider:  provider,
		store:     NewTokenStore(),
		refreshMu: make(chan struct{}, 1),
	}
}

// GetToken returns a valid token, exchanging credentials only when the
// cached one is missing or expired.
func (m *Manager) GetToken(ctx context.Context) (*sfapi.Token, error) {
	token := m.store.Get()
	if token.Valid() {
		return token, nil
	}

	return m.refresh(ctx, token)
}

// ForceRefresh replaces a token the server rejected. When another caller
// already swapped in a different token, that one is returned without a new
// exchange.
func (m *Manager) ForceRefresh(ctx context.Context, rejected *sfapi.Token) (*sfapi.Token, error) {
	return m.refresh(ctx, rejected)
}

// SetToken seeds the store, bypassing the provider.
func (m *Manager) SetToken(token *sfapi.Token) {
	m.store.Set(token)
}

// Clear drops the cached token; the next GetToken re-authenticates.
func (m *Manager) Clear() {
	m.store.Clear()
}

// refresh performs one exchange for callers that observed stale as the
// current token. The first caller in wins; the rest see its result.
func (m *Manager) refresh(ctx context.Context, stale *sfapi.Token) (*sfapi.Token, error) {
	select {
	case m.refreshMu <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-m.refreshMu }()

	// Someone else finished a refresh while we waited for the slot.
	current := m.store.Get()
	if current != stale && current.Valid() {
		return current, nil
	}

	var (
		token *sfapi.Token
		err   error
	)

	if current == nil {
		token, err = m.provider.Authenticate(ctx)
	} else {
		token, err = m.provider.Refresh(ctx)
	}

	if err != nil {
		return nil, err
	}

	m.store.Set(token)

	return token, nil
}
