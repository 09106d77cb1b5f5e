package auth

import (
	"sync"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// TokenStore holds one org's current token. Reads see either the previous
// token or the new one, never a partial write.
type TokenStore struct {
	mu    sync.RWMutex
	token *sfapi.Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the stored token, or nil.
func (s *TokenStore) Get() *sfapi.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set swaps in a new token.
func (s *TokenStore) Set(token *sfapi.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Clear removes the stored token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}
