package auth_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/sfapi/internal/auth"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// countingProvider hands out sequential tokens and counts exchanges.
type countingProvider struct {
	authenticateCalls atomic.Int64
	refreshCalls      atomic.Int64
	sequence          atomic.Int64
	delay             time.Duration
	err               error
}

func (p *countingProvider) next() *sfapi.Token {
	n := p.sequence.Add(1)

	return &sfapi.Token{
		AccessToken: "token-" + strconv.FormatInt(n, 10),
		InstanceURL: "https://example.my.salesforce.com",
		IssuedAt:    time.Now(),
	}
}

func (p *countingProvider) Authenticate(ctx context.Context) (*sfapi.Token, error) {
	p.authenticateCalls.Add(1)

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	if p.err != nil {
		return nil, p.err
	}

	return p.next(), nil
}

func (p *countingProvider) Refresh(ctx context.Context) (*sfapi.Token, error) {
	p.refreshCalls.Add(1)

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	if p.err != nil {
		return nil, p.err
	}

	return p.next(), nil
}

func (p *countingProvider) totalCalls() int64 {
	return p.authenticateCalls.Load() + p.refreshCalls.Load()
}

func TestManager_GetToken_FirstCallAuthenticates(t *testing.T) {
	provider := &countingProvider{}
	manager := auth.NewManager(provider)

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, int64(1), provider.authenticateCalls.Load())
	assert.Equal(t, int64(0), provider.refreshCalls.Load())
}

func TestManager_GetToken_CachedTokenSkipsExchange(t *testing.T) {
	provider := &countingProvider{}
	manager := auth.NewManager(provider)

	expiresAt := time.Now().Add(1 * time.Hour)
	seeded := &sfapi.Token{AccessToken: "seeded", ExpiresAt: &expiresAt}
	manager.SetToken(seeded)

	for i := 0; i < 5; i++ {
		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "seeded", token.AccessToken)
	}

	assert.Equal(t, int64(0), provider.totalCalls())
}

func TestManager_GetToken_ExpiredTokenRefreshesOnce(t *testing.T) {
	provider := &countingProvider{}
	manager := auth.NewManager(provider)

	expiresAt := time.Now().Add(-1 * time.Minute)
	manager.SetToken(&sfapi.Token{AccessToken: "stale", ExpiresAt: &expiresAt})

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "stale", token.AccessToken)
	assert.Equal(t, int64(1), provider.refreshCalls.Load())

	// The replacement has no expiry, so later calls reuse it.
	again, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, again.AccessToken)
	assert.Equal(t, int64(1), provider.totalCalls())
}

func TestManager_GetToken_ConcurrentExpirySingleRefresh(t *testing.T) {
	provider := &countingProvider{delay: 20 * time.Millisecond}
	manager := auth.NewManager(provider)

	expiresAt := time.Now().Add(-1 * time.Minute)
	manager.SetToken(&sfapi.Token{AccessToken: "stale", ExpiresAt: &expiresAt})

	const goroutines = 16

	var waitGroup sync.WaitGroup

	tokens := make([]*sfapi.Token, goroutines)

	for i := 0; i < goroutines; i++ {
		i := i

		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			token, err := manager.GetToken(context.Background())
			assert.NoError(t, err)
			tokens[i] = token
		}()
	}

	waitGroup.Wait()

	assert.Equal(t, int64(1), provider.totalCalls())

	for _, token := range tokens {
		assert.Equal(t, tokens[0].AccessToken, token.AccessToken)
	}
}

func TestManager_ForceRefresh_ReplacesRejectedToken(t *testing.T) {
	provider := &countingProvider{}
	manager := auth.NewManager(provider)

	rejected := &sfapi.Token{AccessToken: "rejected"}
	manager.SetToken(rejected)

	replacement, err := manager.ForceRefresh(context.Background(), rejected)
	require.NoError(t, err)
	assert.NotEqual(t, "rejected", replacement.AccessToken)
	assert.Equal(t, int64(1), provider.refreshCalls.Load())
}

func TestManager_ForceRefresh_AlreadySwapped(t *testing.T) {
	provider := &countingProvider{}
	manager := auth.NewManager(provider)

	rejected := &sfapi.Token{AccessToken: "rejected"}
	current := &sfapi.Token{AccessToken: "already-refreshed"}
	manager.SetToken(current)

	token, err := manager.ForceRefresh(context.Background(), rejected)
	require.NoError(t, err)
	assert.Equal(t, "already-refreshed", token.AccessToken)
	assert.Equal(t, int64(0), provider.totalCalls())
}

func TestManager_ForceRefresh_ConcurrentRejectionsSingleExchange(t *testing.T) {
	provider := &countingProvider{delay: 20 * time.Millisecond}
	manager := auth.NewManager(provider)

	rejected := &sfapi.Token{AccessToken: "rejected"}
	manager.SetToken(rejected)

	const goroutines = 8

	var waitGroup sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			_, err := manager.ForceRefresh(context.Background(), rejected)
			assert.NoError(t, err)
		}()
	}

	waitGroup.Wait()

	assert.Equal(t, int64(1), provider.totalCalls())
}

func TestManager_GetToken_ContextCancelledWhileWaiting(t *testing.T) {
	provider := &countingProvider{delay: 200 * time.Millisecond}
	manager := auth.NewManager(provider)

	// First caller holds the refresh slot.
	go func() {
		_, _ = manager.GetToken(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := manager.GetToken(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_Clear(t *testing.T) {
	provider := &countingProvider{}
	manager := auth.NewManager(provider)

	manager.SetToken(&sfapi.Token{AccessToken: "seeded"})
	manager.Clear()

	_, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), provider.authenticateCalls.Load())
}
