package mgu

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
)

type doerFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f doerFunc) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTokenManager_RefreshesOnceWithinLifetime(t *testing.T) {
	var calls int
	doer := doerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		calls++
		assert.Equal(t, "https://auth.example.com/oauth/token", req.URL.String())
		assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
		require.NoError(t, req.ParseForm())
		assert.Equal(t, "client_credentials", req.PostForm.Get("grant_type"))
		return jsonResponse(200, `{"access_token":"tok-1","expires_in":3600}`), nil
	})

	m := NewTokenManager(doer, "https://auth.example.com", "id", "secret", newMemCache(), testLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	tok, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// Repeated calls inside the validity window reuse the token.
	for i := 0; i < 5; i++ {
		tok, err = m.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
	}
	assert.Equal(t, 1, calls)
}

func TestTokenManager_RefreshesInsideExpiryMargin(t *testing.T) {
	var calls int
	doer := doerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(200, `{"access_token":"tok-`+strings.Repeat("x", calls)+`","expires_in":3600}`), nil
	})

	cache := newMemCache()
	m := NewTokenManager(doer, "https://auth.example.com", "id", "secret", cache, testLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// 3600s lifetime with a 300s margin: at +3299s the token is still fine,
	// at +3301s it must be refreshed. The cache entry is cleared first so
	// the lookup falls through to the endpoint.
	now = now.Add(3299 * time.Second)
	_, err = m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	require.NoError(t, cache.Delete(ctx, tokenCacheKey))
	now = now.Add(2 * time.Second)
	_, err = m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTokenManager_CacheTTLShortenedByMargin(t *testing.T) {
	doer := doerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"access_token":"tok-1","expires_in":3600}`), nil
	})

	cache := newMemCache()
	m := NewTokenManager(doer, "https://auth.example.com", "id", "secret", cache, testLogger())

	_, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3300*time.Second, cache.ttls[tokenCacheKey])
}

func TestTokenManager_UsesCachedToken(t *testing.T) {
	doer := doerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		t.Fatal("no token request expected on cache hit")
		return nil, nil
	})

	cache := newMemCache()
	require.NoError(t, cache.Set(context.Background(), tokenCacheKey, "cached-tok", time.Hour))

	m := NewTokenManager(doer, "https://auth.example.com", "id", "secret", cache, testLogger())
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-tok", tok)
}

func TestTokenManager_Invalidate(t *testing.T) {
	var calls int
	doer := doerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(200, `{"access_token":"tok-1","expires_in":3600}`), nil
	})

	cache := newMemCache()
	m := NewTokenManager(doer, "https://auth.example.com", "id", "secret", cache, testLogger())

	ctx := context.Background()
	_, err := m.Token(ctx)
	require.NoError(t, err)

	m.Invalidate(ctx)
	_, ok, err := cache.Get(ctx, tokenCacheKey)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTokenManager_AuthErrorOnBadStatus(t *testing.T) {
	doer := doerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return jsonResponse(401, `{"error":"invalid_client"}`), nil
	})

	m := NewTokenManager(doer, "https://auth.example.com", "id", "bad-secret", newMemCache(), testLogger())
	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAuth))
}

func TestTokenManager_AuthErrorOnMissingToken(t *testing.T) {
	doer := doerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"expires_in":3600}`), nil
	})

	m := NewTokenManager(doer, "https://auth.example.com", "id", "secret", newMemCache(), testLogger())
	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAuth))
}

func TestTokenManager_ConfigErrorWithoutCredentials(t *testing.T) {
	doer := doerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected without credentials")
		return nil, nil
	})

	m := NewTokenManager(doer, "https://auth.example.com", "", "", newMemCache(), testLogger())
	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
}

func TestTokenManager_TransportError(t *testing.T) {
	doer := doerFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	m := NewTokenManager(doer, "https://auth.example.com", "id", "secret", newMemCache(), testLogger())
	_, err := m.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTransport))
}
