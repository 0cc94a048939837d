package mgu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/wbuist/mgu-api-integration/pkg/errors"
)

// tokenCacheKey is where the access token is persisted between processes.
const tokenCacheKey = "mgu:access_token"

// expiryMargin is subtracted from the token lifetime so a token is never
// used within five minutes of its server-side expiry. A request in flight
// at the margin boundary would otherwise race the expiry and burn the
// single 401 retry.
const expiryMargin = 300 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenManager obtains and caches OAuth client-credentials access tokens
// for the MGU auth server. It keeps a process-local copy guarded by a mutex
// and writes through to the injected Cache so restarts and sibling replicas
// reuse the same token instead of hammering the token endpoint.
type TokenManager struct {
	httpClient   Doer
	authURL      string
	clientID     string
	clientSecret string
	cache        Cache
	logger       *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewTokenManager creates a token manager. authURL is the environment auth
// base (the /oauth/token path is appended).
func NewTokenManager(httpClient Doer, authURL, clientID, clientSecret string, cache Cache, logger *slog.Logger) *TokenManager {
	return &TokenManager{
		httpClient:   httpClient,
		authURL:      strings.TrimRight(authURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		cache:        cache,
		logger:       logger,
		now:          time.Now,
	}
}

// Token returns a valid access token, refreshing it when the in-memory copy
// is missing or within the expiry margin. Lookup order: memory, cache,
// token endpoint.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if m.clientID == "" || m.clientSecret == "" {
		return "", apperrors.Config("MGU client credentials not configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiresAt.Add(-expiryMargin)) {
		return m.token, nil
	}

	// Cache entries are stored with a TTL already shortened by the margin,
	// so any hit is still usable.
	if cached, ok, err := m.cache.Get(ctx, tokenCacheKey); err != nil {
		m.logger.WarnContext(ctx, "token cache read failed", slog.String("error", err.Error()))
	} else if ok {
		m.token = cached
		// The cache does not surface its remaining TTL; keep the in-memory
		// expiry conservative so the next call re-checks the cache.
		m.expiresAt = m.now().Add(expiryMargin)
		return m.token, nil
	}

	return m.refresh(ctx)
}

// Invalidate discards the current token in memory and in the cache. Called
// by the gateway when the API answers 401 despite a token the manager
// considered valid.
func (m *TokenManager) Invalidate(ctx context.Context) {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()

	if err := m.cache.Delete(ctx, tokenCacheKey); err != nil {
		m.logger.WarnContext(ctx, "token cache delete failed", slog.String("error", err.Error()))
	}
}

// refresh fetches a new token from the auth server. Caller holds m.mu.
func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.authURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.Wrap(err, "create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(ctx, req)
	if err != nil {
		return "", apperrors.Transport(fmt.Errorf("token request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Transport(fmt.Errorf("read token response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Auth(fmt.Sprintf("token endpoint returned %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", apperrors.Auth("invalid token response: " + err.Error())
	}
	if tr.AccessToken == "" {
		return "", apperrors.Auth("token response missing access_token")
	}

	m.token = tr.AccessToken
	m.expiresAt = m.now().Add(time.Duration(tr.ExpiresIn) * time.Second)

	cacheTTL := time.Duration(tr.ExpiresIn)*time.Second - expiryMargin
	if cacheTTL > 0 {
		if err := m.cache.Set(ctx, tokenCacheKey, m.token, cacheTTL); err != nil {
			m.logger.WarnContext(ctx, "token cache write failed", slog.String("error", err.Error()))
		}
	}

	m.logger.DebugContext(ctx, "access token refreshed",
		slog.Int64("expires_in", tr.ExpiresIn),
		slog.Duration("cache_ttl", cacheTTL),
	)

	return m.token, nil
}
