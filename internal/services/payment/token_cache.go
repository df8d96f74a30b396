package payment

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/mpesa-service/internal/domain/models"
	"github.com/kevin07696/mpesa-service/pkg/observability"
	"go.uber.org/zap"
)

const (
	// defaultTokenTTL applies when the gateway omits expires_in
	defaultTokenTTL = 50 * time.Minute

	// tokenExpirySkew refreshes tokens early so one is never sent as it expires
	tokenExpirySkew = time.Minute
)

// TokenFetcher performs the client-credential exchange
type TokenFetcher interface {
	FetchAccessToken(ctx context.Context) (*models.AccessToken, error)
}

// TokenCache holds one bearer token until shortly before it expires.
// Concurrent callers share a single fetch.
type TokenCache struct {
	fetcher TokenFetcher
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache creates a token cache backed by fetcher
func NewTokenCache(fetcher TokenFetcher, logger *zap.Logger) *TokenCache {
	return &TokenCache{
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns a cached token or fetches a new one
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		observability.RecordTokenCacheLookup("hit")
		return c.token, nil
	}
	observability.RecordTokenCacheLookup("miss")

	token, err := c.fetcher.FetchAccessToken(ctx)
	if err != nil {
		observability.RecordTokenFetch("failed")
		return "", err
	}
	observability.RecordTokenFetch("success")

	ttl := token.ExpiresIn
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if ttl > tokenExpirySkew {
		ttl -= tokenExpirySkew
	}

	c.token = token.Token
	c.expiresAt = c.now().Add(ttl)

	c.logger.Debug("Cached gateway access token",
		zap.Time("expires_at", c.expiresAt))

	return c.token, nil
}

// Invalidate drops the cached token so the next Get fetches a fresh one
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" {
		observability.RecordTokenCacheLookup("invalidated")
	}
	c.token = ""
	c.expiresAt = time.Time{}
}
