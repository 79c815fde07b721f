package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.pilab.hu/gatekeeper/domain"
)

// MemoryTokenStore implements TokenStore with an in-process ttlcache.
type MemoryTokenStore struct {
	cache      *ttlcache.Cache[string, *domain.AccessToken]
	defaultTTL time.Duration
}

// NewMemoryTokenStore creates an in-memory token store with automatic
// expiry cleanup. defaultTTL bounds entries whose record carries no
// expiration of its own.
func NewMemoryTokenStore(defaultTTL time.Duration) *MemoryTokenStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *domain.AccessToken](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, *domain.AccessToken](),
	)

	go cache.Start()

	return &MemoryTokenStore{
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// Set implements TokenStore.Set.
func (s *MemoryTokenStore) Set(_ context.Context, token string, record *domain.AccessToken) error {
	ttl := s.defaultTTL
	if !record.ExpiresAt.IsZero() {
		ttl = time.Until(record.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}

	s.cache.Set(HashToken(token), record, ttl)

	return nil
}

// Get implements TokenStore.Get.
func (s *MemoryTokenStore) Get(_ context.Context, token string) (*domain.AccessToken, error) {
	item := s.cache.Get(HashToken(token))
	if item == nil {
		return nil, ErrCacheMiss
	}

	return item.Value(), nil
}

// Delete implements TokenStore.Delete.
func (s *MemoryTokenStore) Delete(_ context.Context, token string) error {
	s.cache.Delete(HashToken(token))

	return nil
}

// Stop halts the background cleanup goroutine.
func (s *MemoryTokenStore) Stop() {
	s.cache.Stop()
}
