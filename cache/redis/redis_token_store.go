package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.pilab.hu/gatekeeper/cache"
	"go.pilab.hu/gatekeeper/domain"
)

// TokenStore implements cache.TokenStore on Redis, for deployments that run
// more than one gatekeeper instance behind a balancer.
type TokenStore struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewTokenStore creates a Redis-backed token store. prefix namespaces the
// keys; defaultTTL bounds entries whose record has no expiration.
func NewTokenStore(client *redis.Client, prefix string, defaultTTL time.Duration) *TokenStore {
	return &TokenStore{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
	}
}

func (r *TokenStore) key(token string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, cache.HashToken(token))
}

// Set implements cache.TokenStore.Set.
func (r *TokenStore) Set(ctx context.Context, token string, record *domain.AccessToken) error {
	ttl := r.defaultTTL
	if !record.ExpiresAt.IsZero() {
		ttl = time.Until(record.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}

	if err := r.client.Set(ctx, r.key(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache token in redis: %w", err)
	}

	return nil
}

// Get implements cache.TokenStore.Get.
func (r *TokenStore) Get(ctx context.Context, token string) (*domain.AccessToken, error) {
	payload, err := r.client.Get(ctx, r.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read token from redis: %w", err)
	}

	var record domain.AccessToken
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token record: %w", err)
	}

	return &record, nil
}

// Delete implements cache.TokenStore.Delete.
func (r *TokenStore) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}

	return nil
}
