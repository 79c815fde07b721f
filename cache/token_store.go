package cache

import (
	"context"
	"errors"

	"go.pilab.hu/gatekeeper/domain"
)

// ErrCacheMiss is returned by Get when no entry exists for the token.
var ErrCacheMiss = errors.New("token not cached")

// TokenStore caches resolved access token records keyed by the raw bearer
// string, so repeated bearer authentication avoids a repository round trip.
// Entries are evicted on revocation and expire with the record.
type TokenStore interface {
	Set(ctx context.Context, token string, record *domain.AccessToken) error
	Get(ctx context.Context, token string) (*domain.AccessToken, error)
	Delete(ctx context.Context, token string) error
}
