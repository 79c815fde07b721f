package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when no record matches.
var ErrNotFound = errors.New("not found")

// ClientRepository defines read access to registered clients.
type ClientRepository interface {
	GetClient(ctx context.Context, id string) (*Client, error)
}

// AccountRepository defines read access to end-user accounts.
type AccountRepository interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
}

// TokenRepository defines the persistence contract for access token
// records.
type TokenRepository interface {
	StoreToken(ctx context.Context, token *AccessToken) error
	GetToken(ctx context.Context, id string) (*AccessToken, error)
	// GetTokenByRefreshID resolves the record a refresh identifier renews,
	// scoped to the client submitting the exchange.
	GetTokenByRefreshID(ctx context.Context, refreshID, clientID string) (*AccessToken, error)
	// DeleteToken removes a record and reports whether one was removed.
	// Deleting an absent record is not an error.
	DeleteToken(ctx context.Context, id string) (bool, error)
	// RotateToken replaces old with replacement as one logical unit. The
	// replacement must be durable before old stops resolving, and old must
	// never survive a successful rotation.
	RotateToken(ctx context.Context, old, replacement *AccessToken) error
}
