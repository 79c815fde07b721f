package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind discriminates the two access token record variants.
type TokenKind string

const (
	// TokenKindClient tokens are owned by a client only.
	TokenKindClient TokenKind = "client_token"
	// TokenKindUser tokens are owned by an account through an authorizing
	// client, and may carry a refresh identifier.
	TokenKindUser TokenKind = "user_token"
)

// AccessToken is the persisted grant artifact. Rotation never mutates a
// record in place; a refresh exchange deletes the old record and creates a
// new one.
//
//nolint:tagliatelle
type AccessToken struct {
	ID        string         `bson:"_id,omitempty" json:"id"`
	Kind      TokenKind      `bson:"kind" json:"kind"`
	ClientID  string         `bson:"client_id" json:"client_id"`
	AccountID string         `bson:"account_id,omitempty" json:"account_id,omitempty"`
	RefreshID string         `bson:"refresh_id,omitempty" json:"refresh_id,omitempty"`
	Scope     []string       `bson:"scope,omitempty" json:"scope,omitempty"`
	Origin    string         `bson:"origin,omitempty" json:"origin,omitempty"`
	ExpiresAt time.Time      `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	Payload   map[string]any `bson:"payload,omitempty" json:"payload,omitempty"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}

// NewClientToken builds a client-bound token record. The effective scope is
// the client's own scope only.
func NewClientToken(client *Client, origin string) *AccessToken {
	token := &AccessToken{
		ID:        uuid.NewString(),
		Kind:      TokenKindClient,
		ClientID:  client.ID,
		Scope:     UnionScope(client.Scope, nil),
		Origin:    origin,
		CreatedAt: time.Now().UTC(),
	}

	if client.Expiration > 0 {
		token.ExpiresAt = token.CreatedAt.Add(client.Expiration)
	}

	return token
}

// NewUserToken builds a user-bound token record with a fresh refresh
// identifier. The effective scope is the union of the client and account
// scopes; broader access is additive, never narrowed by either side alone.
func NewUserToken(client *Client, account *Account, origin string) *AccessToken {
	token := &AccessToken{
		ID:        uuid.NewString(),
		Kind:      TokenKindUser,
		ClientID:  client.ID,
		AccountID: account.ID,
		RefreshID: uuid.NewString(),
		Scope:     UnionScope(client.Scope, account.Scope),
		Origin:    origin,
		CreatedAt: time.Now().UTC(),
	}

	if client.Expiration > 0 {
		token.ExpiresAt = token.CreatedAt.Add(client.Expiration)
	}

	return token
}

// Renew builds the replacement record for a refresh exchange. Scope and
// origin carry over from the consumed record; only the identifiers change.
func (t *AccessToken) Renew(expiration time.Duration) *AccessToken {
	replacement := &AccessToken{
		ID:        uuid.NewString(),
		Kind:      TokenKindUser,
		ClientID:  t.ClientID,
		AccountID: t.AccountID,
		RefreshID: uuid.NewString(),
		Scope:     append([]string(nil), t.Scope...),
		Origin:    t.Origin,
		CreatedAt: time.Now().UTC(),
	}

	if expiration > 0 {
		replacement.ExpiresAt = replacement.CreatedAt.Add(expiration)
	}

	return replacement
}

// Expired reports whether the record carries an expiration that has passed.
func (t *AccessToken) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// UnionScope returns the set union of two scope lists. Order of the result
// follows first occurrence; duplicates are dropped.
func UnionScope(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	union := make([]string, 0, len(a)+len(b))

	for _, scopes := range [][]string{a, b} {
		for _, s := range scopes {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			union = append(union, s)
		}
	}

	return union
}
