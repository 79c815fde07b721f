package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientToken(t *testing.T) {
	client := &Client{
		ID:         "c1",
		Scope:      []string{"read:items"},
		Expiration: time.Hour,
	}

	token := NewClientToken(client, "https://app.example.com")

	assert.NotEmpty(t, token.ID)
	assert.Equal(t, TokenKindClient, token.Kind)
	assert.Equal(t, "c1", token.ClientID)
	assert.Empty(t, token.AccountID)
	assert.Empty(t, token.RefreshID, "client tokens are not refreshable")
	assert.Equal(t, []string{"read:items"}, token.Scope)
	assert.Equal(t, "https://app.example.com", token.Origin)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)
}

func TestNewClientToken_NoExpirationPolicy(t *testing.T) {
	token := NewClientToken(&Client{ID: "c1"}, "")

	assert.True(t, token.ExpiresAt.IsZero())
	assert.False(t, token.Expired())
}

func TestNewUserToken(t *testing.T) {
	client := &Client{ID: "c1", Scope: []string{"read:items", "profile"}}
	account := &Account{ID: "a1", Scope: []string{"profile", "admin"}}

	token := NewUserToken(client, account, "")

	assert.Equal(t, TokenKindUser, token.Kind)
	assert.Equal(t, "c1", token.ClientID)
	assert.Equal(t, "a1", token.AccountID)
	assert.NotEmpty(t, token.RefreshID)
	assert.Equal(t, []string{"read:items", "profile", "admin"}, token.Scope)
}

func TestRenew(t *testing.T) {
	original := NewUserToken(
		&Client{ID: "c1", Scope: []string{"read:items"}},
		&Account{ID: "a1"},
		"https://app.example.com",
	)

	replacement := original.Renew(time.Hour)

	assert.NotEqual(t, original.ID, replacement.ID)
	assert.NotEqual(t, original.RefreshID, replacement.RefreshID)
	assert.Equal(t, original.ClientID, replacement.ClientID)
	assert.Equal(t, original.AccountID, replacement.AccountID)
	assert.Equal(t, original.Scope, replacement.Scope)
	assert.Equal(t, original.Origin, replacement.Origin)
	assert.WithinDuration(t, time.Now().Add(time.Hour), replacement.ExpiresAt, 5*time.Second)

	// Mutating the replacement scope must not reach back into the original.
	replacement.Scope[0] = "mutated"
	assert.Equal(t, "read:items", original.Scope[0])
}

func TestExpired(t *testing.T) {
	assert.False(t, (&AccessToken{}).Expired())
	assert.False(t, (&AccessToken{ExpiresAt: time.Now().Add(time.Minute)}).Expired())
	assert.True(t, (&AccessToken{ExpiresAt: time.Now().Add(-time.Minute)}).Expired())
}

func TestUnionScope(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want []string
	}{
		{"disjoint", []string{"a"}, []string{"b"}, []string{"a", "b"}},
		{"overlap keeps first occurrence", []string{"a", "b"}, []string{"b", "c"}, []string{"a", "b", "c"}},
		{"both empty", nil, nil, []string{}},
		{"duplicates within one side", []string{"a", "a"}, nil, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnionScope(tt.a, tt.b))
		})
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	account := &Account{PasswordHash: hash}
	assert.True(t, account.VerifyPassword("hunter2"))
	assert.False(t, account.VerifyPassword("hunter3"))
}
