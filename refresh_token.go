package gatekeeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.pilab.hu/gatekeeper/domain"
	gkerrors "go.pilab.hu/gatekeeper/errors"
)

// GrantTypeRefreshToken identifies the refresh_token grant.
const GrantTypeRefreshToken = "refresh_token"

var schemaRefreshToken = Schema{
	"refresh_token": {},
}

// RefreshTokenGranter exchanges a refresh token for a replacement
// user-bound token. The consumed record is removed in the same logical
// operation that creates its replacement, so a refresh identifier is usable
// at most once.
type RefreshTokenGranter struct {
	accounts domain.AccountRepository
	tokens   domain.TokenRepository
	codec    *TokenCodec
}

// NewRefreshTokenGranter creates the refresh_token granter.
func NewRefreshTokenGranter(accounts domain.AccountRepository, tokens domain.TokenRepository, codec *TokenCodec) *RefreshTokenGranter {
	return &RefreshTokenGranter{accounts: accounts, tokens: tokens, codec: codec}
}

func (g *RefreshTokenGranter) Name() string {
	return GrantTypeRefreshToken
}

func (g *RefreshTokenGranter) SchemaFor(client *domain.Client) (Schema, error) {
	return selectSchema(client, schemaSelector{
		native:    schemaRefreshToken,
		android:   schemaRefreshToken,
		recaptcha: schemaRefreshToken,
	})
}

// Validate verifies the submitted refresh token, resolves the record it
// renews, and checks that the record's client and account are still in good
// standing. Codec failures are remapped to the grant-level token_expired
// and invalid_token errors.
func (g *RefreshTokenGranter) Validate(ctx context.Context, req *Request) error {
	// A request that declares an origin must hold a refresh token bound to
	// that origin.
	claims, err := g.codec.Verify(req.Field("refresh_token"), VerifyOptions{Audience: req.Origin})
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			return gkerrors.NewTokenExpired()
		case errors.Is(err, ErrTokenInvalid):
			return gkerrors.NewInvalidToken("The refresh token is invalid.")
		default:
			return fmt.Errorf("failed to verify refresh token: %w", err)
		}
	}

	refreshID, err := TokenID(claims)
	if err != nil {
		return gkerrors.NewInvalidToken("The refresh token is invalid.")
	}

	record, err := g.tokens.GetTokenByRefreshID(ctx, refreshID, req.Client.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return gkerrors.NewInvalidToken("The refresh token does not exist.")
		}
		return fmt.Errorf("failed to resolve refresh token: %w", err)
	}

	// The requesting client is the record's client; its enabled state was
	// already checked during client resolution. Kept for the invariant that
	// a rotation never succeeds for a disabled owner.
	if !req.Client.Enabled {
		return gkerrors.NewClientDisabled()
	}

	account, err := g.accounts.GetAccount(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return gkerrors.NewInvalidToken("The refresh token does not exist.")
		}
		return fmt.Errorf("failed to look up token account: %w", err)
	}

	if account.Deleted {
		return gkerrors.NewAccountDeleted()
	}

	if !account.Enabled {
		return gkerrors.NewAccountDisabled()
	}

	req.Account = account
	req.renewing = record

	return nil
}

// CreateToken rotates the consumed record: the replacement is created and
// the old record removed as one logical unit. Scope and origin carry over
// unchanged.
func (g *RefreshTokenGranter) CreateToken(ctx context.Context, req *Request) (*domain.AccessToken, error) {
	if req.renewing == nil {
		if err := g.Validate(ctx, req); err != nil {
			return nil, err
		}
	}

	replacement := req.renewing.Renew(req.Client.Expiration)

	if err := g.tokens.RotateToken(ctx, req.renewing, replacement); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	log.Debug().
		Str("client_id", req.Client.ID).
		Str("old_token_id", req.renewing.ID).
		Str("token_id", replacement.ID).
		Msg("rotated refresh token")

	return replacement, nil
}
