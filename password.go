package gatekeeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.pilab.hu/gatekeeper/domain"
	gkerrors "go.pilab.hu/gatekeeper/errors"
)

// GrantTypePassword identifies the password grant.
const GrantTypePassword = "password"

var schemaUserCredentials = Schema{
	"username": {},
	"password": {},
}

// PasswordGranter exchanges an account's username and password for a
// user-bound token with a fresh refresh identifier.
type PasswordGranter struct {
	accounts domain.AccountRepository
	tokens   domain.TokenRepository
}

// NewPasswordGranter creates the password granter.
func NewPasswordGranter(accounts domain.AccountRepository, tokens domain.TokenRepository) *PasswordGranter {
	return &PasswordGranter{accounts: accounts, tokens: tokens}
}

func (g *PasswordGranter) Name() string {
	return GrantTypePassword
}

func (g *PasswordGranter) SchemaFor(client *domain.Client) (Schema, error) {
	return selectSchema(client, schemaSelector{
		native:    schemaUserCredentials,
		android:   schemaUserCredentials.Merge(Schema{"package": {}}),
		recaptcha: schemaUserCredentials.Merge(Schema{"recaptcha": {}}),
	})
}

// Validate resolves the account and checks its state and password. The
// check order is fixed: unknown username, then deleted, then disabled, then
// password mismatch.
func (g *PasswordGranter) Validate(ctx context.Context, req *Request) error {
	account, err := g.findAccount(ctx, req)
	if err != nil {
		return err
	}

	req.Account = account

	return nil
}

// CreateToken mints a user-bound token whose scope is the union of the
// client and account scope sets.
func (g *PasswordGranter) CreateToken(ctx context.Context, req *Request) (*domain.AccessToken, error) {
	if req.Account == nil {
		if err := g.Validate(ctx, req); err != nil {
			return nil, err
		}
	}

	token := domain.NewUserToken(req.Client, req.Account, req.Origin)

	if err := g.tokens.StoreToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store user token: %w", err)
	}

	log.Debug().
		Str("client_id", req.Client.ID).
		Str("account_id", req.Account.ID).
		Str("token_id", token.ID).
		Msg("issued password grant token")

	return token, nil
}

func (g *PasswordGranter) findAccount(ctx context.Context, req *Request) (*domain.Account, error) {
	account, err := g.accounts.GetAccountByUsername(ctx, req.Field("username"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, gkerrors.NewInvalidUsername()
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if account.Deleted {
		return nil, gkerrors.NewAccountDeleted()
	}

	if !account.Enabled {
		return nil, gkerrors.NewAccountDisabled()
	}

	if !account.VerifyPassword(req.Field("password")) {
		return nil, gkerrors.NewInvalidPassword()
	}

	return account, nil
}
