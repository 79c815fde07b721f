package gatekeeper

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.pilab.hu/gatekeeper/domain"
	gkerrors "go.pilab.hu/gatekeeper/errors"
)

// GrantTypeClientCredentials identifies the client_credentials grant.
const GrantTypeClientCredentials = "client_credentials"

var schemaClientSecret = Schema{
	"client_secret": {},
}

// ClientCredentialsGranter exchanges a client's own proof (secret, or a
// solved challenge for recaptcha clients) for a client-bound token.
type ClientCredentialsGranter struct {
	tokens domain.TokenRepository
}

// NewClientCredentialsGranter creates the client_credentials granter.
func NewClientCredentialsGranter(tokens domain.TokenRepository) *ClientCredentialsGranter {
	return &ClientCredentialsGranter{tokens: tokens}
}

func (g *ClientCredentialsGranter) Name() string {
	return GrantTypeClientCredentials
}

func (g *ClientCredentialsGranter) SchemaFor(client *domain.Client) (Schema, error) {
	return selectSchema(client, schemaSelector{
		native:  schemaClientSecret,
		android: schemaClientSecret.Merge(Schema{"package": {}}),
		recaptcha: Schema{
			"recaptcha": {},
		},
	})
}

// Validate compares the submitted secret for secret-based clients. A
// recaptcha client already proved itself during variant validation.
func (g *ClientCredentialsGranter) Validate(ctx context.Context, req *Request) error {
	return req.Client.Accept(&clientSecretCheck{req: req})
}

// CreateToken mints a client-bound token whose scope is exactly the
// client's own scope set.
func (g *ClientCredentialsGranter) CreateToken(ctx context.Context, req *Request) (*domain.AccessToken, error) {
	token := domain.NewClientToken(req.Client, req.Origin)

	if err := g.tokens.StoreToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store client token: %w", err)
	}

	log.Debug().
		Str("client_id", req.Client.ID).
		Str("token_id", token.ID).
		Msg("issued client credentials token")

	return token, nil
}

// clientSecretCheck verifies the shared secret for the kinds that carry
// one.
type clientSecretCheck struct {
	req *Request
}

func (c *clientSecretCheck) VisitNativeClient(client *domain.Client) error {
	submitted := c.req.Field("client_secret")
	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(submitted)) != 1 {
		return gkerrors.NewInvalidSecret()
	}

	return nil
}

func (c *clientSecretCheck) VisitAndroidClient(client *domain.Client) error {
	return c.VisitNativeClient(client)
}

func (c *clientSecretCheck) VisitRecaptchaClient(*domain.Client) error {
	return nil
}
