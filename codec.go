// Package gatekeeper implements the token issuance pipeline: a signed
// token codec, one granter per OAuth2 grant type, a staged validation
// pipeline, and the issuance orchestrator tying them together.
package gatekeeper

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid marks a token that failed signature or structural
	// verification. Callers reject these outright.
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenExpired marks a token rejected only because its expiration
	// passed. Callers may ask the bearer to re-authenticate.
	ErrTokenExpired = errors.New("token has expired")
)

// CodecConfig holds the key material and claim defaults for a deployment.
// Exactly one of Secret or the PrivateKey/PublicKey pair must be set. The
// config is initialized once at startup and treated as immutable.
type CodecConfig struct {
	Secret     string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey

	// Algorithm defaults to HS256 for a secret and RS256 for a key pair.
	Algorithm  string
	Issuer     string
	Subject    string
	Expiration time.Duration
}

// SignOptions override the configured defaults for a single Sign call.
// Call-site values win.
type SignOptions struct {
	Subject   string
	Issuer    string
	Audience  string
	TokenID   string
	ExpiresAt time.Time

	// NoExpiration suppresses the exp claim entirely, even when the codec
	// carries a default expiration policy. Refresh tokens use this; their
	// lifetime is bounded by record lookup, not by the claim.
	NoExpiration bool
}

// VerifyOptions constrain a single Verify call beyond the configured
// algorithm policy. Call-site values win over configured defaults, matching
// Sign.
type VerifyOptions struct {
	Issuer   string
	Audience string
}

// TokenCodec signs and verifies compact signed tokens. It is stateless
// given its configuration and safe for concurrent use.
type TokenCodec struct {
	cfg       CodecConfig
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
}

// NewTokenCodec validates the key material and pins the algorithm policy.
func NewTokenCodec(cfg CodecConfig) (*TokenCodec, error) {
	c := &TokenCodec{cfg: cfg}

	switch {
	case cfg.Secret != "":
		if cfg.Algorithm == "" {
			cfg.Algorithm = jwt.SigningMethodHS256.Alg()
		}
		c.signKey = []byte(cfg.Secret)
		c.verifyKey = []byte(cfg.Secret)
	case cfg.PrivateKey != nil && cfg.PublicKey != nil:
		if cfg.Algorithm == "" {
			cfg.Algorithm = jwt.SigningMethodRS256.Alg()
		}
		c.signKey = cfg.PrivateKey
		c.verifyKey = cfg.PublicKey
	default:
		return nil, errors.New("codec config must define a secret or a private/public key pair")
	}

	method := jwt.GetSigningMethod(cfg.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	c.cfg = cfg
	c.method = method

	return c, nil
}

// Sign produces a signed token for the payload. Standard claims are set
// from the merged options: sub, iss, exp when an expiration policy applies,
// jti from the record identifier, and aud from the bound origin.
func (c *TokenCodec) Sign(payload map[string]any, opts SignOptions) (string, error) {
	claims := make(jwt.MapClaims, len(payload)+5)
	for k, v := range payload {
		claims[k] = v
	}

	subject := c.cfg.Subject
	if opts.Subject != "" {
		subject = opts.Subject
	}
	if subject != "" {
		claims["sub"] = subject
	}

	issuer := c.cfg.Issuer
	if opts.Issuer != "" {
		issuer = opts.Issuer
	}
	if issuer != "" {
		claims["iss"] = issuer
	}

	if opts.TokenID != "" {
		claims["jti"] = opts.TokenID
	}

	if opts.Audience != "" {
		claims["aud"] = opts.Audience
	}

	if !opts.NoExpiration {
		expiresAt := opts.ExpiresAt
		if expiresAt.IsZero() && c.cfg.Expiration > 0 {
			expiresAt = time.Now().Add(c.cfg.Expiration)
		}
		if !expiresAt.IsZero() {
			claims["exp"] = jwt.NewNumericDate(expiresAt)
		}
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the token's signature against the pinned algorithm and
// returns its claims. Unsigned ("none") tokens are never accepted. Expiry
// failures map to ErrTokenExpired, everything else to ErrTokenInvalid, so
// callers can return different HTTP semantics for the two.
func (c *TokenCodec) Verify(tokenString string, opts VerifyOptions) (jwt.MapClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.cfg.Algorithm}),
	}
	issuer := c.cfg.Issuer
	if opts.Issuer != "" {
		issuer = opts.Issuer
	}
	if issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return c.verifyKey, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// TokenID extracts the jti claim from a verified claim set.
func TokenID(claims jwt.MapClaims) (string, error) {
	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return "", fmt.Errorf("%w: missing jti claim", ErrTokenInvalid)
	}

	return jti, nil
}
