package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/gobwas/glob"
)

// ClientKind discriminates how a registered client is allowed to
// authenticate against the token endpoint.
type ClientKind string

const (
	// ClientKindNative clients authenticate with their shared secret.
	ClientKindNative ClientKind = "native"
	// ClientKindAndroid clients authenticate with their shared secret and
	// must present the Android package name they were registered with.
	ClientKindAndroid ClientKind = "android"
	// ClientKindRecaptcha clients authenticate by solving a reCAPTCHA
	// challenge instead of presenting a secret.
	ClientKindRecaptcha ClientKind = "recaptcha"
)

// ErrUnknownClientKind indicates a client record whose kind tag is outside
// the closed set. This is corrupted data, not a request failure.
var ErrUnknownClientKind = errors.New("unknown client kind")

// Client represents a registered application that may request tokens.
//
//nolint:tagliatelle
type Client struct {
	ID              string        `bson:"_id,omitempty" json:"id"`
	Name            string        `bson:"name" json:"name"`
	Email           string        `bson:"email" json:"email"`
	Secret          string        `bson:"secret,omitempty" json:"-"`
	Kind            ClientKind    `bson:"kind" json:"kind"`
	Enabled         bool          `bson:"enabled" json:"enabled"`
	Scope           []string      `bson:"scope,omitempty" json:"scope,omitempty"`
	Expiration      time.Duration `bson:"expiration,omitempty" json:"expiration,omitempty"`
	Origin          string        `bson:"origin,omitempty" json:"origin,omitempty"`
	Package         string        `bson:"package,omitempty" json:"package,omitempty"`
	RecaptchaSecret string        `bson:"recaptcha_secret,omitempty" json:"-"`
	CreatedAt       time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at" json:"updated_at"`
}

// ClientVisitor receives exactly one callback matching the client's kind.
// Adding a kind means adding one method here and one case in Accept; the
// granters themselves never branch on the kind tag.
type ClientVisitor interface {
	VisitNativeClient(client *Client) error
	VisitAndroidClient(client *Client) error
	VisitRecaptchaClient(client *Client) error
}

// Accept dispatches to the visitor callback for the client's kind.
func (c *Client) Accept(v ClientVisitor) error {
	switch c.Kind {
	case ClientKindNative:
		return v.VisitNativeClient(c)
	case ClientKindAndroid:
		return v.VisitAndroidClient(c)
	case ClientKindRecaptcha:
		return v.VisitRecaptchaClient(c)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownClientKind, c.Kind)
	}
}

// MatchOrigin reports whether the request origin satisfies the client's
// origin pattern. The pattern uses glob semantics, so a client registered
// with "https://*.example.com" accepts any subdomain. A client without a
// pattern accepts every origin.
func (c *Client) MatchOrigin(origin string) (bool, error) {
	if c.Origin == "" {
		return true, nil
	}

	g, err := glob.Compile(c.Origin)
	if err != nil {
		return false, fmt.Errorf("invalid origin pattern %q: %w", c.Origin, err)
	}

	return g.Match(origin), nil
}

const clientSecretLength = 48

// GenerateClientSecret creates a cryptographically secure random secret for
// a newly registered client.
func GenerateClientSecret() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	b := make([]byte, clientSecretLength)
	_, _ = rand.Read(b)

	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}

	return string(b)
}
