package gatekeeper

import (
	"context"
	"sort"

	"go.pilab.hu/gatekeeper/domain"
	gkerrors "go.pilab.hu/gatekeeper/errors"
)

// Request is one token-endpoint invocation. Client and Account are resolved
// by the pipeline; Body carries the grant-specific fields from the request
// body.
type Request struct {
	GrantType  string
	ClientID   string
	Origin     string
	RemoteAddr string
	Body       map[string]string

	Client  *domain.Client
	Account *domain.Account

	// renewing is the record a refresh_token exchange consumes, resolved
	// during validation.
	renewing *domain.AccessToken
}

// Field returns a request body field, or "" when absent.
func (r *Request) Field(name string) string {
	if r.Body == nil {
		return ""
	}

	return r.Body[name]
}

// FieldRule is a static shape requirement for one body field.
type FieldRule struct {
	MinLength int
	Message   string
}

// Schema is the static field-requirement set a granter demands for a given
// client kind. A nil Schema means the grant needs no extra fields.
type Schema map[string]FieldRule

// Validate enforces the schema against the request body. Every missing or
// malformed field is reported together in a single ValidationError, so
// shape failures for a field always precede its semantic checks.
func (s Schema) Validate(r *Request) error {
	var fields map[string]string

	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule := s[name]
		minLength := rule.MinLength
		if minLength <= 0 {
			minLength = 1
		}

		if len(r.Field(name)) >= minLength {
			continue
		}

		if fields == nil {
			fields = make(map[string]string)
		}
		message := rule.Message
		if message == "" {
			message = "This field is required."
		}
		fields[name] = message
	}

	if len(fields) > 0 {
		return gkerrors.NewValidationError(fields)
	}

	return nil
}

// Merge returns a schema containing the rules of both schemas, with the
// argument's rules winning on collision.
func (s Schema) Merge(other Schema) Schema {
	merged := make(Schema, len(s)+len(other))
	for name, rule := range s {
		merged[name] = rule
	}
	for name, rule := range other {
		merged[name] = rule
	}

	return merged
}

// Granter is one grant-type strategy. The issuer resolves the granter from
// the request's grant_type and drives it through the pipeline stages.
type Granter interface {
	// Name is the grant_type identifier the granter registers under.
	Name() string
	// SchemaFor selects the static field requirements for the client's
	// kind. It fails only on an unrecognized kind.
	SchemaFor(client *domain.Client) (Schema, error)
	// Validate runs the granter-specific semantic checks. It is only
	// called after client resolution, schema, and variant validation have
	// all passed.
	Validate(ctx context.Context, req *Request) error
	// CreateToken mints and persists the token record for a validated
	// request.
	CreateToken(ctx context.Context, req *Request) (*domain.AccessToken, error)
}

// RecaptchaVerifier checks a human-verification response with an external
// verifier.
type RecaptchaVerifier interface {
	Verify(ctx context.Context, secret, response, remoteIP string) error
}

// schemaSelector picks the schema for a client kind via visitor dispatch.
type schemaSelector struct {
	native    Schema
	android   Schema
	recaptcha Schema

	schema Schema
}

func (s *schemaSelector) VisitNativeClient(*domain.Client) error {
	s.schema = s.native
	return nil
}

func (s *schemaSelector) VisitAndroidClient(*domain.Client) error {
	s.schema = s.android
	return nil
}

func (s *schemaSelector) VisitRecaptchaClient(*domain.Client) error {
	s.schema = s.recaptcha
	return nil
}

func selectSchema(client *domain.Client, selector schemaSelector) (Schema, error) {
	if err := client.Accept(&selector); err != nil {
		return nil, err
	}

	return selector.schema, nil
}
