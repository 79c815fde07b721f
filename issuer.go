package gatekeeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.pilab.hu/gatekeeper/cache"
	"go.pilab.hu/gatekeeper/domain"
	gkerrors "go.pilab.hu/gatekeeper/errors"
)

// TokenResponse is the token endpoint's success payload.
type TokenResponse struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// TokenIssuer is the public entry point of the pipeline. It resolves the
// client, drives the staged validation, invokes the matched granter, and
// serializes the resulting record through the codec.
type TokenIssuer struct {
	clients   domain.ClientRepository
	tokens    domain.TokenRepository
	codec     *TokenCodec
	recaptcha RecaptchaVerifier
	store     cache.TokenStore
	granters  map[string]Granter
}

// IssuerOption configures optional issuer collaborators.
type IssuerOption func(*TokenIssuer)

// WithTokenStore attaches a cache consulted by bearer authentication before
// the repository.
func WithTokenStore(store cache.TokenStore) IssuerOption {
	return func(s *TokenIssuer) {
		s.store = store
	}
}

// WithRecaptchaVerifier attaches the external human-verification checker
// used for recaptcha-kind clients.
func WithRecaptchaVerifier(verifier RecaptchaVerifier) IssuerOption {
	return func(s *TokenIssuer) {
		s.recaptcha = verifier
	}
}

// NewTokenIssuer builds the issuer and registers the granters. The
// registered set is fixed afterwards; adding a grant type means adding one
// registration here, not editing the pipeline.
func NewTokenIssuer(
	clients domain.ClientRepository,
	tokens domain.TokenRepository,
	codec *TokenCodec,
	granters []Granter,
	opts ...IssuerOption,
) *TokenIssuer {
	s := &TokenIssuer{
		clients:  clients,
		tokens:   tokens,
		codec:    codec,
		granters: make(map[string]Granter, len(granters)),
	}

	for _, g := range granters {
		s.granters[g.Name()] = g
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// GrantTypes lists the registered grant type names.
func (s *TokenIssuer) GrantTypes() []string {
	names := make([]string, 0, len(s.granters))
	for name := range s.granters {
		names = append(names, name)
	}

	return names
}

// IssueToken runs the validation pipeline and, when every stage passes, the
// matched granter's token creation. Stages run strictly in order and the
// first failing stage's error is returned verbatim.
func (s *TokenIssuer) IssueToken(ctx context.Context, req *Request) (*TokenResponse, error) {
	granter, err := s.resolveGranter(req)
	if err != nil {
		return nil, err
	}

	// Stage 1: client resolution.
	client, err := s.resolveClient(ctx, req)
	if err != nil {
		return nil, err
	}
	req.Client = client

	// Stage 2: static schema validation for the client's kind.
	schema, err := granter.SchemaFor(client)
	if err != nil {
		return nil, err
	}
	if schema != nil {
		if err := schema.Validate(req); err != nil {
			return nil, err
		}
	}

	// Stage 3: variant-specific dynamic validation.
	if err := client.Accept(&variantValidator{ctx: ctx, req: req, recaptcha: s.recaptcha}); err != nil {
		return nil, err
	}

	// Stage 4: granter-specific validation.
	if err := granter.Validate(ctx, req); err != nil {
		return nil, err
	}

	record, err := granter.CreateToken(ctx, req)
	if err != nil {
		return nil, err
	}

	return s.serialize(record)
}

// Revoke deletes a token record. Revoking an already-absent record reports
// false rather than an error.
func (s *TokenIssuer) Revoke(ctx context.Context, record *domain.AccessToken) (bool, error) {
	return s.tokens.DeleteToken(ctx, record.ID)
}

// Authenticate resolves a bearer token string to its record, consulting the
// cache before the repository.
func (s *TokenIssuer) Authenticate(ctx context.Context, bearer string) (*domain.AccessToken, error) {
	if s.store != nil {
		if record, err := s.store.Get(ctx, bearer); err == nil && !record.Expired() {
			return record, nil
		}
	}

	claims, err := s.codec.Verify(bearer, VerifyOptions{})
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, gkerrors.NewTokenExpired()
		}
		return nil, gkerrors.NewInvalidToken("The access token is invalid.")
	}

	jti, err := TokenID(claims)
	if err != nil {
		return nil, gkerrors.NewInvalidToken("The access token is invalid.")
	}

	record, err := s.tokens.GetToken(ctx, jti)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, gkerrors.NewInvalidToken("The access token is invalid.")
		}
		return nil, fmt.Errorf("failed to resolve access token: %w", err)
	}

	if s.store != nil {
		if err := s.store.Set(ctx, bearer, record); err != nil {
			log.Warn().Err(err).Msg("failed to cache access token")
		}
	}

	return record, nil
}

// Logout revokes the record behind a bearer token and evicts it from the
// cache. The boolean reports whether a record was actually removed.
func (s *TokenIssuer) Logout(ctx context.Context, bearer string) (bool, error) {
	record, err := s.Authenticate(ctx, bearer)
	if err != nil {
		return false, err
	}

	removed, err := s.tokens.DeleteToken(ctx, record.ID)
	if err != nil {
		return false, err
	}

	if s.store != nil {
		if err := s.store.Delete(ctx, bearer); err != nil {
			log.Warn().Err(err).Msg("failed to evict access token from cache")
		}
	}

	return removed, nil
}

func (s *TokenIssuer) resolveGranter(req *Request) (Granter, error) {
	fields := map[string]string{}

	if req.ClientID == "" {
		fields["client_id"] = "This field is required."
	}

	granter, ok := s.granters[req.GrantType]
	if !ok {
		fields["grant_type"] = "The grant type is not supported."
	}

	if len(fields) > 0 {
		return nil, gkerrors.NewValidationError(fields)
	}

	return granter, nil
}

func (s *TokenIssuer) resolveClient(ctx context.Context, req *Request) (*domain.Client, error) {
	client, err := s.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, gkerrors.NewUnknownClient()
		}
		return nil, fmt.Errorf("failed to resolve client: %w", err)
	}

	if !client.Enabled {
		return nil, gkerrors.NewClientDisabled()
	}

	return client, nil
}

func (s *TokenIssuer) serialize(record *domain.AccessToken) (*TokenResponse, error) {
	payload := make(map[string]any, len(record.Payload)+1)
	for k, v := range record.Payload {
		payload[k] = v
	}
	if len(record.Scope) > 0 {
		payload["scope"] = record.Scope
	}

	// Client-bound tokens have no account; the client itself is the subject.
	subject := record.AccountID
	if subject == "" {
		subject = record.ClientID
	}

	access, err := s.codec.Sign(payload, SignOptions{
		Subject:   subject,
		Audience:  record.Origin,
		TokenID:   record.ID,
		ExpiresAt: record.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize access token: %w", err)
	}

	resp := &TokenResponse{
		TokenType:   "Bearer",
		AccessToken: access,
	}

	if record.RefreshID != "" {
		// Refresh tokens carry no exp of their own; expiry is enforced on
		// the access token and by record lookup.
		refresh, err := s.codec.Sign(nil, SignOptions{
			Audience:     record.Origin,
			TokenID:      record.RefreshID,
			NoExpiration: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to serialize refresh token: %w", err)
		}
		resp.RefreshToken = refresh
	}

	return resp, nil
}

// variantValidator runs the dynamic, context-dependent checks for the
// client's kind: origin pattern matching for every kind, package comparison
// for android clients, and the external reCAPTCHA exchange for recaptcha
// clients.
type variantValidator struct {
	ctx       context.Context
	req       *Request
	recaptcha RecaptchaVerifier
}

func (v *variantValidator) VisitNativeClient(client *domain.Client) error {
	return v.checkOrigin(client)
}

func (v *variantValidator) VisitAndroidClient(client *domain.Client) error {
	if err := v.checkOrigin(client); err != nil {
		return err
	}

	if v.req.Field("package") != client.Package {
		return gkerrors.NewInvalidPackage()
	}

	return nil
}

func (v *variantValidator) VisitRecaptchaClient(client *domain.Client) error {
	if err := v.checkOrigin(client); err != nil {
		return err
	}

	if v.recaptcha == nil {
		return gkerrors.NewInternalError("no recaptcha verifier is configured")
	}

	return v.recaptcha.Verify(v.ctx, client.RecaptchaSecret, v.req.Field("recaptcha"), v.req.RemoteAddr)
}

// checkOrigin enforces the client's origin pattern. A client without a
// pattern ignores origin; a client with one rejects requests that carry no
// Origin header at all.
func (v *variantValidator) checkOrigin(client *domain.Client) error {
	if client.Origin == "" {
		return nil
	}

	if v.req.Origin == "" {
		return gkerrors.NewUnknownOrigin()
	}

	match, err := client.MatchOrigin(v.req.Origin)
	if err != nil {
		return gkerrors.NewInternalError(err.Error())
	}
	if !match {
		return gkerrors.NewInvalidOrigin()
	}

	return nil
}
