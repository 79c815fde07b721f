// Package recaptcha verifies human-verification responses against the
// Google reCAPTCHA siteverify endpoint.
package recaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	gkerrors "go.pilab.hu/gatekeeper/errors"
)

// DefaultVerifyURL is the Google siteverify endpoint.
const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// Verifier checks challenge responses with the external verification
// service. The zero-cost construction makes it safe to share across
// requests; the underlying http.Client handles connection reuse.
type Verifier struct {
	client *http.Client
	url    string
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithHTTPClient overrides the HTTP client used for the verification call.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Verifier) {
		v.client = client
	}
}

// WithVerifyURL overrides the verification endpoint, mainly for tests.
func WithVerifyURL(url string) Option {
	return func(v *Verifier) {
		v.url = url
	}
}

// NewVerifier creates a Verifier against the Google endpoint.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		client: http.DefaultClient,
		url:    DefaultVerifyURL,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify submits the client's verification secret, the challenge response,
// and the caller address to the verifier. A failed challenge returns a
// grant-level invalid_recaptcha error; transport failures surface as plain
// errors for the caller to treat as internal.
func (v *Verifier) Verify(ctx context.Context, secret, response, remoteIP string) error {
	form := url.Values{
		"secret":   {secret},
		"response": {response},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build recaptcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("recaptcha verification call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("recaptcha verifier returned status %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode recaptcha response: %w", err)
	}

	if !result.Success {
		log.Debug().Strs("error_codes", result.ErrorCodes).Msg("recaptcha challenge rejected")
		return gkerrors.NewInvalidRecaptcha("The recaptcha response is not valid.")
	}

	return nil
}
