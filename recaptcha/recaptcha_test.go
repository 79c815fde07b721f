package recaptcha

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gkerrors "go.pilab.hu/gatekeeper/errors"
)

func TestVerify_Success(t *testing.T) {
	var received map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		received = map[string]string{
			"secret":   r.PostFormValue("secret"),
			"response": r.PostFormValue("response"),
			"remoteip": r.PostFormValue("remoteip"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	verifier := NewVerifier(WithVerifyURL(server.URL))

	err := verifier.Verify(context.Background(), "site-secret", "challenge-response", "203.0.113.7")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"secret":   "site-secret",
		"response": "challenge-response",
		"remoteip": "203.0.113.7",
	}, received)
}

func TestVerify_ChallengeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
	}))
	defer server.Close()

	verifier := NewVerifier(WithVerifyURL(server.URL))

	err := verifier.Verify(context.Background(), "site-secret", "bad", "")

	var grantErr *gkerrors.GrantError
	require.ErrorAs(t, err, &grantErr)
	assert.Equal(t, gkerrors.InvalidRecaptcha, grantErr.Code)
}

func TestVerify_OmitsEmptyRemoteIP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.False(t, r.PostForm.Has("remoteip"))
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	verifier := NewVerifier(WithVerifyURL(server.URL))
	require.NoError(t, verifier.Verify(context.Background(), "s", "r", ""))
}

func TestVerify_UpstreamFailureIsNotAGrantError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	verifier := NewVerifier(WithVerifyURL(server.URL))

	err := verifier.Verify(context.Background(), "s", "r", "")
	require.Error(t, err)

	var grantErr *gkerrors.GrantError
	assert.False(t, errors.As(err, &grantErr), "transport failures must stay internal")
}
