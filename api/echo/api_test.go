package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gatekeeper "go.pilab.hu/gatekeeper"
	"go.pilab.hu/gatekeeper/domain"
)

type staticClientRepo struct {
	clients map[string]*domain.Client
}

func (r *staticClientRepo) GetClient(_ context.Context, id string) (*domain.Client, error) {
	client, ok := r.clients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return client, nil
}

type staticAccountRepo struct {
	accounts map[string]*domain.Account
}

func (r *staticAccountRepo) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	for _, account := range r.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *staticAccountRepo) GetAccountByUsername(_ context.Context, username string) (*domain.Account, error) {
	account, ok := r.accounts[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

type memoryTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.AccessToken
}

func (r *memoryTokenRepo) StoreToken(_ context.Context, token *domain.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.ID] = token
	return nil
}

func (r *memoryTokenRepo) GetToken(_ context.Context, id string) (*domain.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return token, nil
}

func (r *memoryTokenRepo) GetTokenByRefreshID(_ context.Context, refreshID, clientID string) (*domain.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.RefreshID == refreshID && token.ClientID == clientID {
			return token, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryTokenRepo) DeleteToken(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[id]; !ok {
		return false, nil
	}
	delete(r.tokens, id)
	return true, nil
}

func (r *memoryTokenRepo) RotateToken(_ context.Context, old, replacement *domain.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[replacement.ID] = replacement
	delete(r.tokens, old.ID)
	return nil
}

func newTestAPI(t *testing.T) (*echo.Echo, *memoryTokenRepo) {
	t.Helper()

	codec, err := gatekeeper.NewTokenCodec(gatekeeper.CodecConfig{
		Secret: "test-signing-secret",
		Issuer: "gatekeeper-test",
	})
	require.NoError(t, err)

	hash, err := domain.HashPassword("p1")
	require.NoError(t, err)

	clients := &staticClientRepo{clients: map[string]*domain.Client{
		"c1": {ID: "c1", Kind: domain.ClientKindNative, Secret: "s1", Enabled: true, Scope: []string{"read:items"}},
	}}
	accounts := &staticAccountRepo{accounts: map[string]*domain.Account{
		"jane": {ID: "a1", Username: "jane", PasswordHash: hash, Enabled: true},
	}}
	tokens := &memoryTokenRepo{tokens: make(map[string]*domain.AccessToken)}

	issuer := gatekeeper.NewTokenIssuer(clients, tokens, codec, []gatekeeper.Granter{
		gatekeeper.NewClientCredentialsGranter(tokens),
		gatekeeper.NewPasswordGranter(accounts, tokens),
		gatekeeper.NewRefreshTokenGranter(accounts, tokens, codec),
	})

	e := echo.New()
	NewTokenAPI(issuer).RegisterRoutes(e)

	return e, tokens
}

func postForm(e *echo.Echo, path string, form url.Values, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for name, values := range header {
		req.Header[name] = values
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func TestTokenEndpoint_ClientCredentials(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := postForm(e, "/v1/oauth2/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"c1"},
		"client_secret": {"s1"},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp gatekeeper.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Empty(t, resp.RefreshToken)
}

func TestTokenEndpoint_PasswordGrant(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := postForm(e, "/v1/oauth2/token", url.Values{
		"grant_type": {"password"},
		"client_id":  {"c1"},
		"username":   {"jane"},
		"password":   {"p1"},
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp gatekeeper.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestTokenEndpoint_ValidationFailure(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := postForm(e, "/v1/oauth2/token", url.Values{
		"grant_type": {"password"},
		"client_id":  {"c1"},
	}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Code   string            `json:"error"`
		Fields map[string]string `json:"invalid_fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body.Code)
	assert.Contains(t, body.Fields, "username")
	assert.Contains(t, body.Fields, "password")
}

func TestTokenEndpoint_GrantErrorStatuses(t *testing.T) {
	e, _ := newTestAPI(t)

	tests := []struct {
		name   string
		form   url.Values
		status int
		code   string
	}{
		{
			name: "unknown client",
			form: url.Values{
				"grant_type":    {"client_credentials"},
				"client_id":     {"nope"},
				"client_secret": {"s1"},
			},
			status: http.StatusBadRequest,
			code:   "unknown_client",
		},
		{
			name: "invalid secret",
			form: url.Values{
				"grant_type":    {"client_credentials"},
				"client_id":     {"c1"},
				"client_secret": {"wrong"},
			},
			status: http.StatusBadRequest,
			code:   "invalid_secret",
		},
		{
			name: "invalid refresh token",
			form: url.Values{
				"grant_type":    {"refresh_token"},
				"client_id":     {"c1"},
				"refresh_token": {"garbage"},
			},
			status: http.StatusForbidden,
			code:   "invalid_token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(e, "/v1/oauth2/token", tt.form, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body struct {
				Code string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestTokenEndpoint_PassesOriginHeader(t *testing.T) {
	e, _ := newTestAPI(t)

	// c1 carries no origin pattern, so any origin is accepted and bound
	// into the issued token's audience.
	rec := postForm(e, "/v1/oauth2/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"c1"},
		"client_secret": {"s1"},
	}, http.Header{"Origin": {"https://app.example.com"}})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogoutEndpoint(t *testing.T) {
	e, tokens := newTestAPI(t)

	issueRec := postForm(e, "/v1/oauth2/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"c1"},
		"client_secret": {"s1"},
	}, nil)
	require.Equal(t, http.StatusOK, issueRec.Code)

	var resp gatekeeper.TokenResponse
	require.NoError(t, json.Unmarshal(issueRec.Body.Bytes(), &resp))

	logoutRec := postForm(e, "/v1/oauth2/logout", nil, http.Header{
		"Authorization": {"Bearer " + resp.AccessToken},
	})
	require.Equal(t, http.StatusOK, logoutRec.Code, logoutRec.Body.String())
	assert.Empty(t, tokens.tokens)

	// A second logout with the same token finds no record.
	logoutRec = postForm(e, "/v1/oauth2/logout", nil, http.Header{
		"Authorization": {"Bearer " + resp.AccessToken},
	})
	assert.Equal(t, http.StatusForbidden, logoutRec.Code)
}

func TestLogoutEndpoint_MissingBearer(t *testing.T) {
	e, _ := newTestAPI(t)

	rec := postForm(e, "/v1/oauth2/logout", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
