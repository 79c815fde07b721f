//nolint:varnamelen
package echo

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	gatekeeper "go.pilab.hu/gatekeeper"
	"go.pilab.hu/gatekeeper/domain"
	gkerrors "go.pilab.hu/gatekeeper/errors"
)

// TokenAPI binds the token endpoint and revocation endpoint to an issuer.
type TokenAPI struct {
	issuer *gatekeeper.TokenIssuer
}

// NewTokenAPI initializes the token API.
func NewTokenAPI(issuer *gatekeeper.TokenIssuer) *TokenAPI {
	return &TokenAPI{issuer: issuer}
}

// RegisterRoutes registers the OAuth2 routes.
func (a *TokenAPI) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/oauth2/token", a.TokenHandler)
	e.POST("/v1/oauth2/logout", a.LogoutHandler)
}

// TokenHandler handles POST /token. The grant-specific body fields are
// passed through to the pipeline untouched; which ones are required is
// decided there, per client kind and grant type.
func (a *TokenAPI) TokenHandler(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return writeError(c, gkerrors.NewValidationError(map[string]string{
			"body": "The request body is malformed.",
		}))
	}

	body := make(map[string]string, len(form))
	for name := range form {
		body[name] = form.Get(name)
	}

	req := &gatekeeper.Request{
		GrantType:  form.Get("grant_type"),
		ClientID:   form.Get("client_id"),
		Origin:     c.Request().Header.Get(echo.HeaderOrigin),
		RemoteAddr: c.RealIP(),
		Body:       body,
	}

	resp, err := a.issuer.IssueToken(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// LogoutHandler handles POST /logout. The bearer token identifies the
// record to delete; the response reports whether one was removed.
func (a *TokenAPI) LogoutHandler(c echo.Context) error {
	bearer, ok := bearerToken(c.Request())
	if !ok {
		return writeError(c, gkerrors.NewInvalidToken("The request is missing a bearer token."))
	}

	removed, err := a.issuer.Logout(c.Request().Context(), bearer)
	if err != nil {
		return writeError(c, err)
	}

	if !removed {
		return writeError(c, gkerrors.NewInvalidToken("The access token is invalid."))
	}

	return c.JSON(http.StatusOK, true)
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "

	header := r.Header.Get(echo.HeaderAuthorization)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	return header[len(prefix):], true
}

// writeError maps a pipeline error onto its HTTP status and wire shape.
// Grant and validation errors serialize themselves; anything else is an
// internal condition that must not leak details to the caller.
func writeError(c echo.Context, err error) error {
	switch err.(type) {
	case *gkerrors.GrantError, *gkerrors.ValidationError:
		return c.JSON(gkerrors.StatusOf(err), err)
	}

	if errors.Is(err, domain.ErrUnknownClientKind) {
		log.Error().Err(err).Msg("client record carries an unrecognized kind")
	} else {
		log.Error().Err(err).Msg("token pipeline failed")
	}

	return c.JSON(http.StatusInternalServerError, gkerrors.NewInternalError("The request could not be processed."))
}
