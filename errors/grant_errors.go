package errors

import (
	"fmt"
	"net/http"
)

// GrantError is a machine-readable failure from the token pipeline. Code is
// the wire-level error identifier, Description the human message. Status is
// the HTTP status class the error maps to; it is not serialized.
type GrantError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
}

func (e *GrantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Grant error codes.
const (
	ValidationFailed = "validation_failed"
	UnknownClient    = "unknown_client"
	ClientDisabled   = "client_disabled"
	InvalidUsername  = "invalid_username"
	AccountDisabled  = "account_disabled"
	AccountDeleted   = "account_deleted"
	InvalidPassword  = "invalid_password"
	InvalidSecret    = "invalid_secret"
	InvalidPackage   = "invalid_package"
	InvalidRecaptcha = "invalid_recaptcha"
	InvalidOrigin    = "invalid_origin"
	UnknownOrigin    = "unknown_origin"
	InvalidToken     = "invalid_token"
	TokenExpired     = "token_expired"
	InternalError    = "internal_error"
)

func NewUnknownClient() *GrantError {
	return &GrantError{
		Code:        UnknownClient,
		Description: "The client does not exist.",
		Status:      http.StatusBadRequest,
	}
}

func NewClientDisabled() *GrantError {
	return &GrantError{
		Code:        ClientDisabled,
		Description: "The client is disabled.",
		Status:      http.StatusForbidden,
	}
}

func NewInvalidUsername() *GrantError {
	return &GrantError{
		Code:        InvalidUsername,
		Description: "The username does not exist.",
		Status:      http.StatusBadRequest,
	}
}

func NewAccountDisabled() *GrantError {
	return &GrantError{
		Code:        AccountDisabled,
		Description: "The account is disabled.",
		Status:      http.StatusBadRequest,
	}
}

func NewAccountDeleted() *GrantError {
	return &GrantError{
		Code:        AccountDeleted,
		Description: "The account has been deleted.",
		Status:      http.StatusBadRequest,
	}
}

func NewInvalidPassword() *GrantError {
	return &GrantError{
		Code:        InvalidPassword,
		Description: "The password for the account is incorrect.",
		Status:      http.StatusBadRequest,
	}
}

func NewInvalidSecret() *GrantError {
	return &GrantError{
		Code:        InvalidSecret,
		Description: "The client secret is not valid.",
		Status:      http.StatusBadRequest,
	}
}

func NewInvalidPackage() *GrantError {
	return &GrantError{
		Code:        InvalidPackage,
		Description: "The package does not match the registered client.",
		Status:      http.StatusBadRequest,
	}
}

func NewInvalidRecaptcha(description string) *GrantError {
	return &GrantError{
		Code:        InvalidRecaptcha,
		Description: description,
		Status:      http.StatusBadRequest,
	}
}

func NewInvalidOrigin() *GrantError {
	return &GrantError{
		Code:        InvalidOrigin,
		Description: "The origin is not allowed for this client.",
		Status:      http.StatusBadRequest,
	}
}

func NewUnknownOrigin() *GrantError {
	return &GrantError{
		Code:        UnknownOrigin,
		Description: "The request is missing the origin header.",
		Status:      http.StatusBadRequest,
	}
}

func NewInvalidToken(description string) *GrantError {
	return &GrantError{
		Code:        InvalidToken,
		Description: description,
		Status:      http.StatusForbidden,
	}
}

func NewTokenExpired() *GrantError {
	return &GrantError{
		Code:        TokenExpired,
		Description: "The refresh token has expired.",
		Status:      http.StatusUnauthorized,
	}
}

func NewInternalError(description string) *GrantError {
	return &GrantError{
		Code:        InternalError,
		Description: description,
		Status:      http.StatusInternalServerError,
	}
}

// StatusOf maps a pipeline error to its HTTP status. Anything that is not a
// categorized grant or validation failure is an internal condition.
func StatusOf(err error) int {
	switch e := err.(type) {
	case *GrantError:
		return e.Status
	case *ValidationError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
