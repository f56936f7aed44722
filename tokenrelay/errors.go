package tokenrelay

import (
	"errors"
	"fmt"
)

// ErrorCodeAccessDenied is the only error code the supplier reports.
const ErrorCodeAccessDenied = "access_denied"

// Descriptions carried by AuthorizationError.
const (
	DescriptionTokenExpired = "The token is expired"
	DescriptionStoreFailure = "Unable to access authorized client"
)

var (
	// ErrAccessDenied matches every AuthorizationError via errors.Is.
	ErrAccessDenied = errors.New("tokenrelay: access denied")

	// ErrClientNotFound means no authorized client is stored for the principal.
	// It is reported with the same code and description as an expired token.
	ErrClientNotFound = errors.New("tokenrelay: authorized client not found")

	// ErrNoAccessToken means the token endpoint answered without an access token.
	ErrNoAccessToken = errors.New("tokenrelay: token response has no access token")

	// ErrNoRefreshToken means the stored client cannot be refreshed.
	ErrNoRefreshToken = errors.New("tokenrelay: authorized client has no refresh token")

	// ErrUnknownRegistration means the stored client references a registration that is not configured.
	ErrUnknownRegistration = errors.New("tokenrelay: unknown client registration")

	// ErrStoreFailure wraps errors returned by the Store.
	ErrStoreFailure = errors.New("tokenrelay: authorized client store failure")
)

// AuthorizationError is returned when no valid Authorization header can be
// produced for an authenticated principal.
//
// Code is always ErrorCodeAccessDenied. Callers must not branch on Description
// or on the wrapped cause; they exist for diagnostics.
type AuthorizationError struct {
	Code        string
	Description string
	Err         error
}

// Error returns the code, description and cause.
func (e *AuthorizationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tokenrelay: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("tokenrelay: %s: %s: %v", e.Code, e.Description, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// Is enables errors.Is(err, ErrAccessDenied).
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrAccessDenied
}

func tokenExpired(cause error) *AuthorizationError {
	return &AuthorizationError{
		Code:        ErrorCodeAccessDenied,
		Description: DescriptionTokenExpired,
		Err:         cause,
	}
}

func storeFailure(cause error) *AuthorizationError {
	return &AuthorizationError{
		Code:        ErrorCodeAccessDenied,
		Description: DescriptionStoreFailure,
		Err:         fmt.Errorf("%w: %w", ErrStoreFailure, cause),
	}
}
