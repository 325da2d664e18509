package auth

import "errors"

var (
	// ErrNotInitialized is returned by Service methods called before Init or after Close
	ErrNotInitialized = errors.New("auth service not initialized")

	// ErrNotAuthenticated is returned when no token is stored for the account
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInteractionRequired is returned when a silent refresh failed and the
	// user must sign in again
	ErrInteractionRequired = errors.New("interactive sign-in required")

	// ErrTokenNotFound is returned by a TokenStore when the account is unknown
	ErrTokenNotFound = errors.New("token not found")

	// ErrInvalidConfig is returned by Init for unusable provider settings
	ErrInvalidConfig = errors.New("invalid identity provider configuration")
)
