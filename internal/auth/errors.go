package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")
)

var providerMessages = map[string]string{
	"auth/email-already-in-use":   "An account with this email already exists.",
	"auth/weak-password":          "Password should be at least 6 characters.",
	"auth/invalid-email":          "Please enter a valid email address.",
	"auth/user-not-found":         "No account found with this email address.",
	"auth/wrong-password":         "Incorrect password. Please try again.",
	"auth/too-many-requests":      "Too many failed attempts. Please try again later.",
	"auth/network-request-failed": "Network error. Please check your connection.",
	"auth/requires-recent-login":  "Please log in again to complete this action.",
	"auth/invalid-credential":     "Invalid email or password.",
	"auth/user-disabled":          "This account has been disabled.",
	"auth/id-token-expired":       "Your session has expired. Please sign in again.",
}

// ProviderError is a failure reported by the identity provider
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TranslateError maps a provider error code to a message for the user,
// falling back to the provider's own message
func TranslateError(code, raw string) string {
	if msg, ok := providerMessages[code]; ok {
		return msg
	}
	if raw != "" {
		return raw
	}
	return "An error occurred"
}

// NewProviderError wraps err under code with a translated message
func NewProviderError(code string, err error) *ProviderError {
	raw := ""
	if err != nil {
		raw = err.Error()
	}
	return &ProviderError{Code: code, Message: TranslateError(code, raw), Err: err}
}
