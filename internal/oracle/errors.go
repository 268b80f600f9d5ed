package oracle

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Every Advise failure is classified into exactly one
// of these so the conversation layer can pick a user-facing fallback string.
var (
	// ErrMissingCredential indicates no API key is configured.
	ErrMissingCredential = errors.New("oracle: API key is missing")

	// ErrAuthentication indicates the configured API key was rejected.
	ErrAuthentication = errors.New("oracle: authentication failed")

	// ErrQuotaExceeded indicates a quota, billing, or rate limit failure.
	ErrQuotaExceeded = errors.New("oracle: quota exceeded")

	// ErrServiceUnavailable covers network and service-side failures.
	ErrServiceUnavailable = errors.New("oracle: service unavailable")
)

// User-facing fallback strings, appended as assistant messages when a
// submission fails.
const (
	MsgMissingCredential  = "API Key is missing. Please check your drai configuration."
	MsgAuthentication     = "Invalid API Key. Please verify your drai configuration."
	MsgQuotaExceeded      = "Quota exceeded. Please check your billing or use a new API key."
	MsgServiceUnavailable = "Dr. AI is currently overloaded or experiencing a network issue. Please try again."
)

// APIError carries the HTTP status and message of a failed provider call.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("oracle [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("oracle [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap maps the error onto its sentinel kind so errors.Is works on
// APIError values directly.
func (e *APIError) Unwrap() error {
	return Classify(e.StatusCode, e.Code)
}

// Classify maps a provider status/code pair onto a sentinel kind.
func Classify(statusCode int, code string) error {
	switch {
	case statusCode == 401:
		return ErrAuthentication
	case statusCode == 403:
		// Gemini reports exhausted quota as 403; a rejected key also lands
		// here when the code says so.
		if strings.Contains(code, "key") {
			return ErrAuthentication
		}
		return ErrQuotaExceeded
	case statusCode == 429,
		code == "insufficient_quota",
		code == "quota_exceeded",
		strings.Contains(code, "billing"):
		return ErrQuotaExceeded
	default:
		return ErrServiceUnavailable
	}
}

// FallbackText returns the user-facing string for a classified error.
func FallbackText(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return MsgMissingCredential
	case errors.Is(err, ErrAuthentication):
		return MsgAuthentication
	case errors.Is(err, ErrQuotaExceeded):
		return MsgQuotaExceeded
	default:
		return MsgServiceUnavailable
	}
}
