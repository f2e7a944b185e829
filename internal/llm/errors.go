package llm

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCategory classifies provider errors for retry decisions.
type ErrorCategory int

const (
	// ErrorCategoryUnknown - unclassified error, default to not retryable
	ErrorCategoryUnknown ErrorCategory = iota

	// ErrorCategoryTransient - temporary failures that may succeed on retry
	// Examples: timeout, rate limit (429), server error (5xx), network error
	ErrorCategoryTransient

	// ErrorCategoryPermanent - errors that will not succeed on retry
	// Examples: auth error (401/403), bad request (400), parse error
	ErrorCategoryPermanent

	// ErrorCategoryConfig - missing or invalid local configuration
	ErrorCategoryConfig
)

// String returns a human-readable category name.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryTransient:
		return "transient"
	case ErrorCategoryPermanent:
		return "permanent"
	case ErrorCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

// ProviderError wraps provider failures with classification for retry logic.
// Its Error() text is for operators only; end users see canned messages.
type ProviderError struct {
	Category   ErrorCategory
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ClassifyHTTPError classifies a provider HTTP response.
func ClassifyHTTPError(statusCode int, body string) *ProviderError {
	err := &ProviderError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("HTTP %d: %s", statusCode, truncateString(body, 200)),
	}

	switch {
	case statusCode == http.StatusTooManyRequests:
		err.Category = ErrorCategoryTransient
		err.Retryable = true

	case statusCode >= 500 && statusCode < 600:
		err.Category = ErrorCategoryTransient
		err.Retryable = true

	case statusCode == http.StatusRequestTimeout:
		err.Category = ErrorCategoryTransient
		err.Retryable = true

	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		err.Category = ErrorCategoryPermanent
		err.Retryable = false

	case statusCode >= 400 && statusCode < 500:
		err.Category = ErrorCategoryPermanent
		err.Retryable = false

	default:
		err.Category = ErrorCategoryUnknown
		err.Retryable = false
	}

	return err
}

// ClassifyTransportError classifies a transport-level failure (no response).
func ClassifyTransportError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	if provErr, ok := err.(*ProviderError); ok {
		return provErr
	}

	errStr := err.Error()

	if strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "Client.Timeout exceeded") {
		return &ProviderError{
			Category:  ErrorCategoryTransient,
			Message:   "request timed out",
			Retryable: true,
			Cause:     err,
		}
	}

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "EOF") {
		return &ProviderError{
			Category:  ErrorCategoryTransient,
			Message:   fmt.Sprintf("network error: %s", truncateString(errStr, 100)),
			Retryable: true,
			Cause:     err,
		}
	}

	if strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "tls:") ||
		strings.Contains(errStr, "x509:") {
		return &ProviderError{
			Category:  ErrorCategoryPermanent,
			Message:   "TLS/certificate error",
			Retryable: false,
			Cause:     err,
		}
	}

	return &ProviderError{
		Category:  ErrorCategoryUnknown,
		Message:   truncateString(errStr, 200),
		Retryable: false,
		Cause:     err,
	}
}

// OperatorGuidance maps a permanent provider error to an actionable log
// hint. The user-facing message stays generic regardless.
func OperatorGuidance(err *ProviderError) string {
	if err == nil {
		return ""
	}
	switch err.StatusCode {
	case http.StatusBadRequest:
		return "bad request: check model name and request shape"
	case http.StatusUnauthorized:
		return "auth failed: check the API key"
	case http.StatusForbidden:
		return "permission denied: key lacks access to this model"
	case http.StatusTooManyRequests:
		return "rate limited: reduce request volume or raise the quota"
	case http.StatusPaymentRequired:
		return "quota exhausted: check provider billing"
	}
	if err.Category == ErrorCategoryTransient {
		return "transient provider trouble: retried and gave up"
	}
	return ""
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
