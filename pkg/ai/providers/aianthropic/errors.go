package aianthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/anthropics/anthropic-sdk-go"
)

var (
	errorRegistry = errx.NewRegistry("ANTHROPIC")

	ErrAPIRequest      = errorRegistry.Register("API_REQUEST_FAILED", errx.TypeExternal, "Failed to make request to Anthropic API")
	ErrAPIUnavailable  = errorRegistry.Register("API_UNAVAILABLE", errx.TypeUnavailable, "Anthropic API is overloaded or unavailable")
	ErrAPIUnauthorized = errorRegistry.Register("API_UNAUTHORIZED", errx.TypeExternal, "Invalid or missing Anthropic API key")
	ErrAPIRateLimit    = errorRegistry.Register("API_RATE_LIMIT", errx.TypeRateLimit, "Anthropic API rate limit exceeded")
	ErrInvalidRequest  = errorRegistry.Register("INVALID_REQUEST", errx.TypeValidation, "Invalid request parameters")

	ErrEmptyMessages  = errorRegistry.Register("EMPTY_MESSAGES", errx.TypeValidation, "Messages array cannot be empty")
	ErrInvalidMessage = errorRegistry.Register("INVALID_MESSAGE", errx.TypeValidation, "Invalid message format")
	ErrMissingAPIKey  = errorRegistry.Register("MISSING_API_KEY", errx.TypeValidation, "Anthropic API key not provided")
)

// ParseAnthropicError maps an Anthropic SDK error to an errx.Error
func ParseAnthropicError(err error) *errx.Error {
	if err == nil {
		return nil
	}
	if customErr, ok := errx.As(err); ok {
		return customErr
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		var code *errx.ErrorCode
		switch s := apiErr.StatusCode; {
		case s == http.StatusUnauthorized || s == http.StatusForbidden:
			code = ErrAPIUnauthorized
		case s == http.StatusTooManyRequests:
			code = ErrAPIRateLimit
		case s == http.StatusRequestTimeout || s == 529 || s >= 500:
			code = ErrAPIUnavailable
		case s == http.StatusBadRequest || s == http.StatusNotFound:
			code = ErrInvalidRequest
		default:
			code = ErrAPIRequest
		}
		return errorRegistry.NewWithCause(code, err).WithDetail("status_code", apiErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errorRegistry.NewWithCause(ErrAPIUnavailable, err)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "overloaded") || strings.Contains(errLower, "connection"):
		return errorRegistry.NewWithCause(ErrAPIUnavailable, err)
	case strings.Contains(errLower, "rate limit") || strings.Contains(errLower, "rate_limit"):
		return errorRegistry.NewWithCause(ErrAPIRateLimit, err)
	default:
		return errorRegistry.NewWithCause(ErrAPIRequest, err)
	}
}
