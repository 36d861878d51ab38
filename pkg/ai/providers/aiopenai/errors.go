package aiopenai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/openai/openai-go/v3"
)

var (
	// Error registry for OpenAI provider
	errorRegistry = errx.NewRegistry("OPENAI")

	// API Errors
	ErrAPIRequest          = errorRegistry.Register("API_REQUEST_FAILED", errx.TypeExternal, "Failed to make request to OpenAI API")
	ErrAPIUnavailable      = errorRegistry.Register("API_UNAVAILABLE", errx.TypeUnavailable, "OpenAI API is temporarily unavailable")
	ErrAPIUnauthorized     = errorRegistry.Register("API_UNAUTHORIZED", errx.TypeExternal, "Invalid or missing OpenAI API key")
	ErrAPIRateLimit        = errorRegistry.Register("API_RATE_LIMIT", errx.TypeRateLimit, "OpenAI API rate limit exceeded")
	ErrAPIQuotaExceeded    = errorRegistry.Register("API_QUOTA_EXCEEDED", errx.TypeRateLimit, "OpenAI API quota exceeded")
	ErrInvalidRequest      = errorRegistry.Register("INVALID_REQUEST", errx.TypeValidation, "Invalid request parameters")
	ErrNoChoicesInResponse = errorRegistry.Register("NO_CHOICES_IN_RESPONSE", errx.TypeExternal, "No choices returned in API response")

	// Input Validation Errors
	ErrEmptyMessages  = errorRegistry.Register("EMPTY_MESSAGES", errx.TypeValidation, "Messages array cannot be empty")
	ErrInvalidMessage = errorRegistry.Register("INVALID_MESSAGE", errx.TypeValidation, "Invalid message format")
	ErrMissingAPIKey  = errorRegistry.Register("MISSING_API_KEY", errx.TypeValidation, "OpenAI API key not provided")
)

// ParseOpenAIError parses an OpenAI API error
func ParseOpenAIError(err error) *errx.Error {
	if err == nil {
		return nil
	}

	// Check if it's already a custom error
	if customErr, ok := errx.As(err); ok {
		return customErr
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return errorRegistry.NewWithCause(codeForStatus(apiErr.StatusCode, apiErr.Code), err).
			WithDetail("status_code", apiErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errorRegistry.NewWithCause(ErrAPIUnavailable, err)
	}

	errLower := strings.ToLower(err.Error())
	var baseErr *errx.ErrorCode
	switch {
	case strings.Contains(errLower, "unauthorized") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "incorrect api key"):
		baseErr = ErrAPIUnauthorized
	case strings.Contains(errLower, "rate limit") || strings.Contains(errLower, "rate_limit"):
		baseErr = ErrAPIRateLimit
	case strings.Contains(errLower, "quota"):
		baseErr = ErrAPIQuotaExceeded
	case strings.Contains(errLower, "connection") || strings.Contains(errLower, "eof") ||
		strings.Contains(errLower, "timeout"):
		baseErr = ErrAPIUnavailable
	default:
		baseErr = ErrAPIRequest
	}

	return errorRegistry.NewWithCause(baseErr, err)
}

func codeForStatus(status int, code string) *errx.ErrorCode {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAPIUnauthorized
	case status == http.StatusTooManyRequests:
		if code == "insufficient_quota" {
			return ErrAPIQuotaExceeded
		}
		return ErrAPIRateLimit
	case status == http.StatusRequestTimeout || status >= 500:
		return ErrAPIUnavailable
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	default:
		return ErrAPIRequest
	}
}
