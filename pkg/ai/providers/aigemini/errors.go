package aigemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"google.golang.org/genai"
)

var (
	errorRegistry = errx.NewRegistry("GEMINI")

	ErrAPIRequest      = errorRegistry.Register("API_REQUEST_FAILED", errx.TypeExternal, "Failed to make request to Gemini API")
	ErrAPIResponse     = errorRegistry.Register("API_RESPONSE_INVALID", errx.TypeExternal, "Invalid response from Gemini API")
	ErrAPIUnavailable  = errorRegistry.Register("API_UNAVAILABLE", errx.TypeUnavailable, "Gemini API is temporarily unavailable")
	ErrAPIUnauthorized = errorRegistry.Register("API_UNAUTHORIZED", errx.TypeExternal, "Invalid or missing Gemini API key")
	ErrAPIRateLimit    = errorRegistry.Register("API_RATE_LIMIT", errx.TypeRateLimit, "Gemini API resource exhausted")
	ErrInvalidRequest  = errorRegistry.Register("INVALID_REQUEST", errx.TypeValidation, "Invalid request parameters")

	ErrEmptyMessages  = errorRegistry.Register("EMPTY_MESSAGES", errx.TypeValidation, "Messages array cannot be empty")
	ErrInvalidMessage = errorRegistry.Register("INVALID_MESSAGE", errx.TypeValidation, "Invalid message format")
	ErrMissingAPIKey  = errorRegistry.Register("MISSING_API_KEY", errx.TypeValidation, "Gemini API key not provided")
)

// ParseGeminiError maps a Gemini SDK error to an errx.Error
func ParseGeminiError(err error) *errx.Error {
	if err == nil {
		return nil
	}
	if customErr, ok := errx.As(err); ok {
		return customErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		var code *errx.ErrorCode
		switch s := apiErr.Code; {
		case s == http.StatusUnauthorized || s == http.StatusForbidden:
			code = ErrAPIUnauthorized
		case s == http.StatusTooManyRequests:
			code = ErrAPIRateLimit
		case s == http.StatusRequestTimeout || s >= 500:
			code = ErrAPIUnavailable
		case s == http.StatusBadRequest || s == http.StatusNotFound:
			code = ErrInvalidRequest
		default:
			code = ErrAPIRequest
		}
		return errorRegistry.NewWithCause(code, err).
			WithDetail("status_code", apiErr.Code).
			WithDetail("status", apiErr.Status)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errorRegistry.NewWithCause(ErrAPIUnavailable, err)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "resource exhausted") || strings.Contains(errLower, "quota"):
		return errorRegistry.NewWithCause(ErrAPIRateLimit, err)
	case strings.Contains(errLower, "unavailable") || strings.Contains(errLower, "connection"):
		return errorRegistry.NewWithCause(ErrAPIUnavailable, err)
	default:
		return errorRegistry.NewWithCause(ErrAPIRequest, err)
	}
}
