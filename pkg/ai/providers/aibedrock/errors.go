package aibedrock

import (
	"context"
	"errors"
	"strings"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/aws/smithy-go"
)

var (
	errorRegistry = errx.NewRegistry("BEDROCK")

	ErrAPIRequest      = errorRegistry.Register("API_REQUEST_FAILED", errx.TypeExternal, "Failed to make request to AWS Bedrock")
	ErrAPIResponse     = errorRegistry.Register("API_RESPONSE_INVALID", errx.TypeExternal, "Invalid response from AWS Bedrock")
	ErrAPIUnavailable  = errorRegistry.Register("API_UNAVAILABLE", errx.TypeUnavailable, "AWS Bedrock is temporarily unavailable")
	ErrAPIUnauthorized = errorRegistry.Register("API_UNAUTHORIZED", errx.TypeExternal, "Access to AWS Bedrock denied")
	ErrAPIRateLimit    = errorRegistry.Register("API_RATE_LIMIT", errx.TypeRateLimit, "AWS Bedrock request throttled")
	ErrInvalidRequest  = errorRegistry.Register("INVALID_REQUEST", errx.TypeValidation, "Invalid Bedrock request")

	ErrEmptyMessages  = errorRegistry.Register("EMPTY_MESSAGES", errx.TypeValidation, "Messages array cannot be empty")
	ErrInvalidMessage = errorRegistry.Register("INVALID_MESSAGE", errx.TypeValidation, "Invalid message format")
)

// ParseBedrockError maps an AWS Bedrock error to an errx.Error
func ParseBedrockError(err error) *errx.Error {
	if err == nil {
		return nil
	}
	if customErr, ok := errx.As(err); ok {
		return customErr
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		var code *errx.ErrorCode
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceQuotaExceededException":
			code = ErrAPIRateLimit
		case "ServiceUnavailableException", "InternalServerException", "ModelTimeoutException", "ModelNotReadyException":
			code = ErrAPIUnavailable
		case "AccessDeniedException", "UnrecognizedClientException":
			code = ErrAPIUnauthorized
		case "ValidationException", "ResourceNotFoundException", "ModelErrorException":
			code = ErrInvalidRequest
		default:
			code = ErrAPIRequest
		}
		return errorRegistry.NewWithCause(code, err).WithDetail("aws_error_code", apiErr.ErrorCode())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errorRegistry.NewWithCause(ErrAPIUnavailable, err)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "throttl"):
		return errorRegistry.NewWithCause(ErrAPIRateLimit, err)
	case strings.Contains(errLower, "connection") || strings.Contains(errLower, "timeout"):
		return errorRegistry.NewWithCause(ErrAPIUnavailable, err)
	default:
		return errorRegistry.NewWithCause(ErrAPIRequest, err)
	}
}
