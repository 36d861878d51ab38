package enhancer

import "github.com/Abraxas-365/drugcontent/pkg/errx"

var enhancerErrors = errx.NewRegistry("ENHANCER")

var (
	ErrRateLimited    = enhancerErrors.Register("RATE_LIMITED", errx.TypeRateLimit, "Content API budget exhausted")
	ErrInvalidPayload = enhancerErrors.Register("INVALID_PAYLOAD", errx.TypeValidation, "Job payload is invalid")
	ErrPersist        = enhancerErrors.Register("PERSIST", errx.TypeInternal, "Failed to store generated content")
)
