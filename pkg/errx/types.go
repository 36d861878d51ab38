package errx

// Type represents the category of error
type Type string

const (
	// TypeInternal represents internal failures of this process
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents invalid input
	TypeValidation Type = "VALIDATION"

	// TypeNotFound represents missing resources
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict represents an operation not allowed in the resource's current state
	TypeConflict Type = "CONFLICT"

	// TypeRateLimit represents an exhausted quota
	TypeRateLimit Type = "RATE_LIMIT"

	// TypeUnavailable represents a dependency that is temporarily refusing work
	TypeUnavailable Type = "UNAVAILABLE"

	// TypeExternal represents errors from external services
	TypeExternal Type = "EXTERNAL"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}

// HTTPStatus maps the type to the status code the admin API answers with.
func (t Type) HTTPStatus() int {
	switch t {
	case TypeValidation:
		return 400
	case TypeNotFound:
		return 404
	case TypeConflict:
		return 409
	case TypeRateLimit:
		return 429
	case TypeExternal:
		return 502
	case TypeUnavailable:
		return 503
	default:
		return 500
	}
}
