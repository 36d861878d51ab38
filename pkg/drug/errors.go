package drug

import "github.com/Abraxas-365/drugcontent/pkg/errx"

var ErrRegistry = errx.NewRegistry("DRUG")

var (
	ErrNotFound        = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, "Drug not found")
	ErrContentNotFound = ErrRegistry.Register("CONTENT_NOT_FOUND", errx.TypeNotFound, "Drug has no generated content")
	ErrStore           = ErrRegistry.Register("STORE", errx.TypeInternal, "Drug store operation failed")
)

func NotFound(id string) *errx.Error {
	return ErrRegistry.New(ErrNotFound).WithDetail("drug_id", id)
}

func ContentNotFound(id string) *errx.Error {
	return ErrRegistry.New(ErrContentNotFound).WithDetail("drug_id", id)
}

// StoreError wraps a backend failure for op.
func StoreError(op string, cause error) *errx.Error {
	return ErrRegistry.NewWithCause(ErrStore, cause).WithDetail("op", op)
}
