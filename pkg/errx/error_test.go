package errx_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testErrors  = errx.NewRegistry("TEST")
	ErrMissing  = testErrors.Register("MISSING", errx.TypeNotFound, "thing not found")
	ErrTooOften = testErrors.Register("TOO_OFTEN", errx.TypeRateLimit, "slow down")
)

func TestRegistryPrefixesCodes(t *testing.T) {
	assert.Equal(t, "TEST_MISSING", ErrMissing.Code)
	assert.Equal(t, 404, ErrMissing.HTTPStatus)
	assert.Equal(t, 429, ErrTooOften.HTTPStatus)

	got, ok := testErrors.Get("MISSING")
	require.True(t, ok)
	assert.Same(t, ErrMissing, got)
	assert.Equal(t, []string{"TEST_MISSING", "TEST_TOO_OFTEN"}, testErrors.Codes())
}

func TestIsCodeThroughWrapping(t *testing.T) {
	base := testErrors.New(ErrMissing).WithDetail("id", 7)
	wrapped := fmt.Errorf("loading: %w", base)

	assert.True(t, errx.IsCode(wrapped, ErrMissing))
	assert.False(t, errx.IsCode(wrapped, ErrTooOften))
	assert.True(t, errors.Is(wrapped, testErrors.New(ErrMissing)))
	assert.False(t, errx.IsCode(nil, ErrMissing))
}

func TestWrapKeepsCodeAndCause(t *testing.T) {
	cause := errors.New("boom")
	e := testErrors.NewWithCause(ErrTooOften, cause)
	w := errx.Wrap(e, "outer", errx.TypeExternal)

	assert.Equal(t, ErrTooOften.Code, w.Code)
	assert.ErrorIs(t, w, cause)
	assert.Contains(t, w.Error(), "outer")

	got, ok := errx.As(fmt.Errorf("x: %w", w))
	require.True(t, ok)
	assert.Equal(t, errx.TypeExternal, got.Type)
	assert.True(t, errx.IsType(w, errx.TypeExternal))
	assert.Nil(t, errx.Wrap(nil, "nothing", errx.TypeInternal))
}
