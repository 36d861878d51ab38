package fsx_test

import (
	"testing"

	"github.com/Abraxas-365/drugcontent/pkg/errx"
	"github.com/Abraxas-365/drugcontent/pkg/fsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	for in, want := range map[string]string{
		"a/b.json":     "a/b.json",
		"/a//b.json":   "a/b.json",
		"./a/./b.json": "a/b.json",
		`a\b.json`:     "a/b.json",
	} {
		got, err := fsx.Clean(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "/", "../etc/passwd", "a/../../b"} {
		_, err := fsx.Clean(bad)
		assert.True(t, errx.IsCode(err, fsx.ErrInvalidPath), bad)
	}
}
