package codegen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestNanoID_DefaultLength(t *testing.T) {
	t.Parallel()

	code, err := NewNanoID(0).Generate()
	require.NoError(t, err)
	require.Len(t, code, DefaultLength)
	require.Regexp(t, urlSafe, code)
}

func TestNanoID_CustomLength(t *testing.T) {
	t.Parallel()

	code, err := NewNanoID(32).Generate()
	require.NoError(t, err)
	require.Len(t, code, 32)
}

func TestNanoID_Unique(t *testing.T) {
	t.Parallel()

	g := NewNanoID(DefaultLength)
	seen := make(map[string]struct{}, 1000)

	for i := 0; i < 1000; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		require.Regexp(t, urlSafe, code)

		_, dup := seen[code]
		require.False(t, dup, "duplicate code %q", code)
		seen[code] = struct{}{}
	}
}
