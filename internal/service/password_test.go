package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		pw   string
		want error
	}{
		{"ok", "Abcdef1!", nil},
		{"unicode ok", "Пароль1!x", nil},
		{"empty", "", ErrEmptyPassword},
		{"short", "Ab1!", ErrWeakPassword},
		{"no upper", "abcdef1!", ErrWeakPassword},
		{"no lower", "ABCDEF1!", ErrWeakPassword},
		{"no digit", "Abcdefg!", ErrWeakPassword},
		{"no special", "Abcdefg1", ErrWeakPassword},
		{"too long for bcrypt", "Aa1!" + strings.Repeat("x", 69), ErrWeakPassword},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := validatePassword(tc.pw)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	got, err := normalizeEmail("  User@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "user@example.com", got)

	for _, bad := range []string{"", "   ", "no-at-sign", "Name <user@example.com>", "a@"} {
		_, err := normalizeEmail(bad)
		require.ErrorIs(t, err, ErrInvalidEmail, "input %q", bad)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	t.Parallel()

	h, err := hashPassword("Abcdef1!")
	require.NoError(t, err)
	require.True(t, checkPassword(h, "Abcdef1!"))
	require.False(t, checkPassword(h, "Abcdef1?"))
	require.False(t, checkPassword(dummyHash(), "Abcdef1!"))
}
