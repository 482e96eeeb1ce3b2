package auth_test

import (
	"errors"
	"testing"

	"github.com/jrsteele09/go-admin-console/auth"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		failures []string
	}{
		{"strong", "Sup3r!Secret", nil},
		{"unicode symbol counts as special", "Sup3rSecret£", nil},
		{"too short", "Ab1!xyz", []string{"password must be at least 8 characters long"}},
		{"no digit", "Abcdefghij!k", []string{"password must contain at least one number"}},
		{"no special", "Abcdefghij1k", []string{"password must contain at least one special character"}},
		{"no upper", "abcdefgh1!", []string{"password must contain at least one uppercase letter"}},
		{"no lower", "ABCDEFGH1!", []string{"password must contain at least one lowercase letter"}},
		{"empty", "", []string{
			"password must be at least 8 characters long",
			"password must contain at least one uppercase letter",
			"password must contain at least one lowercase letter",
			"password must contain at least one number",
			"password must contain at least one special character",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePasswordStrength(tt.password)
			if tt.failures == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, auth.ErrPasswordPolicy)
			var violation *auth.PasswordPolicyViolation
			require.True(t, errors.As(err, &violation))
			require.Equal(t, tt.failures, violation.Failures)
			require.False(t, violation.Mismatch)
		})
	}
}

func TestValidatePasswordChange(t *testing.T) {
	t.Run("matching strong password", func(t *testing.T) {
		require.NoError(t, auth.ValidatePasswordChange("Sup3r!Secret", "Sup3r!Secret"))
	})

	t.Run("strong password with mismatch", func(t *testing.T) {
		err := auth.ValidatePasswordChange("Sup3r!Secret", "Sup3r!Secrat")
		require.ErrorIs(t, err, auth.ErrPasswordMismatch)
		require.ErrorIs(t, err, auth.ErrPasswordPolicy)
		require.Contains(t, err.Error(), "passwords do not match")
	})

	t.Run("weak password with mismatch reports both", func(t *testing.T) {
		err := auth.ValidatePasswordChange("short", "other")
		var violation *auth.PasswordPolicyViolation
		require.True(t, errors.As(err, &violation))
		require.True(t, violation.Mismatch)
		require.Contains(t, violation.Failures, "password must be at least 8 characters long")
		require.Contains(t, violation.Failures, "passwords do not match")
	})
}
