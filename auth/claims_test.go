package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-admin-console/auth"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestGroupsFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("list claim", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"cognito:groups": []any{"admins", "staff"}, "exp": exp})
		groups, err := auth.GroupsFromToken(token, "cognito:groups")
		require.NoError(t, err)
		require.Equal(t, []string{"admins", "staff"}, groups)

		// Decoding is a pure read of the token.
		again, err := auth.GroupsFromToken(token, "cognito:groups")
		require.NoError(t, err)
		require.Equal(t, groups, again)
	})

	t.Run("space separated claim", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"groups": "admins staff", "exp": exp})
		groups, err := auth.GroupsFromToken(token, "groups")
		require.NoError(t, err)
		require.Equal(t, []string{"admins", "staff"}, groups)
	})

	t.Run("missing claim", func(t *testing.T) {
		token := signedToken(t, jwt.MapClaims{"exp": exp})
		groups, err := auth.GroupsFromToken(token, "cognito:groups")
		require.NoError(t, err)
		require.Empty(t, groups)
	})

	t.Run("not a token", func(t *testing.T) {
		_, err := auth.GroupsFromToken("not-a-jwt", "cognito:groups")
		require.Error(t, err)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := auth.GroupsFromToken("", "cognito:groups")
		require.Error(t, err)
	})
}
