package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-admin-console/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestClaimStrings(t *testing.T) {
	require.Equal(t, []string{"admins", "staff"}, utils.ClaimStrings([]any{"admins", 7, "staff"}))
	require.Equal(t, []string{"admins"}, utils.ClaimStrings([]string{"admins"}))
	require.Equal(t, []string{"a", "b"}, utils.ClaimStrings("a b"))
	require.Empty(t, utils.ClaimStrings(nil))
	require.Empty(t, utils.ClaimStrings(42))
}

func TestValueAndPtr(t *testing.T) {
	var missing *string
	require.Equal(t, "", utils.Value(missing))
	require.Equal(t, 3, utils.Value(utils.Ptr(3)))
}
