package oidcprovider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-admin-console/auth"
	"github.com/jrsteele09/go-admin-console/identity"
	"github.com/jrsteele09/go-admin-console/identity/idptest"
	"github.com/jrsteele09/go-admin-console/identity/oidcprovider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "jane.admin@example.com"
	testPassword = "Init1al!Pass"
	newPassword  = "Sup3r!Secret"
)

type identityConfig struct {
	issuer, clientID, clientSecret string
}

func (c identityConfig) GetIssuer() string       { return c.issuer }
func (c identityConfig) GetClientID() string     { return c.clientID }
func (c identityConfig) GetClientSecret() string { return c.clientSecret }
func (c identityConfig) GetScopes() []string     { return []string{"openid", "email", "profile"} }

func setupProvider(t *testing.T, options ...idptest.Option) (*idptest.Server, *oidcprovider.Provider) {
	t.Helper()

	server := idptest.NewServer(t, options...)
	server.AddUser(t, testEmail, testPassword, "admins")

	provider, err := oidcprovider.New(context.Background(), identityConfig{
		issuer:       server.Issuer(),
		clientID:     server.ClientID,
		clientSecret: server.ClientSecret,
	}, oidcprovider.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return server, provider
}

func requireProviderCode(t *testing.T, err error, code string) *identity.ProviderError {
	t.Helper()
	var providerErr *identity.ProviderError
	require.True(t, errors.As(err, &providerErr), "expected ProviderError, got %v", err)
	require.Equal(t, code, providerErr.Code)
	return providerErr
}

func TestNew_Validation(t *testing.T) {
	_, err := oidcprovider.New(context.Background(), nil)
	require.Error(t, err)

	_, err = oidcprovider.New(context.Background(), identityConfig{issuer: "http://localhost"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "issuer and client id are required")
}

func TestProvider_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		_, provider := setupProvider(t)

		result, err := provider.SignIn(ctx, testEmail, testPassword)
		require.NoError(t, err)
		require.Equal(t, identity.StepDone, result.Step)

		principal, err := provider.CurrentUser(ctx)
		require.NoError(t, err)
		require.Equal(t, testEmail, principal.Email)
		require.NotEmpty(t, principal.Username)

		tokens, err := provider.CurrentSession(ctx)
		require.NoError(t, err)
		require.True(t, tokens.Valid(time.Now()))
		require.NotEmpty(t, tokens.IDToken)

		groups, err := auth.GroupsFromToken(tokens.AccessToken, idptest.DefaultGroupsClaim)
		require.NoError(t, err)
		require.Equal(t, []string{"admins"}, groups)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, provider := setupProvider(t)
		_, err := provider.SignIn(ctx, testEmail, "Wrong1!password")
		providerErr := requireProviderCode(t, err, identity.CodeNotAuthorized)
		require.Equal(t, "Incorrect username or password.", providerErr.Message)

		_, err = provider.CurrentUser(ctx)
		require.ErrorIs(t, err, identity.ErrNoCurrentUser)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, provider := setupProvider(t)
		_, err := provider.SignIn(ctx, "nobody@example.com", testPassword)
		requireProviderCode(t, err, identity.CodeUserNotFound)
	})
}

func TestProvider_NewPasswordChallenge(t *testing.T) {
	ctx := context.Background()
	server, provider := setupProvider(t)
	server.RequirePasswordChange(testEmail)

	result, err := provider.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, identity.StepNewPasswordRequired, result.Step)
	require.False(t, result.Challenge.IsZero())

	_, err = provider.CurrentUser(ctx)
	require.ErrorIs(t, err, identity.ErrNoCurrentUser)

	require.NoError(t, provider.ConfirmNewPassword(ctx, result.Challenge, newPassword))
	principal, err := provider.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, testEmail, principal.Email)

	t.Run("challenge is single use", func(t *testing.T) {
		err := provider.ConfirmNewPassword(ctx, result.Challenge, newPassword)
		requireProviderCode(t, err, identity.CodeChallengeExpired)
	})
}

func TestProvider_RefreshesExpiredAccessToken(t *testing.T) {
	ctx := context.Background()
	// Tokens inside the oauth2 expiry margin are refreshed on every read.
	server, provider := setupProvider(t, idptest.WithTokenTTL(5*time.Second))

	_, err := provider.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, 1, server.Requests(idptest.PathToken))

	tokens, err := provider.CurrentSession(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, server.Requests(idptest.PathToken))
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.IDToken)
}

func TestProvider_SignOut(t *testing.T) {
	ctx := context.Background()
	server, provider := setupProvider(t)

	require.NoError(t, provider.SignOut(ctx))
	require.Equal(t, 0, server.Requests(idptest.PathRevoke))

	_, err := provider.SignIn(ctx, testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, provider.SignOut(ctx))
	require.Equal(t, 1, server.Requests(idptest.PathRevoke))

	_, err = provider.CurrentUser(ctx)
	require.ErrorIs(t, err, identity.ErrNoCurrentUser)
	_, err = provider.CurrentSession(ctx)
	require.ErrorIs(t, err, identity.ErrNoCurrentUser)
}

func TestProvider_ForgotPassword(t *testing.T) {
	ctx := context.Background()

	for _, tt := range []struct {
		name    string
		options []idptest.Option
	}{
		{"advertised endpoints", nil},
		{"default endpoints", []idptest.Option{idptest.WithoutDiscoveryExtras()}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			server, provider := setupProvider(t, tt.options...)

			delivery, err := provider.ForgotPassword(ctx, testEmail)
			require.NoError(t, err)
			require.Equal(t, "j***@example.com", delivery.Destination)
			require.Equal(t, "EMAIL", delivery.DeliveryMedium)

			err = provider.ConfirmForgotPassword(ctx, testEmail, "000000x", newPassword)
			requireProviderCode(t, err, identity.CodeCodeMismatch)

			require.NoError(t, provider.ConfirmForgotPassword(ctx, testEmail, server.ResetCode(testEmail), newPassword))
			_, err = provider.SignIn(ctx, testEmail, newPassword)
			require.NoError(t, err)
		})
	}

	t.Run("unknown user", func(t *testing.T) {
		_, provider := setupProvider(t)
		_, err := provider.ForgotPassword(ctx, "nobody@example.com")
		requireProviderCode(t, err, identity.CodeUserNotFound)
	})
}

func TestProvider_WithSessionManager(t *testing.T) {
	ctx := context.Background()
	server, provider := setupProvider(t)
	server.AddUser(t, "clerk@example.com", testPassword, "staff")

	manager, err := auth.NewManager(provider, auth.WithRequiredGroup("admins"), auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.Equal(t, auth.StateAnonymous, manager.Initialize(ctx))

	err = manager.Login(ctx, "clerk@example.com", testPassword)
	require.ErrorIs(t, err, auth.ErrGroupMembershipRequired)
	require.Equal(t, 1, server.Requests(idptest.PathRevoke))

	require.NoError(t, manager.Login(ctx, testEmail, testPassword))
	require.Equal(t, auth.StateAuthenticated, manager.State())

	token, ok := manager.AuthToken(ctx)
	require.True(t, ok)
	require.NotEmpty(t, token)

	manager.Logout(ctx)
	require.Equal(t, 2, server.Requests(idptest.PathRevoke))
}
