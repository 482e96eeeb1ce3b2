// Package oidcprovider implements identity.Provider against an OpenID Connect
// server that supports the resource owner password grant.
package oidcprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-admin-console/identity"
	"github.com/jrsteele09/go-admin-console/internal/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var _ identity.Provider = (*Provider)(nil)

// Default paths, relative to the issuer, for endpoints missing from discovery.
const (
	defaultRevocationPath     = "/oauth2/revoke"
	defaultChallengePath      = "/auth/challenge"
	defaultForgotPasswordPath = "/auth/forgot-password"
	defaultResetPasswordPath  = "/auth/reset-password"
)

const errorNewPasswordRequired = "new_password_required"

type endpoints struct {
	Revocation     string `json:"revocation_endpoint"`
	Challenge      string `json:"challenge_endpoint"`
	ForgotPassword string `json:"forgot_password_endpoint"`
	ResetPassword  string `json:"reset_password_endpoint"`
}

// Provider keeps the signed in user's tokens in memory.
type Provider struct {
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	endpoints  endpoints
	httpClient *http.Client

	mu        sync.Mutex
	token     *oauth2.Token
	source    oauth2.TokenSource
	idToken   string
	principal *identity.Principal
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	now        func() time.Time
}

// WithHTTPClient sets the client used for every call to the identity server.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithNowFunc sets the clock used to check ID token expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New discovers the issuer's endpoints and signing keys.
func New(ctx context.Context, cfg config.IdentityConfig, opts ...Option) (*Provider, error) {
	if cfg == nil {
		return nil, errors.New("[oidcprovider.New] identity config is required")
	}
	if cfg.GetIssuer() == "" || cfg.GetClientID() == "" {
		return nil, errors.New("[oidcprovider.New] issuer and client id are required")
	}

	o := options{httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}

	discovery, err := oidc.NewProvider(oidc.ClientContext(ctx, o.httpClient), cfg.GetIssuer())
	if err != nil {
		return nil, fmt.Errorf("[oidcprovider.New] discovery: %w", err)
	}

	var eps endpoints
	if err := discovery.Claims(&eps); err != nil {
		return nil, fmt.Errorf("[oidcprovider.New] discovery claims: %w", err)
	}
	eps = eps.withDefaults(cfg.GetIssuer())

	endpoint := discovery.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInHeader

	p := &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.GetClientID(),
			ClientSecret: cfg.GetClientSecret(),
			Endpoint:     endpoint,
			Scopes:       cfg.GetScopes(),
		},
		verifier:   discovery.Verifier(&oidc.Config{ClientID: cfg.GetClientID(), Now: o.now}),
		endpoints:  eps,
		httpClient: o.httpClient,
	}

	log.Info().Str("issuer", cfg.GetIssuer()).Msg("identity provider discovered")
	return p, nil
}

func (e endpoints) withDefaults(issuer string) endpoints {
	if e.Revocation == "" {
		e.Revocation = issuer + defaultRevocationPath
	}
	if e.Challenge == "" {
		e.Challenge = issuer + defaultChallengePath
	}
	if e.ForgotPassword == "" {
		e.ForgotPassword = issuer + defaultForgotPasswordPath
	}
	if e.ResetPassword == "" {
		e.ResetPassword = issuer + defaultResetPasswordPath
	}
	return e
}

func (p *Provider) SignIn(ctx context.Context, username, password string) (identity.SignInResult, error) {
	token, err := p.oauth.PasswordCredentialsToken(p.clientContext(ctx), username, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == errorNewPasswordRequired {
			session := challengeSession(retrieveErr.Body)
			if session == "" {
				return identity.SignInResult{}, &identity.ProviderError{Code: identity.CodeChallengeExpired, Message: "identity provider sent a challenge without a session"}
			}
			return identity.SignInResult{
				Step:      identity.StepNewPasswordRequired,
				Challenge: identity.NewChallengeHandle(session),
			}, nil
		}
		return identity.SignInResult{}, mapError(err)
	}

	if err := p.accept(ctx, token); err != nil {
		return identity.SignInResult{}, err
	}
	return identity.SignInResult{Step: identity.StepDone}, nil
}

func (p *Provider) ConfirmNewPassword(ctx context.Context, challenge identity.ChallengeHandle, newPassword string) error {
	if challenge.IsZero() {
		return &identity.ProviderError{Code: identity.CodeChallengeExpired, Message: "no challenge session"}
	}

	var resp tokenResponse
	err := p.postJSON(ctx, p.endpoints.Challenge, map[string]string{
		"client_id":    p.oauth.ClientID,
		"session":      challenge.Value(),
		"new_password": newPassword,
	}, &resp)
	if err != nil {
		return err
	}
	return p.accept(ctx, resp.oauth2Token())
}

func (p *Provider) CurrentUser(context.Context) (identity.Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.principal == nil {
		return identity.Principal{}, identity.ErrNoCurrentUser
	}
	return *p.principal, nil
}

// CurrentSession returns the current tokens, refreshing them first when the
// access token has expired and a refresh token is held.
func (p *Provider) CurrentSession(ctx context.Context) (identity.Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == nil {
		return identity.Tokens{}, identity.ErrNoCurrentUser
	}

	token, err := p.source.Token()
	if err != nil {
		return identity.Tokens{}, mapError(err)
	}
	if token.AccessToken != p.token.AccessToken {
		if raw, ok := token.Extra("id_token").(string); ok && raw != "" {
			if _, err := p.verifier.Verify(p.clientContext(ctx), raw); err != nil {
				return identity.Tokens{}, fmt.Errorf("[Provider.CurrentSession] refreshed id token: %w", err)
			}
			p.idToken = raw
		}
		p.token = token
	}

	return identity.Tokens{AccessToken: token.AccessToken, IDToken: p.idToken, ExpiresAt: token.Expiry}, nil
}

// SignOut forgets the local tokens and revokes the refresh token, or the
// access token when there is none.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.token, p.source, p.idToken, p.principal = nil, nil, "", nil
	p.mu.Unlock()

	if token == nil {
		return nil
	}
	revoke := token.RefreshToken
	if revoke == "" {
		revoke = token.AccessToken
	}
	return p.postForm(ctx, p.endpoints.Revocation, revoke)
}

func (p *Provider) ForgotPassword(ctx context.Context, username string) (identity.CodeDelivery, error) {
	var delivery identity.CodeDelivery
	err := p.postJSON(ctx, p.endpoints.ForgotPassword, map[string]string{
		"client_id": p.oauth.ClientID,
		"username":  username,
	}, &delivery)
	return delivery, err
}

func (p *Provider) ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error {
	return p.postJSON(ctx, p.endpoints.ResetPassword, map[string]string{
		"client_id":    p.oauth.ClientID,
		"username":     username,
		"code":         code,
		"new_password": newPassword,
	}, nil)
}

// accept verifies the ID token in token and makes it the current session.
func (p *Provider) accept(ctx context.Context, token *oauth2.Token) error {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return &identity.ProviderError{Code: identity.CodeNotAuthorized, Message: "identity provider returned no id token"}
	}

	idToken, err := p.verifier.Verify(p.clientContext(ctx), raw)
	if err != nil {
		return fmt.Errorf("[Provider.accept] verify id token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return fmt.Errorf("[Provider.accept] id token claims: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	p.idToken = raw
	p.source = p.oauth.TokenSource(p.clientContext(context.Background()), token)
	p.principal = &identity.Principal{Username: idToken.Subject, Email: claims.Email}
	return nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func challengeSession(body []byte) string {
	var resp struct {
		Session string `json:"session"`
	}
	if err := decodeJSON(body, &resp); err != nil {
		return ""
	}
	return strings.TrimSpace(resp.Session)
}
