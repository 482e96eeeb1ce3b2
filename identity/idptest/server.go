// Package idptest runs an in-process OpenID Connect identity server for tests.
// It supports the password and refresh token grants, the new password
// challenge, forgot/reset password and token revocation.
package idptest

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	PathDiscovery      = "/.well-known/openid-configuration"
	PathJWKS           = "/.well-known/jwks.json"
	PathToken          = "/oauth2/token"
	PathRevoke         = "/oauth2/revoke"
	PathChallenge      = "/auth/challenge"
	PathForgotPassword = "/auth/forgot-password"
	PathResetPassword  = "/auth/reset-password"
)

const (
	DefaultClientID     = "admin-console"
	DefaultClientSecret = "admin-console-secret"
	DefaultGroupsClaim  = "cognito:groups"
	minPasswordLength   = 8
)

// User is an account known to the server.
type User struct {
	Subject                string
	Email                  string
	PasswordHash           string
	Groups                 []string
	PasswordChangeRequired bool
}

// Server is an OIDC identity server listening on a local port.
type Server struct {
	ClientID     string
	ClientSecret string

	httpServer  *httptest.Server
	keys        *keyPair
	tokenTTL    time.Duration
	groupsClaim string
	omitExtras  bool

	mu            sync.Mutex
	users         map[string]*User  // email to user
	challenges    map[string]string // session to email
	resetCodes    map[string]string // email to code
	refreshTokens map[string]string // refresh token to email
	revoked       map[string]bool
	requests      map[string]int
}

type Option func(*Server)

// WithTokenTTL sets the lifetime of issued access and ID tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

func WithClient(clientID, clientSecret string) Option {
	return func(s *Server) {
		s.ClientID = clientID
		s.ClientSecret = clientSecret
	}
}

func WithGroupsClaim(claim string) Option {
	return func(s *Server) {
		s.groupsClaim = claim
	}
}

// WithoutDiscoveryExtras leaves the non standard endpoints out of the
// discovery document so that clients fall back to their defaults.
func WithoutDiscoveryExtras() Option {
	return func(s *Server) {
		s.omitExtras = true
	}
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB, options ...Option) *Server {
	t.Helper()

	keys, err := generateKeyPair(uuid.New().String())
	require.NoError(t, err)

	s := &Server{
		ClientID:      DefaultClientID,
		ClientSecret:  DefaultClientSecret,
		keys:          keys,
		tokenTTL:      time.Hour,
		groupsClaim:   DefaultGroupsClaim,
		users:         make(map[string]*User),
		challenges:    make(map[string]string),
		resetCodes:    make(map[string]string),
		refreshTokens: make(map[string]string),
		revoked:       make(map[string]bool),
		requests:      make(map[string]int),
	}
	for _, opt := range options {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathDiscovery, s.discovery)
	mux.HandleFunc("GET "+PathJWKS, s.jwksHandler)
	mux.HandleFunc("POST "+PathToken, s.token)
	mux.HandleFunc("POST "+PathRevoke, s.revoke)
	mux.HandleFunc("POST "+PathChallenge, s.challenge)
	mux.HandleFunc("POST "+PathForgotPassword, s.forgotPassword)
	mux.HandleFunc("POST "+PathResetPassword, s.resetPassword)

	s.httpServer = httptest.NewServer(s.countRequests(mux))
	t.Cleanup(s.httpServer.Close)
	return s
}

// Issuer is the server's base URL and the iss claim of every token.
func (s *Server) Issuer() string {
	return s.httpServer.URL
}

// Client returns an HTTP client for talking to the server.
func (s *Server) Client() *http.Client {
	return s.httpServer.Client()
}

// AddUser registers email with password and the given group memberships.
func (s *Server) AddUser(t testing.TB, email, password string, groups ...string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	u := &User{Subject: uuid.New().String(), Email: email, PasswordHash: string(hash), Groups: groups}
	s.users[email] = u
	return u
}

// RequirePasswordChange makes the next password grant for email answer with a challenge.
func (s *Server) RequirePasswordChange(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		u.PasswordChangeRequired = true
	}
}

// ResetCode returns the verification code last sent to email.
func (s *Server) ResetCode(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetCodes[email]
}

// Revoked reports whether token was presented at the revocation endpoint.
func (s *Server) Revoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[token]
}

// Requests returns how many requests hit path.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// issueTokensLocked mints a token response for u. mu must be held.
func (s *Server) issueTokensLocked(u *User, refreshToken string) (tokenResponse, error) {
	now := time.Now()
	exp := now.Add(s.tokenTTL)

	access, err := s.keys.sign(map[string]any{
		"iss":         s.Issuer(),
		"sub":         u.Subject,
		"client_id":   s.ClientID,
		"username":    u.Subject,
		"token_use":   "access",
		"scope":       "openid email profile",
		s.groupsClaim: u.Groups,
		"iat":         now.Unix(),
		"exp":         exp.Unix(),
		"jti":         uuid.New().String(),
	})
	if err != nil {
		return tokenResponse{}, err
	}

	id, err := s.keys.sign(map[string]any{
		"iss":            s.Issuer(),
		"sub":            u.Subject,
		"aud":            s.ClientID,
		"email":          u.Email,
		"email_verified": true,
		"token_use":      "id",
		s.groupsClaim:    u.Groups,
		"iat":            now.Unix(),
		"exp":            exp.Unix(),
	})
	if err != nil {
		return tokenResponse{}, err
	}

	if refreshToken == "" {
		refreshToken = uuid.New().String()
		s.refreshTokens[refreshToken] = u.Email
	}

	return tokenResponse{
		AccessToken:  access,
		IDToken:      id,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenTTL.Seconds()),
		RefreshToken: refreshToken,
	}, nil
}

func (s *Server) setPasswordLocked(u *User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
