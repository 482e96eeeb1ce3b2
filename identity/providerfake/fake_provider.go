package providerfake

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-admin-console/identity"
	"golang.org/x/crypto/bcrypt"
)

var _ identity.Provider = (*FakeProvider)(nil)

// Operation names a Provider method so that failures can be injected per call.
type Operation string

const (
	OpSignIn                Operation = "SignIn"
	OpConfirmNewPassword    Operation = "ConfirmNewPassword"
	OpCurrentUser           Operation = "CurrentUser"
	OpCurrentSession        Operation = "CurrentSession"
	OpSignOut               Operation = "SignOut"
	OpForgotPassword        Operation = "ForgotPassword"
	OpConfirmForgotPassword Operation = "ConfirmForgotPassword"
)

const (
	DefaultGroupsClaim = "cognito:groups"
	minPasswordLength  = 8
)

type User struct {
	Username               string
	Email                  string
	PasswordHash           string
	Groups                 []string
	PasswordChangeRequired bool
}

// FakeProvider is an in-memory identity provider with bcrypt password hashes
// and HS256 signed tokens.
type FakeProvider struct {
	users       map[string]*User  // email to user
	challenges  map[string]string // challenge handle to email
	resetCodes  map[string]string // email to code
	signedIn    *User
	tokens      identity.Tokens
	failures    map[Operation]error
	calls       map[Operation]int
	secret      []byte
	groupsClaim string
	tokenTTL    time.Duration
	nowFunc     func() time.Time
	lock        sync.RWMutex
}

type Option func(*FakeProvider)

func WithNowFunc(now func() time.Time) Option {
	return func(p *FakeProvider) {
		p.nowFunc = now
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(p *FakeProvider) {
		p.tokenTTL = ttl
	}
}

func WithGroupsClaim(claim string) Option {
	return func(p *FakeProvider) {
		p.groupsClaim = claim
	}
}

func NewFakeProvider(options ...Option) *FakeProvider {
	p := &FakeProvider{
		users:       make(map[string]*User),
		challenges:  make(map[string]string),
		resetCodes:  make(map[string]string),
		failures:    make(map[Operation]error),
		calls:       make(map[Operation]int),
		secret:      []byte("fake-provider-secret"),
		groupsClaim: DefaultGroupsClaim,
		tokenTTL:    time.Hour,
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// AddUser registers a user that can sign in with password.
func (p *FakeProvider) AddUser(email, password string, groups ...string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("FakeProvider.AddUser: %w", err)
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	user := &User{
		Username:     uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Groups:       groups,
	}
	p.users[email] = user
	return user, nil
}

// RequirePasswordChange forces the next sign-in of email through the new password challenge.
func (p *FakeProvider) RequirePasswordChange(email string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if u, ok := p.users[email]; ok {
		u.PasswordChangeRequired = true
	}
}

// Fail makes every later call of op return err until cleared with Fail(op, nil).
func (p *FakeProvider) Fail(op Operation, err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Calls returns how many times op was invoked.
func (p *FakeProvider) Calls(op Operation) int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.calls[op]
}

// ResetCode returns the last verification code dispatched to email.
func (p *FakeProvider) ResetCode(email string) string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.resetCodes[email]
}

// SignInAs opens a provider session without going through SignIn, as if it
// was restored from the browser's storage.
func (p *FakeProvider) SignInAs(email string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	u, ok := p.users[email]
	if !ok {
		return userNotFound()
	}
	return p.issueTokens(u)
}

func (p *FakeProvider) SignIn(_ context.Context, username, password string) (identity.SignInResult, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.record(OpSignIn); err != nil {
		return identity.SignInResult{}, err
	}

	u, ok := p.users[username]
	if !ok {
		return identity.SignInResult{}, userNotFound()
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return identity.SignInResult{}, &identity.ProviderError{Code: identity.CodeNotAuthorized, Message: "Incorrect username or password."}
	}

	if u.PasswordChangeRequired {
		handle := uuid.New().String()
		p.challenges[handle] = u.Email
		return identity.SignInResult{
			Step:      identity.StepNewPasswordRequired,
			Challenge: identity.NewChallengeHandle(handle),
		}, nil
	}

	if err := p.issueTokens(u); err != nil {
		return identity.SignInResult{}, err
	}
	return identity.SignInResult{Step: identity.StepDone}, nil
}

func (p *FakeProvider) ConfirmNewPassword(_ context.Context, challenge identity.ChallengeHandle, newPassword string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.record(OpConfirmNewPassword); err != nil {
		return err
	}

	email, ok := p.challenges[challenge.Value()]
	if !ok {
		return &identity.ProviderError{Code: identity.CodeChallengeExpired, Message: "Invalid session for the user, session is expired."}
	}
	delete(p.challenges, challenge.Value())

	if len(newPassword) < minPasswordLength {
		return &identity.ProviderError{Code: identity.CodeInvalidPassword, Message: "Password does not conform to policy: Password not long enough"}
	}

	u := p.users[email]
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.MinCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.PasswordChangeRequired = false
	return p.issueTokens(u)
}

func (p *FakeProvider) CurrentUser(context.Context) (identity.Principal, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.record(OpCurrentUser); err != nil {
		return identity.Principal{}, err
	}
	if p.signedIn == nil {
		return identity.Principal{}, identity.ErrNoCurrentUser
	}
	return identity.Principal{Username: p.signedIn.Username, Email: p.signedIn.Email}, nil
}

func (p *FakeProvider) CurrentSession(context.Context) (identity.Tokens, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.record(OpCurrentSession); err != nil {
		return identity.Tokens{}, err
	}
	if p.signedIn == nil {
		return identity.Tokens{}, identity.ErrNoCurrentUser
	}
	return p.tokens, nil
}

func (p *FakeProvider) SignOut(context.Context) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.record(OpSignOut); err != nil {
		return err
	}
	p.signedIn = nil
	p.tokens = identity.Tokens{}
	return nil
}

func (p *FakeProvider) ForgotPassword(_ context.Context, username string) (identity.CodeDelivery, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.record(OpForgotPassword); err != nil {
		return identity.CodeDelivery{}, err
	}

	if _, ok := p.users[username]; !ok {
		return identity.CodeDelivery{}, userNotFound()
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return identity.CodeDelivery{}, err
	}
	p.resetCodes[username] = fmt.Sprintf("%06d", n.Int64())
	return identity.CodeDelivery{Destination: maskEmail(username), DeliveryMedium: "EMAIL"}, nil
}

func (p *FakeProvider) ConfirmForgotPassword(_ context.Context, username, code, newPassword string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.record(OpConfirmForgotPassword); err != nil {
		return err
	}

	u, ok := p.users[username]
	if !ok {
		return userNotFound()
	}
	expected, ok := p.resetCodes[username]
	if !ok || expected != code {
		return &identity.ProviderError{Code: identity.CodeCodeMismatch, Message: "Invalid verification code provided, please try again."}
	}
	if len(newPassword) < minPasswordLength {
		return &identity.ProviderError{Code: identity.CodeInvalidPassword, Message: "Password does not conform to policy: Password not long enough"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.MinCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	delete(p.resetCodes, username)
	return nil
}

// record must be called with the lock held.
func (p *FakeProvider) record(op Operation) error {
	p.calls[op]++
	return p.failures[op]
}

// issueTokens must be called with the lock held.
func (p *FakeProvider) issueTokens(u *User) error {
	now := p.nowFunc()
	expiresAt := now.Add(p.tokenTTL)

	groups := make([]any, 0, len(u.Groups))
	for _, g := range u.Groups {
		groups = append(groups, g)
	}

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         u.Username,
		"username":    u.Username,
		"token_use":   "access",
		p.groupsClaim: groups,
		"iat":         now.Unix(),
		"exp":         expiresAt.Unix(),
		"jti":         uuid.New().String(),
	})
	accessToken, err := access.SignedString(p.secret)
	if err != nil {
		return fmt.Errorf("FakeProvider.issueTokens access: %w", err)
	}

	id := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         u.Username,
		"email":       u.Email,
		"token_use":   "id",
		p.groupsClaim: groups,
		"iat":         now.Unix(),
		"exp":         expiresAt.Unix(),
	})
	idToken, err := id.SignedString(p.secret)
	if err != nil {
		return fmt.Errorf("FakeProvider.issueTokens id: %w", err)
	}

	p.signedIn = u
	p.tokens = identity.Tokens{AccessToken: accessToken, IDToken: idToken, ExpiresAt: expiresAt}
	return nil
}

func userNotFound() error {
	return &identity.ProviderError{Code: identity.CodeUserNotFound, Message: "User does not exist."}
}

func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
