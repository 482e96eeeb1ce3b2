package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-admin-console/identity"
	"github.com/jrsteele09/go-admin-console/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the authentication state of the console.
type State string

const (
	StateUnknown                State = "UNKNOWN"
	StateAnonymous              State = "ANONYMOUS"
	StateAuthenticated          State = "AUTHENTICATED"
	StatePasswordChangeRequired State = "PASSWORD_CHANGE_REQUIRED"
)

const defaultSessionDuration = time.Hour

// Session is the signed in user as seen by the console.
type Session struct {
	Username       string
	Email          string
	Groups         []string
	AccessToken    string
	TokenExpiresAt time.Time
	CreatedAt      time.Time
	ExpiresAt      time.Time // CreatedAt plus the fixed session duration
}

// Timer is the part of *time.Timer the manager needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Manager owns the console's authentication state. All other components read
// it through State, CurrentSession and AuthToken and never mutate it.
type Manager struct {
	provider           identity.Provider
	logger             zerolog.Logger
	nowTime            func() time.Time
	afterFunc          AfterFunc
	sessionDuration    time.Duration
	requiredGroup      string
	groupsClaim        string
	unauthorizedPolicy config.UnauthorizedPolicy

	// opLock serialises operations that talk to the provider and change state.
	opLock      sync.Mutex
	initialized bool

	mu         sync.RWMutex
	state      State
	session    *Session
	challenge  identity.ChallengeHandle
	timer      Timer
	generation uint64
	notices    *noticeBroker
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithAfterFunc replaces the timer factory used for session expiry (primarily for testing)
func WithAfterFunc(afterFunc AfterFunc) ManagerOption {
	return func(m *Manager) {
		m.afterFunc = afterFunc
	}
}

func WithSessionDuration(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.sessionDuration = d
	}
}

// WithRequiredGroup enables the group gate. An empty group disables it.
func WithRequiredGroup(group string) ManagerOption {
	return func(m *Manager) {
		m.requiredGroup = group
	}
}

func WithGroupsClaim(claim string) ManagerOption {
	return func(m *Manager) {
		m.groupsClaim = claim
	}
}

func WithUnauthorizedPolicy(policy config.UnauthorizedPolicy) ManagerOption {
	return func(m *Manager) {
		m.unauthorizedPolicy = policy
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSessionConfig applies every session setting from cfg.
func WithSessionConfig(cfg config.SessionConfig) ManagerOption {
	return func(m *Manager) {
		m.sessionDuration = cfg.GetSessionDuration()
		m.requiredGroup = cfg.GetRequiredGroup()
		m.groupsClaim = cfg.GetGroupsClaim()
		m.unauthorizedPolicy = cfg.GetUnauthorizedPolicy()
	}
}

// NewManager creates a Manager in the Unknown state. Call Initialize once at
// start up to restore an existing provider session.
func NewManager(provider identity.Provider, options ...ManagerOption) (*Manager, error) {
	if provider == nil {
		return nil, errors.New("[NewManager] identity provider is required")
	}

	m := &Manager{
		provider:           provider,
		logger:             log.Logger,
		nowTime:            time.Now,
		afterFunc:          realAfterFunc,
		sessionDuration:    defaultSessionDuration,
		groupsClaim:        "cognito:groups",
		unauthorizedPolicy: config.UnauthorizedClearSession,
		state:              StateUnknown,
		notices:            newNoticeBroker(),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.sessionDuration <= 0 {
		return nil, errors.New("[NewManager] session duration must be positive")
	}
	m.logger = m.logger.With().Str("component", "session").Logger()
	return m, nil
}

// Initialize asks the provider whether a user is already signed in. It runs
// at most once; later calls return the current state without a provider call.
func (m *Manager) Initialize(ctx context.Context) State {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	if m.initialized {
		return m.State()
	}
	m.initialized = true

	if err := m.establishSession(ctx, false); err != nil {
		m.logger.Info().Err(err).Msg("no existing session")
	}
	return m.State()
}

// Login signs the user in. On success the manager is either Authenticated or,
// when the provider demands a new password, PasswordChangeRequired.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return &AuthenticationError{Message: "email and password are required", Err: ErrInvalidRequest}
	}

	m.opLock.Lock()
	defer m.opLock.Unlock()
	m.initialized = true

	if m.State() == StateAuthenticated {
		return &AuthenticationError{Message: "a user is already signed in", Err: ErrAlreadySignedIn}
	}

	result, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		m.toAnonymous()
		m.logger.Info().Str("email", email).Msg("sign in rejected")
		return &AuthenticationError{Message: identity.Message(err), Err: err}
	}

	if result.Step == identity.StepNewPasswordRequired {
		if result.Challenge.IsZero() {
			m.toAnonymous()
			return &AuthenticationError{Message: "identity provider returned an empty challenge", Err: ErrChallengeRejected}
		}
		m.mu.Lock()
		m.challenge = result.Challenge
		m.setStateLocked(StatePasswordChangeRequired)
		m.mu.Unlock()
		return nil
	}

	return m.establishSession(ctx, true)
}

// CompleteNewPassword answers the provider's new password challenge.
func (m *Manager) CompleteNewPassword(ctx context.Context, newPassword, confirmation string) error {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	m.mu.RLock()
	challenge := m.challenge
	state := m.state
	m.mu.RUnlock()

	if state != StatePasswordChangeRequired || challenge.IsZero() {
		return &ChallengeError{Kind: NoActiveChallenge, Message: "there is no password change in progress"}
	}

	if err := ValidatePasswordChange(newPassword, confirmation); err != nil {
		return err
	}

	err := m.provider.ConfirmNewPassword(ctx, challenge, newPassword)

	// The challenge is single use whatever the provider answered.
	m.mu.Lock()
	m.challenge = identity.ChallengeHandle{}
	m.mu.Unlock()

	if err != nil {
		m.toAnonymous()
		return &ChallengeError{Kind: ChallengeRejected, Message: identity.Message(err), Err: err}
	}

	return m.establishSession(ctx, true)
}

// Cancel abandons a pending password change challenge.
func (m *Manager) Cancel(ctx context.Context) {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	if m.State() != StatePasswordChangeRequired {
		return
	}
	m.toAnonymous()
	m.signOutQuietly(ctx)
}

// Logout ends the session. It is idempotent and never fails; provider errors
// are logged because the user can do nothing about them.
func (m *Manager) Logout(ctx context.Context) {
	m.opLock.Lock()
	defer m.opLock.Unlock()
	m.initialized = true

	state := m.State()
	wasSignedIn := state == StateAuthenticated || state == StatePasswordChangeRequired
	m.toAnonymous()
	m.signOutQuietly(ctx)
	if wasSignedIn {
		m.notices.publish(NoticeSignedOut)
	}
}

// AuthToken returns the current access token, or false when nobody is
// signed in. It never fails: callers decide how to react to a missing token.
func (m *Manager) AuthToken(ctx context.Context) (string, bool) {
	m.mu.RLock()
	if m.state != StateAuthenticated || m.session == nil {
		m.mu.RUnlock()
		return "", false
	}
	now := m.nowTime()
	if !now.Before(m.session.ExpiresAt) {
		m.mu.RUnlock()
		return "", false
	}
	cached := *m.session
	generation := m.generation
	m.mu.RUnlock()

	// The provider may have refreshed the access token since the session started.
	tokens, err := m.provider.CurrentSession(ctx)
	if err == nil && tokens.Valid(now) {
		m.mu.Lock()
		if m.generation == generation && m.session != nil {
			m.session.AccessToken = tokens.AccessToken
			m.session.TokenExpiresAt = tokens.ExpiresAt
		}
		m.mu.Unlock()
		return tokens.AccessToken, true
	}

	// The provider no longer knows the user, so the cached token is void.
	if errors.Is(err, identity.ErrNoCurrentUser) {
		m.dropSession(generation)
		return "", false
	}

	if cached.TokenExpiresAt.IsZero() || now.Before(cached.TokenExpiresAt) {
		return cached.AccessToken, true
	}
	return "", false
}

// ForgotPassword asks the provider to send a verification code to email.
func (m *Manager) ForgotPassword(ctx context.Context, email string) (identity.CodeDelivery, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return identity.CodeDelivery{}, &PasswordResetError{Phase: ResetRequest, Message: "email is required", Err: ErrInvalidRequest}
	}

	delivery, err := m.provider.ForgotPassword(ctx, email)
	if err != nil {
		return identity.CodeDelivery{}, &PasswordResetError{Phase: ResetRequest, Message: identity.Message(err), Err: err}
	}
	m.logger.Info().Str("medium", delivery.DeliveryMedium).Msg("password reset code dispatched")
	return delivery, nil
}

// ResetPasswordConfirm sets a new password using the emailed verification code.
// The password policy is checked before the provider is contacted.
func (m *Manager) ResetPasswordConfirm(ctx context.Context, email, code, newPassword, confirmation string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return &PasswordResetError{Phase: ResetConfirm, Message: "email and verification code are required", Err: ErrInvalidRequest}
	}
	if err := ValidatePasswordChange(newPassword, confirmation); err != nil {
		return err
	}

	if err := m.provider.ConfirmForgotPassword(ctx, email, code, newPassword); err != nil {
		return &PasswordResetError{Phase: ResetConfirm, Message: identity.Message(err), Err: err}
	}
	return nil
}

// HandleUnauthorized is called when the REST backend rejects the token. What
// happens depends on the configured unauthorized policy.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	if m.unauthorizedPolicy == config.UnauthorizedIgnore {
		m.logger.Warn().Msg("backend rejected the access token; keeping session by policy")
		return
	}

	m.opLock.Lock()
	defer m.opLock.Unlock()

	if m.State() == StateAnonymous {
		return
	}
	m.toAnonymous()
	m.signOutQuietly(ctx)
	m.notices.publish(NoticeAuthenticationRequired)
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// CurrentSession returns a copy of the active session.
func (m *Manager) CurrentSession() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated || m.session == nil {
		return Session{}, false
	}
	s := *m.session
	s.Groups = append([]string(nil), m.session.Groups...)
	return s, true
}

// Subscribe returns a channel receiving session notices and a function that
// stops the subscription.
func (m *Manager) Subscribe() (<-chan Notice, func()) {
	return m.notices.subscribe()
}

// LastNotice returns the most recent notice, if any.
func (m *Manager) LastNotice() (Notice, bool) {
	return m.notices.last()
}

// establishSession confirms the provider's current principal and token and
// moves to Authenticated. Any failure leaves the manager Anonymous, and a user
// who has just signed in is signed out of the provider again.
// opLock must be held.
func (m *Manager) establishSession(ctx context.Context, afterSignIn bool) error {
	session, err := m.loadSession(ctx)
	if err != nil {
		m.toAnonymous()
		groupDenied := errors.Is(err, ErrGroupMembershipRequired)
		if groupDenied || afterSignIn {
			m.signOutQuietly(ctx)
		}
		if groupDenied {
			return &AuthenticationError{Message: "user is not a member of the " + m.requiredGroup + " group", Err: err}
		}
		return &AuthenticationError{Message: identity.Message(errors.Cause(err)), Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.session = session
	m.challenge = identity.ChallengeHandle{}
	m.armTimerLocked(m.generation)
	m.setStateLocked(StateAuthenticated)
	return nil
}

func (m *Manager) loadSession(ctx context.Context) (*Session, error) {
	principal, err := m.provider.CurrentUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.loadSession] CurrentUser")
	}

	tokens, err := m.provider.CurrentSession(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.loadSession] CurrentSession")
	}

	now := m.nowTime()
	if !tokens.Valid(now) {
		return nil, errors.Wrap(ErrSessionExpired, "[Manager.loadSession] token")
	}

	groups, err := GroupsFromToken(tokens.AccessToken, m.groupsClaim)
	if err != nil || len(groups) == 0 {
		// Some providers only put groups on the ID token.
		if idGroups, idErr := GroupsFromToken(tokens.IDToken, m.groupsClaim); idErr == nil {
			groups = idGroups
		}
	}

	if m.requiredGroup != "" && !hasGroup(groups, m.requiredGroup) {
		return nil, errors.Wrapf(ErrGroupMembershipRequired, "[Manager.loadSession] %s", m.requiredGroup)
	}

	return &Session{
		Username:       principal.Username,
		Email:          principal.Email,
		Groups:         groups,
		AccessToken:    tokens.AccessToken,
		TokenExpiresAt: tokens.ExpiresAt,
		CreatedAt:      now,
		ExpiresAt:      now.Add(m.sessionDuration),
	}, nil
}

// armTimerLocked replaces any running expiry timer. mu must be held.
func (m *Manager) armTimerLocked(generation uint64) {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.afterFunc(m.sessionDuration, func() {
		m.expire(generation)
	})
}

func (m *Manager) expire(generation uint64) {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	m.mu.Lock()
	if generation != m.generation || m.state != StateAuthenticated {
		m.mu.Unlock()
		return
	}
	m.clearLocked()
	m.setStateLocked(StateAnonymous)
	m.mu.Unlock()

	m.logger.Info().Dur("after", m.sessionDuration).Msg("session expired")
	m.signOutQuietly(context.Background())
	m.notices.publish(NoticeSessionExpired)
}

// dropSession ends the session of generation after the provider reported that
// nobody is signed in.
func (m *Manager) dropSession(generation uint64) {
	m.opLock.Lock()
	defer m.opLock.Unlock()

	m.mu.Lock()
	if generation != m.generation || m.state != StateAuthenticated {
		m.mu.Unlock()
		return
	}
	m.clearLocked()
	m.setStateLocked(StateAnonymous)
	m.mu.Unlock()

	m.logger.Info().Msg("identity provider has no signed in user; session dropped")
	m.notices.publish(NoticeAuthenticationRequired)
}

func (m *Manager) toAnonymous() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
	m.setStateLocked(StateAnonymous)
}

// clearLocked drops the session and challenge and cancels the timer. mu must be held.
func (m *Manager) clearLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.generation++
	m.session = nil
	m.challenge = identity.ChallengeHandle{}
}

func (m *Manager) setStateLocked(state State) {
	if m.state == state {
		return
	}
	m.logger.Info().Str("from", string(m.state)).Str("to", string(state)).Msg("session state changed")
	m.state = state
}

func (m *Manager) signOutQuietly(ctx context.Context) {
	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("identity provider sign out failed")
	}
}
