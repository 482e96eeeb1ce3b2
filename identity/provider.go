// Package identity defines the contract between the console and the managed
// identity provider that issues its bearer tokens.
package identity

import (
	"context"
	"time"
)

// SignInStep tells the caller what the provider needs after a sign-in attempt.
type SignInStep string

const (
	// StepDone means the user is signed in and tokens are available.
	StepDone SignInStep = "DONE"
	// StepNewPasswordRequired means the user must set a new password before
	// the sign-in completes.
	StepNewPasswordRequired SignInStep = "NEW_PASSWORD_REQUIRED"
)

// ChallengeHandle is the provider's opaque reference to an in-flight sign-in
// challenge. It is only ever passed back to the provider.
type ChallengeHandle struct {
	value string
}

// NewChallengeHandle wraps a provider supplied challenge reference.
func NewChallengeHandle(value string) ChallengeHandle {
	return ChallengeHandle{value: value}
}

// Value returns the raw reference for providers that need to send it back.
func (h ChallengeHandle) Value() string {
	return h.value
}

// IsZero reports whether the handle is empty.
func (h ChallengeHandle) IsZero() bool {
	return h.value == ""
}

// SignInResult is the outcome of a successful (not rejected) sign-in call.
type SignInResult struct {
	Step      SignInStep
	Challenge ChallengeHandle // set when Step is StepNewPasswordRequired
}

// Principal is the currently signed-in user as reported by the provider.
type Principal struct {
	Username string // opaque provider user id
	Email    string
}

// Tokens holds the provider's current session credentials.
type Tokens struct {
	AccessToken string
	IDToken     string
	ExpiresAt   time.Time
}

// Valid reports whether the access token is present and not yet expired at now.
func (t Tokens) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}

// CodeDelivery describes where a password reset code was sent.
type CodeDelivery struct {
	Destination    string `json:"destination,omitempty"` // masked, e.g. a***@example.com
	DeliveryMedium string `json:"delivery_medium,omitempty"`
}

// Provider is the set of identity operations the session manager relies on.
type Provider interface {
	SignIn(ctx context.Context, username, password string) (SignInResult, error)
	ConfirmNewPassword(ctx context.Context, challenge ChallengeHandle, newPassword string) error
	CurrentUser(ctx context.Context) (Principal, error)
	CurrentSession(ctx context.Context) (Tokens, error)
	SignOut(ctx context.Context) error
	ForgotPassword(ctx context.Context, username string) (CodeDelivery, error)
	ConfirmForgotPassword(ctx context.Context, username, code, newPassword string) error
}
