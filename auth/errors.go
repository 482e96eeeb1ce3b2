package auth

import (
	"strings"

	errs "github.com/jrsteele09/go-admin-console/internal/errors"
)

var (
	ErrInvalidCredentials      = errs.ErrInvalidCredentials
	ErrAuthenticationRequired  = errs.ErrAuthenticationRequired
	ErrGroupMembershipRequired = errs.ErrGroupMembershipRequired
	ErrSessionExpired          = errs.ErrSessionExpired
	ErrNoActiveChallenge       = errs.ErrNoActiveChallenge
	ErrChallengeRejected       = errs.ErrChallengeRejected
	ErrPasswordPolicy          = errs.ErrPasswordPolicy
	ErrPasswordMismatch        = errs.ErrPasswordMismatch
	ErrPasswordReset           = errs.ErrPasswordReset
	ErrInvalidRequest          = errs.ErrInvalidRequest
	ErrAlreadySignedIn         = errs.ErrAlreadySignedIn
)

// AuthenticationError is returned when a sign-in is rejected or the signed in
// identity cannot be confirmed. Message is the provider's text when one exists.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ChallengeKind distinguishes the two ways completing a challenge can fail.
type ChallengeKind string

const (
	NoActiveChallenge ChallengeKind = "no_active_challenge"
	ChallengeRejected ChallengeKind = "challenge_rejected"
)

// ChallengeError is returned by CompleteNewPassword.
type ChallengeError struct {
	Kind    ChallengeKind
	Message string
	Err     error
}

func (e *ChallengeError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *ChallengeError) Unwrap() []error {
	kind := ErrChallengeRejected
	if e.Kind == NoActiveChallenge {
		kind = ErrNoActiveChallenge
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// PasswordPolicyViolation lists every rule a candidate password failed. It is
// produced locally and never involves the identity provider.
type PasswordPolicyViolation struct {
	Failures []string
	Mismatch bool
}

func (v *PasswordPolicyViolation) Error() string {
	return "password policy violation: " + strings.Join(v.Failures, "; ")
}

func (v *PasswordPolicyViolation) Unwrap() []error {
	if v.Mismatch {
		return []error{ErrPasswordPolicy, ErrPasswordMismatch}
	}
	return []error{ErrPasswordPolicy}
}

// ResetPhase is the stage of the forgot password flow that failed.
type ResetPhase string

const (
	ResetRequest ResetPhase = "request"
	ResetConfirm ResetPhase = "confirm"
)

// PasswordResetError wraps a provider failure during ForgotPassword or
// ResetPasswordConfirm.
type PasswordResetError struct {
	Phase   ResetPhase
	Message string
	Err     error
}

func (e *PasswordResetError) Error() string {
	return "password reset " + string(e.Phase) + " failed: " + e.Message
}

func (e *PasswordResetError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPasswordReset}
	}
	return []error{ErrPasswordReset, e.Err}
}
