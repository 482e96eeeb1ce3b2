package errors

import "errors"

// Common error values for the admin console core
var (
	// Authentication errors
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAuthenticationRequired  = errors.New("authentication required")
	ErrGroupMembershipRequired = errors.New("required group membership missing")
	ErrSessionExpired          = errors.New("session expired")
	ErrAlreadySignedIn         = errors.New("a user is already signed in")

	// Challenge errors
	ErrNoActiveChallenge = errors.New("no active challenge")
	ErrChallengeRejected = errors.New("challenge rejected")

	// Password errors
	ErrPasswordPolicy   = errors.New("password policy violation")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordReset    = errors.New("password reset failed")

	// Mutation errors
	ErrTransactionStep    = errors.New("transaction step failed")
	ErrRollbackIncomplete = errors.New("rollback incomplete")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
)
