package identity

import (
	"errors"
	"fmt"
)

// ErrNoCurrentUser is returned by CurrentUser and CurrentSession when nobody is signed in.
var ErrNoCurrentUser = errors.New("no current user")

// Provider error codes. Providers may return other codes; these are the ones
// the console reacts to.
const (
	CodeNotAuthorized    = "NotAuthorizedException"
	CodeUserNotFound     = "UserNotFoundException"
	CodeTooManyRequests  = "TooManyRequestsException"
	CodeInvalidPassword  = "InvalidPasswordException"
	CodeCodeMismatch     = "CodeMismatchException"
	CodeExpiredCode      = "ExpiredCodeException"
	CodeInvalidParameter = "InvalidParameterException"
	CodeChallengeExpired = "ChallengeExpiredException"
	CodeNetwork          = "NetworkError"
)

// ProviderError carries the provider's own code and message so that they can be
// shown to the user verbatim.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Message returns the human readable provider message in err, or err.Error()
// when err is not a ProviderError.
func Message(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
