package config

import "time"

// UnauthorizedPolicy decides what happens to the local session when the REST
// backend answers 401.
type UnauthorizedPolicy string

const (
	UnauthorizedClearSession UnauthorizedPolicy = "clear-session"
	UnauthorizedIgnore       UnauthorizedPolicy = "ignore"
)

type SessionConfig interface {
	GetSessionDuration() time.Duration
	GetRequiredGroup() string
	GetGroupsClaim() string
	GetUnauthorizedPolicy() UnauthorizedPolicy
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionDuration is the fixed lifetime of an authenticated session. It is
// not extended by API activity.
func (Session) GetSessionDuration() time.Duration {
	return GetDuration("SESSION_DURATION", time.Hour)
}

// GetRequiredGroup returns the group a user must belong to. Empty disables the gate.
func (Session) GetRequiredGroup() string {
	return GetEnv("REQUIRED_GROUP", "")
}

func (Session) GetGroupsClaim() string {
	return GetEnv("GROUPS_CLAIM", "cognito:groups")
}

func (Session) GetUnauthorizedPolicy() UnauthorizedPolicy {
	return UnauthorizedPolicy(GetEnv("UNAUTHORIZED_POLICY", string(UnauthorizedClearSession)))
}
