package config

import "strings"

type IdentityConfig interface {
	GetIssuer() string
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetIssuer() string {
	return strings.TrimRight(GetEnv("IDP_ISSUER", ""), "/")
}

func (Identity) GetClientID() string {
	return GetEnv("IDP_CLIENT_ID", "")
}

func (Identity) GetClientSecret() string {
	return GetEnv("IDP_CLIENT_SECRET", "")
}

func (Identity) GetScopes() []string {
	return strings.Fields(GetEnv("IDP_SCOPES", "openid email profile"))
}
