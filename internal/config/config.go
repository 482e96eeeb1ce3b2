package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	IdentityConfig
	SessionConfig
	APIConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	Identity
	Session
	API
}

func New() Config {
	return mainConfig{}
}
