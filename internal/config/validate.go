package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type snapshot struct {
	Port               string        `validate:"required,startswith=:"`
	APIBaseURL         string        `validate:"required,url"`
	APITimeout         time.Duration `validate:"gt=0"`
	Issuer             string        `validate:"required,url"`
	ClientID           string        `validate:"required"`
	SessionDuration    time.Duration `validate:"gt=0"`
	GroupsClaim        string        `validate:"required"`
	UnauthorizedPolicy string        `validate:"oneof=clear-session ignore"`
}

// Validate checks the values a running console needs before any network call is made.
func Validate(c Config) error {
	s := snapshot{
		Port:               c.GetPort(),
		APIBaseURL:         c.GetAPIBaseURL(),
		APITimeout:         c.GetAPITimeout(),
		Issuer:             c.GetIssuer(),
		ClientID:           c.GetClientID(),
		SessionDuration:    c.GetSessionDuration(),
		GroupsClaim:        c.GetGroupsClaim(),
		UnauthorizedPolicy: string(c.GetUnauthorizedPolicy()),
	}
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("[config.Validate] %w", err)
	}
	return nil
}
