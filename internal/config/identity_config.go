package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type IdentityConfig interface {
	GetIdentityProvider() IdentityProvider
}

// IdentityProvider describes the hosted auth API the service delegates to.
type IdentityProvider struct {
	URL       string        `env:"IDENTITY_URL"`
	AnonKey   string        `env:"IDENTITY_ANON_KEY"`
	JWTSecret string        `env:"IDENTITY_JWT_SECRET"`
	JWKSURL   string        `env:"IDENTITY_JWKS_URL"`
	Audience  string        `env:"IDENTITY_AUDIENCE" envDefault:"authenticated"`
	Timeout   time.Duration `env:"IDENTITY_TIMEOUT"  envDefault:"10s"`
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetIdentityProvider() IdentityProvider {
	var cfg IdentityProvider
	if err := env.Parse(&cfg); err != nil {
		log.Err(err).Msg("Failed to parse identity provider config")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Audience == "" {
		cfg.Audience = "authenticated"
	}
	return cfg
}
