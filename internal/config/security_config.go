package config

import (
	"strconv"
	"time"
)

type SecurityConfig interface {
	GetCookieSecret() string
	GetTokenSlotMaxAge() time.Duration
	GetFlowCookieMaxAge() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

const devCookieSecret = "dev-only-cookie-secret-change-me"

// GetCookieSecret returns the secret the token slot is sealed with.
// Outside DEV an empty value is rejected by the server at startup.
func (Security) GetCookieSecret() string {
	if secret := GetEnv("COOKIE_SECRET", ""); secret != "" {
		return secret
	}
	if (EnvVars{}).GetEnv() == "DEV" {
		return devCookieSecret
	}
	return ""
}

// GetTokenSlotMaxAge is how long a saved token survives in the browser
func (Security) GetTokenSlotMaxAge() time.Duration {
	return durationEnv("TOKEN_SLOT_MAX_AGE", 30*24*time.Hour)
}

func (Security) GetFlowCookieMaxAge() time.Duration {
	return (Handoff{}).GetMagicLinkTTL()
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	// bare seconds
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
