package config

import "time"

type HandoffConfig interface {
	GetReturnAllowlist() []string
	GetMagicLinkTTL() time.Duration
}

type Handoff struct{}

var _ HandoffConfig = Handoff{}

var defaultReturnAllowlist = []string{
	"chat.openai.com",
	"yourslimbuddy.netlify.app",
}

// GetReturnAllowlist returns the hosts the user may be sent back to after copying a token
func (Handoff) GetReturnAllowlist() []string {
	return GetEnvList("RETURN_ALLOWLIST", defaultReturnAllowlist)
}

func (Handoff) GetMagicLinkTTL() time.Duration {
	return durationEnv("MAGIC_LINK_TTL", 15*time.Minute)
}
