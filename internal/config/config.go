package config

type Config interface {
	EnvConfig
	CorsConfig
	HandoffConfig
	SecurityConfig
	IdentityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Handoff
	Security
	Identity
}

func New() Config {
	return mainConfig{}
}
