package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	SessionConfig
	BackendConfig
	IdentityConfig
	RedisConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetLogLevel() string
	GetWorkspaceIdleTimeout() time.Duration
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Session
	Backend
	Identity
	Redis
}

func New() Config {
	return mainConfig{}
}
