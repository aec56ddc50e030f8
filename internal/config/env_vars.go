package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	baseURLVar     = "BASE_URL"
	logLevelEnvVar = "LOG_LEVEL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "My Portal")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the public URL of the portal (e.g., "https://portal.example.com").
// The OAuth redirect URI is derived from it.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

func (e EnvVars) GetLogLevel() string {
	if e.GetEnv() == "DEV" {
		return GetEnv(logLevelEnvVar, "debug")
	}
	return GetEnv(logLevelEnvVar, "info")
}

// GetWorkspaceIdleTimeout is how long a session's in-memory resource lists are kept
// without being touched.
func (EnvVars) GetWorkspaceIdleTimeout() time.Duration {
	return GetDuration("WORKSPACE_IDLE_TIMEOUT", time.Hour)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration parses a time.Duration from the environment, falling back to the
// default when unset or malformed.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warn().Str("var", envVar).Str("value", value).Msg("invalid duration, using default")
		return defaultValue
	}
	return d
}

// GetBool parses a boolean from the environment, falling back to the default when
// unset or malformed.
func GetBool(envVar string, defaultValue bool) bool {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", value).Msg("invalid boolean, using default")
		return defaultValue
	}
	return b
}
