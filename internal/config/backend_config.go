package config

import (
	"strings"
	"time"
)

type BackendConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
}

type Backend struct{}

var _ BackendConfig = Backend{}

// GetAPIBaseURL returns the backend REST API root without a trailing slash
// (e.g., "http://localhost:8000/api").
func (Backend) GetAPIBaseURL() string {
	return strings.TrimSuffix(GetEnv("API_BASE_URL", "http://localhost:8000/api"), "/")
}

func (Backend) GetAPITimeout() time.Duration {
	return GetDuration("API_TIMEOUT", 15*time.Second)
}
