package config

import (
	"slices"
	"strings"
)

type Cors struct{}

var _ CorsConfig = Cors{}

// AllowedOrigins is a set of normalised origins ("scheme://host[:port]").
type AllowedOrigins map[string]struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[normaliseOrigin(origin)]
	return ok
}

func (a AllowedOrigins) String() string {
	origins := make([]string, 0, len(a))
	for o := range a {
		origins = append(origins, o)
	}
	slices.Sort(origins)
	return strings.Join(origins, ", ")
}

// Browsers send Origin without a trailing slash and with a lower-case host.
func normaliseOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}

// GetAllowedOrigins reads CORS_ALLOWED_ORIGINS as a comma separated list.
func (Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, o := range strings.Split(GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if o = normaliseOrigin(o); o != "" {
			origins[o] = struct{}{}
		}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, PUT, PATCH, DELETE"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization, HX-Request"
}
