package backend

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-portal-server/internal/errors"
)

// APIError is returned for any non-2xx backend response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP error! status: %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP error! status: %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, errors.ErrUnauthorized) match a 401 and errors.ErrNotFound a 404.
func (e *APIError) Is(target error) bool {
	switch target {
	case errors.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case errors.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case errors.ErrInvalidInput:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// IsUnauthorized reports whether err carries a backend 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, errors.ErrUnauthorized)
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
