package httpext

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json"

// ErrorResponse represents a standardised JSON error response
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Redirect         string `json:"redirect,omitempty"`
}

// JsonError writes a JSON error response with the specified status code
func JsonError(w http.ResponseWriter, message string, code int) {
	JsonErrorWithDetails(w, code, ErrorResponse{Error: message})
}

// JsonErrorWithDetails writes a detailed JSON error response
func JsonErrorWithDetails(w http.ResponseWriter, code int, body ErrorResponse) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("Failed to encode error response")
	}
}

// Json writes v as a JSON body with the given status code
func Json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)

	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("Failed to encode response")
	}
}

// DecodeJson reads a JSON request body into v, rejecting unknown fields.
func DecodeJson(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
