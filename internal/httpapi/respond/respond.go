// Package respond holds the JSON writers and the error-to-status mapping
// shared by the four HTTP surfaces.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tinoosan/backoffice/internal/errs"
)

// JSON writes a JSON response with status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// detailResponse is the standard error payload across the suite.
type detailResponse struct {
	Detail string `json:"detail"`
}

// Detail writes the {"detail": ...} error payload. A 401 additionally carries
// the WWW-Authenticate challenge.
func Detail(w http.ResponseWriter, status int, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	JSON(w, status, detailResponse{Detail: detail})
}

// Error maps a service error to its HTTP status via the errs sentinels and
// writes the detail payload.
func Error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		Detail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrUnauthorized), errors.Is(err, errs.ErrInactiveUser):
		Detail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		Detail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrConflict):
		Detail(w, http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrUnavailable):
		Detail(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, errs.ErrInvalid),
		errors.Is(err, errs.ErrTooFewLines),
		errors.Is(err, errs.ErrInvalidAmount),
		errors.Is(err, errs.ErrUnbalanced),
		errors.Is(err, errs.ErrClosedPeriod),
		errors.Is(err, errs.ErrInactiveAccount):
		Detail(w, http.StatusBadRequest, err.Error())
	default:
		Detail(w, http.StatusInternalServerError, "internal error")
	}
}

// RequireJSON ensures the request carries Content-Type application/json.
// Writes 415 and returns false otherwise.
func RequireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		Detail(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	mime := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	if mime != "application/json" {
		Detail(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	return true
}

// Decode parses the JSON body into v, rejecting unknown fields. On failure it
// writes a 400 and returns false.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		Detail(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
