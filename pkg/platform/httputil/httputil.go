// Package httputil holds the JSON response helpers shared by handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"hmdamart/pkg/platform/sentinel"
)

// Error is an error with an explicit HTTP status and a stable code.
type Error struct {
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error without a cause.
func NewError(status int, code, description string) *Error {
	return &Error{Status: status, Code: code, Description: description}
}

// BadRequest is shorthand for a 400 with a description.
func BadRequest(description string) *Error {
	return NewError(http.StatusBadRequest, "bad_request", description)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err into a JSON error envelope. *Error values keep
// their status; sentinel errors map to 404, 409 and 503; anything else is a
// 500 whose description is not exposed.
func WriteError(w http.ResponseWriter, err error) {
	status, code, desc := http.StatusInternalServerError, "internal_error", ""

	var httpErr *Error
	switch {
	case errors.As(err, &httpErr):
		status, code, desc = httpErr.Status, httpErr.Code, httpErr.Description
	case errors.Is(err, sentinel.ErrNotFound):
		status, code, desc = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, sentinel.ErrConflict):
		status, code, desc = http.StatusConflict, "conflict", err.Error()
	case errors.Is(err, sentinel.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "unavailable"
	}

	body := map[string]string{"error": code}
	if desc != "" && status < http.StatusInternalServerError {
		body["error_description"] = desc
	}
	WriteJSON(w, status, body)
}
