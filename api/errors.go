package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/odyzzey/zk-accumulator-demo/log"
)

// ErrorResponse is the body of every error answer of the API, e.g.
// {"error":"contract not found: 0a1b","code":40007}.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Error is an API failure: a stable code, the HTTP status it is answered
// with and the underlying error.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

func (e Error) Error() string {
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// Is matches any Error with the same code, whatever detail was added to it.
func (e Error) Is(target error) bool {
	var t Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Response returns the body written for e.
func (e Error) Response() ErrorResponse {
	return ErrorResponse{Error: e.Error(), Code: e.Code}
}

// MarshalJSON encodes e as its ErrorResponse. The HTTP status is not part
// of the body.
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Response())
}

// Write answers the request with the status and the body of e.
func (e Error) Write(w http.ResponseWriter) {
	log.Debugw("api error", "error", e.Error(), "code", e.Code, "status", e.HTTPstatus)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPstatus)
	if err := json.NewEncoder(w).Encode(e.Response()); err != nil {
		log.Warnw("failed to write api error", "error", err.Error())
	}
}

// With returns a copy of e with the detail appended to its message.
func (e Error) With(detail string) Error {
	e.Err = fmt.Errorf("%w: %s", e.Err, detail)
	return e
}

// Withf is With with a formatted detail.
func (e Error) Withf(format string, args ...any) Error {
	return e.With(fmt.Sprintf(format, args...))
}

// WithErr is With with the message of err as detail.
func (e Error) WithErr(err error) Error {
	return e.With(err.Error())
}
