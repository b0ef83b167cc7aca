// Package api is the HTTP collaborator used by the domain services. Every
// backend response is wrapped in an Envelope.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Envelope is the response wrapper returned by the backend.
type Envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Path      string          `json:"path"`
	Timestamp string          `json:"timestamp"`
}

// Requester issues a request and returns the decoded envelope. A non-2xx
// status or an envelope with success=false is returned as an error.
type Requester interface {
	Request(ctx context.Context, method, path string, body any, query url.Values) (*Envelope, error)
}

// ErrUnsuccessful is returned when a 2xx envelope reports success=false.
var ErrUnsuccessful = errors.New("request unsuccessful")

// StatusError is a non-2xx transport result.
type StatusError struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotFoundOrForbidden reports whether err is a 404 or 403 response.
func IsNotFoundOrForbidden(err error) bool {
	code := StatusCode(err)
	return code == http.StatusNotFound || code == http.StatusForbidden
}

// Reason returns a human readable explanation of err suitable for user
// facing text.
func Reason(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		if se.Message != "" {
			return se.Message
		}
		return http.StatusText(se.StatusCode)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Call issues a request through r and decodes the envelope data into T.
func Call[T any](ctx context.Context, r Requester, method, path string, body any, query url.Values) (T, error) {
	var out T
	env, err := r.Request(ctx, method, path, body, query)
	if err != nil {
		return out, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return out, nil
}
