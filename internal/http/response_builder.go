// Package http implements the dev server: a REST backend over SQLite that
// answers every request with the same envelope the client expects.
//
// This file implements the builder for envelope responses.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	applog "finflow/internal/log"
)

// Envelope is the body of every dev server response.
type Envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// EnvelopeBuilder provides a fluent API for building envelope responses.
type EnvelopeBuilder struct {
	statusCode int
	message    string
	data       any
	headers    map[string]string
	now        func() time.Time
}

// NewEnvelope creates a successful 200 response builder.
func NewEnvelope() *EnvelopeBuilder {
	return &EnvelopeBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
		now:        time.Now,
	}
}

// Status sets the HTTP status code. Codes of 400 and above mark the
// envelope unsuccessful.
func (b *EnvelopeBuilder) Status(code int) *EnvelopeBuilder {
	b.statusCode = code
	return b
}

// Message sets the human readable message.
func (b *EnvelopeBuilder) Message(msg string) *EnvelopeBuilder {
	b.message = msg
	return b
}

// Data sets the payload.
func (b *EnvelopeBuilder) Data(v any) *EnvelopeBuilder {
	b.data = v
	return b
}

// Header adds a custom header to the response.
func (b *EnvelopeBuilder) Header(name, value string) *EnvelopeBuilder {
	b.headers[name] = value
	return b
}

// Write sends the envelope for request r.
func (b *EnvelopeBuilder) Write(w http.ResponseWriter, r *http.Request) {
	env := Envelope{
		Success:   b.statusCode < 400,
		Message:   b.message,
		Data:      b.data,
		Path:      r.URL.Path,
		Timestamp: b.now().UTC().Format(time.RFC3339),
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)

	if err := json.NewEncoder(w).Encode(env); err != nil {
		applog.FromContext(r.Context()).Error("Failed to encode response", applog.FieldError, err)
	}
}

// OK writes data with status 200.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	NewEnvelope().Data(data).Write(w, r)
}

// Created writes data with status 201.
func Created(w http.ResponseWriter, r *http.Request, msg string, data any) {
	NewEnvelope().Status(http.StatusCreated).Message(msg).Data(data).Write(w, r)
}

// ErrorResponse creates an unsuccessful envelope with no data.
func ErrorResponse(statusCode int, message string) *EnvelopeBuilder {
	return NewEnvelope().Status(statusCode).Message(message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *EnvelopeBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// ForbiddenError creates a 403 Forbidden error response.
func ForbiddenError(message string) *EnvelopeBuilder {
	return ErrorResponse(http.StatusForbidden, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *EnvelopeBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *EnvelopeBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *EnvelopeBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// TooManyRequestsError creates a 429 response asking the client to retry
// after a minute.
func TooManyRequestsError() *EnvelopeBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		Header("Retry-After", "60")
}
