// Package http provides the JSON API of the chore board.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the mapping from service errors to HTTP status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"choreboard/internal/core"
	"choreboard/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// errorBody is the payload of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// StatusForError maps service and domain errors to a status code.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNameTooLong),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrChildNotFound),
		errors.Is(err, core.ErrCategoryNotFound),
		errors.Is(err, services.ErrUnknownDeletionToken):
		return http.StatusNotFound
	case errors.Is(err, services.ErrArchiveInProgress),
		errors.Is(err, services.ErrArchiveNotStarted),
		errors.Is(err, services.ErrArchiveNotConfirmed),
		errors.Is(err, services.ErrUnsavedChanges),
		errors.Is(err, core.ErrDuplicateCategory):
		return http.StatusConflict
	case errors.Is(err, services.ErrPersistenceDisabled),
		errors.Is(err, services.ErrNotLoaded),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorFrom builds the error response for err. Unexpected errors are not
// echoed to the client.
func ErrorFrom(err error) *JSONResponseBuilder {
	code := StatusForError(err)
	if code == http.StatusInternalServerError {
		return InternalServerError("internal error")
	}
	return ErrorResponse(code, err.Error())
}
