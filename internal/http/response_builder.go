// Package http exposes the directory and the budget tracker as a JSON API.
//
// This file implements the Builder Pattern for constructing JSON responses
// and maps domain errors onto status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"yesan/internal/amqp"
	"yesan/internal/core"
	"yesan/internal/csvio"
	"yesan/internal/directory"
	"yesan/internal/mirror"
	"yesan/internal/sheets"
	"yesan/internal/storage"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes no content.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

var validationErrors = []error{
	core.ErrMissingDate,
	core.ErrInvalidDate,
	core.ErrMissingCategory,
	core.ErrUnknownCategory,
	core.ErrInvalidAmount,
	core.ErrDescriptionTooLong,
	core.ErrInvalidDataURL,
	csvio.ErrMalformed,
	errInvalidInput,
}

// StatusFor maps an error returned by the services onto an HTTP status.
func StatusFor(err error) int {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, directory.ErrBadSecret):
		return http.StatusUnauthorized
	case errors.Is(err, mirror.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, mirror.ErrDisabled),
		errors.Is(err, directory.ErrNotLoaded),
		errors.Is(err, directory.ErrNoSecret),
		errors.Is(err, amqp.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, sheets.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorFor builds the response for err. Internal failures get a generic
// message; the detail only goes to the log.
func ErrorFor(err error) *ResponseBuilder {
	code := StatusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	return ErrorResponse(code, msg)
}

func MethodNotAllowedError(allowedMethods string) *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Header("Allow", allowedMethods)
}
