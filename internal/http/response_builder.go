// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the mapping from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"budgetpro/internal/core"
	"budgetpro/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. Encoding failures are logged; the status
// line has already been sent by then.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter, r *http.Request) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", log.FieldError, err)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: errorDetail{Code: code, Message: message}})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "invalid_request", message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal", "internal server error")
}

var validationErrors = []error{
	core.ErrValidation,
	core.ErrInvalidLimit,
	core.ErrInvalidCursor,
	core.ErrInvalidCategory,
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrInvalidCurrency,
	core.ErrEmptyName,
	core.ErrEmptyAccessToken,
	core.ErrGroupMismatch,
}

// FromError maps a domain error onto a response. Unknown errors become 500
// and are logged with the request's logger.
func FromError(r *http.Request, err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrPeriodNotFound),
		errors.Is(err, core.ErrItemNotFound),
		errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrCategoryExists):
		return ErrorResponse(http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, core.ErrUnsupported):
		return ErrorResponse(http.StatusNotImplemented, "not_implemented", err.Error())
	case errors.Is(err, core.ErrProviderFailure):
		log.FromContext(r.Context()).WarnContext(r.Context(), "Provider failure", log.FieldError, err)
		return ErrorResponse(http.StatusBadGateway, "provider_failure", "transaction provider failed")
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return BadRequestError(err.Error())
		}
	}

	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldPath, r.URL.Path)
	return InternalServerError()
}

// MethodNotAllowedError creates a 405 response carrying the Allow header.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed").
		Header("Allow", allowedMethods)
}
