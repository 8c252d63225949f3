// Package http exposes the JSON API.
//
// This file implements a small builder for JSON and file responses and the
// mapping from service errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"spendly/internal/core"
	applog "spendly/internal/log"
)

// ResponseBuilder provides a fluent API for building API responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       []byte
	err        error
}

// NewResponse creates a builder with a default 200 status.
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

// JSON sets v, encoded as JSON, as the body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.headers["Content-Type"] = "application/json"
	b.body, b.err = json.Marshal(v)
	return b
}

// File sets a download body with the given content type and attachment name.
func (b *ResponseBuilder) File(content []byte, contentType, filename string) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.headers["Content-Disposition"] = `attachment; filename="` + filename + `"`
	b.body = content
	return b
}

// Image sets an inline image body.
func (b *ResponseBuilder) Image(content []byte, contentType string) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.body = content
	return b
}

// Write sends the built response. An encoding failure becomes a 500.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
		return
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a {"error": message} response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func MethodNotAllowedError() *ResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed")
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the client message of err. Server-side failures
// are logged with full detail and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	status := StatusFor(err)
	logger := applog.FromContext(ctx)

	msg := core.Message(err)
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, applog.ComponentHTTP, op,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", ""))
		msg = "Internal server error"
	} else {
		logger.DebugContext(ctx, "Request rejected", applog.FieldOperation, op, applog.FieldError, err.Error(), applog.FieldStatusCode, status)
	}
	ErrorResponse(status, msg).Write(w)
}
