// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

// Package respond writes the gateway's own JSON responses.
//
// Responses proxied from the backend are relayed byte for byte and never pass
// through here. This package is for everything the gateway originates:
// session info, health checks and errors such as validation failures,
// missing sessions or an unreachable backend.
package respond

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/validation"
)

// Error codes used in gateway-originated error bodies.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidation         = validation.CodeValidationError
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternal           = "INTERNAL_ERROR"
	CodeBadGateway         = "BACKEND_UNAVAILABLE"
	CodeUnavailable        = "SERVICE_UNAVAILABLE"
)

// APIResponse is the envelope for gateway-originated responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError is the error member of APIResponse.
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIMeta carries tracing metadata.
type APIMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// JSON writes data in a success envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	write(w, status, &APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			RequestID: logging.RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}

// Error writes an error envelope. Server-side failures (5xx) are logged
// with err; client errors are not.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	ErrorWithDetails(w, r, status, code, message, nil, err)
}

// ErrorWithDetails is Error with a details member.
func ErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}, err error) {
	requestID := logging.RequestIDFromContext(r.Context())
	if err != nil && status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().
			Err(err).
			Str("code", code).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Int("status", status).
			Msg("Request failed")
	}
	write(w, status, &APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
	})
}

// Validation writes a 400 VALIDATION_ERROR for a failed request body.
func Validation(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	var details interface{}
	if len(apiErr.Details) > 0 {
		details = apiErr.Details
	}
	ErrorWithDetails(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, details, nil)
}

func write(w http.ResponseWriter, status int, body *APIResponse) {
	data, err := json.Marshal(body)
	if err != nil {
		logging.Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// sanitizeLogValue escapes control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
