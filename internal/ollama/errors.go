// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// CLIENT ERRORS
// =============================================================================

// ClientError represents a failure that did not produce an HTTP status:
// connection refused, timeout, cancellation, or an unreadable body.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeCanceled
	ErrTypeInvalidResponse
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeCanceled:
		return "canceled"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrUnauthorized = errors.New("authentication required")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// transportError classifies an error returned by http.Client.Do or by a
// body read.
func transportError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return &ClientError{Type: ErrTypeCanceled, Message: "request canceled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	default:
		return &ClientError{Type: ErrTypeConnection, Message: "gateway request failed", Cause: err}
	}
}

// IsCanceled checks if an error is a cancellation.
func IsCanceled(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeCanceled
	}
	return errors.Is(err, context.Canceled)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// =============================================================================
// STATUS ERRORS
// =============================================================================

// AuthError is returned for 401 responses.
type AuthError struct {
	Body string
}

func (e *AuthError) Error() string {
	return strings.TrimSpace(fmt.Sprintf("%d %s", http.StatusUnauthorized, e.Body))
}

// Is allows AuthError to be compared with ErrUnauthorized.
func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

// RateLimitError is returned for 429 responses.
type RateLimitError struct {
	// ResetAt is when the quota resets. Zero when the body did not say.
	ResetAt time.Time
	Body    string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if !e.ResetAt.IsZero() {
		return fmt.Sprintf("%d rate limit exceeded, resets at %s",
			http.StatusTooManyRequests, e.ResetAt.Local().Format("15:04:05"))
	}
	return fmt.Sprintf("%d rate limit exceeded", http.StatusTooManyRequests)
}

// Is allows RateLimitError to be compared with ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// HTTPError is returned for any other non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return strings.TrimSpace(fmt.Sprintf("%d %s", e.StatusCode, e.Body))
}

// statusError builds the typed error for a non-2xx response.
func statusError(code int, body []byte) error {
	text := strings.TrimSpace(string(body))
	switch code {
	case http.StatusUnauthorized:
		return &AuthError{Body: text}
	case http.StatusTooManyRequests:
		return &RateLimitError{ResetAt: parseResetAt(body), Body: text}
	default:
		return &HTTPError{StatusCode: code, Body: text}
	}
}

// parseResetAt reads an optional {"reset_at": <epoch seconds>} body.
func parseResetAt(body []byte) time.Time {
	var payload struct {
		ResetAt *float64 `json:"reset_at"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.ResetAt == nil || *payload.ResetAt <= 0 {
		return time.Time{}
	}
	return epochToTime(*payload.ResetAt)
}
