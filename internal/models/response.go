// Package models - HTTP response types for the webhook listener.
package models

import (
	"time"
)

// ErrorResponse is the JSON body returned when the webhook rejects a post.
type ErrorResponse struct {
	Error     string    `json:"error"`                // Always "error"
	Message   string    `json:"message"`              // Human-readable description
	Code      string    `json:"code,omitempty"`       // Machine-readable error code
	Timestamp time.Time `json:"timestamp"`            // When the error occurred
	RequestID string    `json:"request_id,omitempty"` // Correlates with logs
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Error codes returned by the webhook.
const (
	ErrorCodeBadRequest    = "BAD_REQUEST"         // 400: body is not a OneBot event
	ErrorCodeUnauthorized  = "UNAUTHORIZED"        // 401: missing or wrong signature
	ErrorCodeRateLimited   = "RATE_LIMIT_EXCEEDED" // 429: ingress throttle hit
	ErrorCodeInternalError = "INTERNAL_ERROR"      // 500: handler panicked
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}
