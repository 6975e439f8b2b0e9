// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - Error codes for programmatic handling, messages for humans
// - Standardized pagination with metadata
// - RFC3339 timestamps for international compatibility
package models

import (
	"time"
)

type ItemResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ListItemsResponse struct {
	Items      []ItemResponse `json:"items"`
	TotalCount int            `json:"total_count"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
	HasMore    bool           `json:"has_more"`
}

type DeleteItemResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ErrorResponse provides structured error information.
//
// Error Categories:
// - Validation errors: Input format/constraint violations
// - Not found errors: Resource doesn't exist
// - Conflict errors: Resource already exists
// - Internal errors: Server-side issues
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

// RateLimitResponse is the body of a 429 response. Its shape is part of the
// public contract: clients key off error and retryAfter.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Metrics    map[string]interface{}     `json:"metrics,omitempty"`
}

type ComponentHealth struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
	StatusUnknown   = "unknown"   // Status indeterminate
)

// Standard HTTP Error Codes
//
// Error Code Strategy:
// - Upper-case with underscores for consistency
// - Maps to standard HTTP status codes
// - Machine-readable for client error handling
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeItemNotFound       = "ITEM_NOT_FOUND"      // 404: Item doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"     // 400: Invalid request data
	ErrorCodeValidation         = "VALIDATION_ERROR"    // 422: Input validation failed
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"  // 405: Route exists, method doesn't
	ErrorCodeConflict           = "CONFLICT"            // 409: Resource conflict
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Service temporarily down
)

// RateLimitErrorType is the error field of every 429 body.
const RateLimitErrorType = "Rate limit exceeded"

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewRateLimitResponse(message string, retryAfter int) *RateLimitResponse {
	return &RateLimitResponse{
		Error:      RateLimitErrorType,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

func (r *ItemResponse) FromItem(item *Item) {
	r.ID = item.ID
	r.Name = item.Name
	r.Description = item.Description
	r.Price = item.Price
	r.Quantity = item.Quantity
	r.CreatedAt = item.CreatedAt
	r.UpdatedAt = item.UpdatedAt
}

// NewListItemsResponse builds a page from items, which must already be the
// requested slice of the full result set.
func NewListItemsResponse(items []*Item, total, limit, offset int) *ListItemsResponse {
	resp := &ListItemsResponse{
		Items:      make([]ItemResponse, len(items)),
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    offset+len(items) < total,
	}
	for i, item := range items {
		resp.Items[i].FromItem(item)
	}
	return resp
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
		Metrics:    make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
	}
}

func (h *HealthCheckResponse) AddMetric(name string, value interface{}) {
	h.Metrics[name] = value
}
