package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// API error codes.
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// GraphNode is one vertex in the relationship graph view: the subject or one
// of its counterparts.
type GraphNode struct {
	Userkey     string `json:"userkey"`
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Score       *int   `json:"score,omitempty"`
	Subject     bool   `json:"subject,omitempty"`
}

// GraphEdge is one subject-to-counterpart relationship in the graph view.
type GraphEdge struct {
	Counterpart        string   `json:"counterpart"`
	Given              bool     `json:"given"`
	Received           bool     `json:"received"`
	Reciprocal         bool     `json:"reciprocal"`
	QuickReciprocation bool     `json:"quick_reciprocation"`
	TimeDifferenceDays *float64 `json:"time_difference_days,omitempty"`
}

// RelationshipGraph is the nodes/edges payload behind the force-directed
// graph view. Derived entirely from one stored analysis.
type RelationshipGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
