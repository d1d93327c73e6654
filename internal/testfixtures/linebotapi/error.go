package linebotapi

import "fmt"

// ErrorDetail is one entry of an error payload.
type ErrorDetail struct {
	Message  string `json:"message"`
	Property string `json:"property,omitempty"`
}

// ErrorResponse is the API's structured error payload.
type ErrorResponse struct {
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// APIError is returned for every non-2xx response. It carries the status
// code, the request ID, the parsed error payload when the body was parseable
// and the raw body either way.
type APIError struct {
	StatusCode int
	RequestID  string
	Response   *ErrorResponse
	RawBody    []byte
}

func (e *APIError) Error() string {
	if e.Response != nil && e.Response.Message != "" {
		return fmt.Sprintf("linebotapi: status %d: %s", e.StatusCode, e.Response.Message)
	}
	return fmt.Sprintf("linebotapi: unexpected status %d", e.StatusCode)
}
