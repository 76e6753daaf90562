package errors

const (
	HttpInternalError       = "internal_error"
	HttpInvalidRequestError = "invalid_request"
	HttpInvalidDayError     = "invalid_day"
	HttpDayNotFoundError    = "day_not_found"
	HttpWriteConflictError  = "write_conflict"
)

// ErrorResponse is the error response body for API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
