package errors

const (
	HttpInternalError         = "internal_error"
	HttpInvalidJsonError      = "invalid_json"
	HttpInvalidEventError     = "invalid_event"
	HttpInvalidQueryError     = "invalid_query"
	HttpUnknownMetricError    = "unknown_metric"
	HttpUnknownConditionError = "unknown_condition"
	HttpStorageDisabledError  = "storage_disabled"
)

// ErrorResponse is the error response body of every HTTP API.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
