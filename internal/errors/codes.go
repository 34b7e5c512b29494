package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Resource errors
	ErrAlreadyRunning    ErrorCode = "already_running"
	ErrResourceBusy      ErrorCode = "resource_busy"
	ErrResourceNotFound  ErrorCode = "resource_not_found"
	ErrResourceExhausted ErrorCode = "resource_exhausted"

	// Operation errors
	ErrOperationFailed  ErrorCode = "operation_failed"
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrInvalidOperation ErrorCode = "invalid_operation"

	// Session errors
	ErrSessionNotFound ErrorCode = "session_not_found"
	ErrSessionEnded    ErrorCode = "session_ended"

	// Threshold errors
	ErrInvalidThresholds ErrorCode = "invalid_thresholds"

	// Collection errors
	ErrInitSource     ErrorCode = "init_source_failed"
	ErrCollectSample  ErrorCode = "collect_sample_failed"
	ErrInvalidSample  ErrorCode = "invalid_sample"
	ErrCollectorStall ErrorCode = "collector_stalled"

	// Export errors
	ErrExportFailed      ErrorCode = "export_failed"
	ErrUnsupportedFormat ErrorCode = "unsupported_export_format"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrNotImplemented:    "Operation not implemented",
	ErrUnavailable:       "Service unavailable",
	ErrInvalidConfig:     "Invalid configuration",
	ErrMissingConfig:     "Missing configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read configuration",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrResourceBusy:      "Resource is busy",
	ErrResourceNotFound:  "Resource not found",
	ErrResourceExhausted: "Resource exhausted",
	ErrOperationFailed:   "Operation failed",
	ErrTimeout:           "Operation timed out",
	ErrInvalidOperation:  "Invalid operation",
	ErrSessionNotFound:   "Session not found",
	ErrSessionEnded:      "Session has ended",
	ErrInvalidThresholds: "Invalid threshold set",
	ErrInitSource:        "Failed to initialize metric source",
	ErrCollectSample:     "Failed to collect metric sample",
	ErrInvalidSample:     "Invalid metric sample",
	ErrCollectorStall:    "Custom metric collector stalled",
	ErrExportFailed:      "Failed to export performance data",
	ErrUnsupportedFormat: "Unsupported export format",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
