package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Governor construction errors
	ErrInitFailed             ErrorCode = "initialization_failed"
	ErrThresholdMisconfigured ErrorCode = "threshold_misconfigured"
	ErrUnknownMetric          ErrorCode = "unknown_metric"
	ErrInvalidProfile         ErrorCode = "invalid_profile"
	ErrInvalidRule            ErrorCode = "invalid_rule"
	ErrInvalidPacer           ErrorCode = "invalid_pacer_config"

	// Runtime errors
	ErrProfileNotFound ErrorCode = "profile_not_found"
	ErrApplyProfile    ErrorCode = "apply_profile_failed"
	ErrRuleAction      ErrorCode = "rule_action_failed"
	ErrExportReport    ErrorCode = "export_report_failed"
	ErrUnknownFormat   ErrorCode = "unknown_report_format"

	// Lifecycle errors
	ErrMainLoop        ErrorCode = "main_loop_failed"
	ErrShutdownFailed  ErrorCode = "shutdown_failed"
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrAlreadyRunning  ErrorCode = "already_running"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:               "Internal error occurred",
	ErrInvalidArgument:        "Invalid argument provided",
	ErrUnavailable:            "Service unavailable",
	ErrInvalidConfig:          "Invalid configuration",
	ErrReadConfig:             "Failed to read configuration",
	ErrBindFlags:              "Failed to bind flags",
	ErrInvalidLogLevel:        "Invalid log level",
	ErrInitFailed:             "Initialization failed",
	ErrThresholdMisconfigured: "Threshold warning bound is more extreme than its critical bound",
	ErrUnknownMetric:          "Unknown metric",
	ErrInvalidProfile:         "Invalid quality profile",
	ErrInvalidRule:            "Invalid optimization rule",
	ErrInvalidPacer:           "Invalid frame pacer configuration",
	ErrProfileNotFound:        "Quality profile not found",
	ErrApplyProfile:           "Failed to apply quality profile",
	ErrRuleAction:             "Optimization rule action failed",
	ErrExportReport:           "Failed to export report",
	ErrUnknownFormat:          "Unknown report format",
	ErrMainLoop:               "Error in main loop",
	ErrShutdownFailed:         "Shutdown failed",
	ErrOperationFailed:        "Operation failed",
	ErrAlreadyRunning:         "Another governor instance is already running",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
