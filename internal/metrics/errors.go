package metrics

import "codeberg.org/mutker/framegov/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidListen = errors.ErrorCode("metrics_invalid_listen_address")
	ErrInvalidPath   = errors.ErrorCode("metrics_invalid_path")

	// Registry Errors
	ErrRegister = errors.ErrorCode("metrics_register_failed")

	// Collection Errors
	ErrInvalidMetrics = errors.ErrorCode("metrics_invalid_metrics")

	// Operation Errors
	ErrOperationTimeout = errors.ErrorCode("metrics_operation_timeout")
)
