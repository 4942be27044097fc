package telemetry

import "codeberg.org/mutker/framegov/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidPath   = errors.ErrorCode("telemetry_invalid_path")
	ErrUnknownFormat = errors.ErrUnknownFormat

	// Export Errors
	ErrExportReport  = errors.ErrExportReport
	ErrInvalidReport = errors.ErrorCode("telemetry_invalid_report")

	// Sink Errors
	ErrSinkOpen  = errors.ErrorCode("telemetry_sink_open_failed")
	ErrSinkClose = errors.ErrShutdownFailed

	// Operation Errors
	ErrOperationTimeout = errors.ErrorCode("telemetry_operation_timeout")
)
