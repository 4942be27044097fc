package platform

import (
	"codeberg.org/mutker/framegov/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	// Initialization and Lifecycle Errors
	ErrNotInitialized = errors.ErrorCode("platform_not_initialized")
	ErrInitFailed     = errors.ErrorCode("platform_nvml_init_failed")
	ErrDeviceNotFound = errors.ErrorCode("platform_gpu_device_not_found")
	ErrShutdownFailed = errors.ErrorCode("platform_nvml_shutdown_failed")

	// Capability Errors
	ErrDeviceInfoFailed = errors.ErrorCode("platform_device_info_failed")
	ErrHostInfoFailed   = errors.ErrorCode("platform_host_info_failed")
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

func isNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
