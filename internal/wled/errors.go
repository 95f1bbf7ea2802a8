package wled

import "errors"

var (
	// ErrControllerNotFound indicates a lookup for a controller id the
	// registry does not contain.
	ErrControllerNotFound = errors.New("wled: controller not found")

	// ErrPresetNotFound indicates a preset-by-name directive whose name
	// does not appear in the device's preset catalog. No state is written
	// to the device in this case.
	ErrPresetNotFound = errors.New("wled: preset not found")

	// ErrDeviceStatus indicates the device answered with a non-2xx status.
	ErrDeviceStatus = errors.New("wled: device returned error status")

	// ErrClosed indicates an operation on a closed endpoint.
	ErrClosed = errors.New("wled: endpoint closed")
)
