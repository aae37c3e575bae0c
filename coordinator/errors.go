package coordinator

import "errors"

var (
	// ErrNotInitialized is logged when an operation runs before the store is ready.
	ErrNotInitialized = errors.New("devicekv: store not initialized")

	// ErrEmptyDeviceID is logged when a device-targeted sync names no device.
	ErrEmptyDeviceID = errors.New("devicekv: empty device id")
)
