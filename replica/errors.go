package replica

import "errors"

var (
	// ErrInvalidIdentity is returned when a manager is created without a bundle name or device ID.
	ErrInvalidIdentity = errors.New("devicekv: invalid identity")

	// ErrStoreNotFound is returned when a store does not exist and CreateIfMissing is false.
	ErrStoreNotFound = errors.New("devicekv: store not found")

	// ErrUnsupportedStoreType is returned when the engine cannot open the requested store type.
	ErrUnsupportedStoreType = errors.New("devicekv: unsupported store type")

	// ErrStreamUnavailable is returned when continuous sync is enabled on a store without a change stream.
	ErrStreamUnavailable = errors.New("devicekv: change stream unavailable")

	// ErrInvalidSyncMode is returned when a sync is triggered with an unknown mode.
	ErrInvalidSyncMode = errors.New("devicekv: invalid sync mode")

	// ErrNoDevices is returned when a sync is triggered with no target devices.
	ErrNoDevices = errors.New("devicekv: no target devices")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("devicekv: store is closed")
)
