package replica

import "context"

// ManagerFactory constructs a Manager. It fails when the configuration cannot
// identify the application or device.
type ManagerFactory func(cfg ManagerConfig) (Manager, error)

// Manager opens stores for one application identity.
type Manager interface {
	// OpenStore opens (and, with CreateIfMissing, creates) the named store.
	OpenStore(ctx context.Context, name string, opts Options) (Store, error)
}

// Store is an open replicated key-value store.
type Store interface {
	// EnableContinuousSync turns background replication on or off.
	EnableContinuousSync(ctx context.Context, enabled bool) error

	// Put writes key locally. Replication happens in the background.
	Put(ctx context.Context, key, value string) error

	// Delete removes key locally. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// TriggerSync asks the engine to sync with the given devices. The call
	// returns once the request is accepted; the outcome arrives later as a
	// syncComplete event.
	TriggerSync(deviceIDs []string, mode SyncMode) error

	// OnDataChange registers the dataChange handler.
	OnDataChange(scope SubscribeScope, handler func(ChangeNotification)) error

	// OffDataChange removes the dataChange handler.
	OffDataChange() error

	// OnSyncComplete registers the syncComplete handler.
	OnSyncComplete(handler func(SyncResult)) error

	// OffSyncComplete removes the syncComplete handler.
	OffSyncComplete() error

	// Close releases the store. Further calls fail with ErrClosed.
	Close(ctx context.Context) error
}
