package coordinator

import (
	"log/slog"
	"time"

	"github.com/jacentio/devicekv/replica"
)

// StoreName is the name of the store every Coordinator opens.
const StoreName = "super_device_kvstore"

// SyncSettleDelay is how long Put waits after a successful local write before
// triggering a sync to the target device, so the write is visible to the
// replication subsystem first.
const SyncSettleDelay = 50 * time.Millisecond

// DefaultStoreOptions are the fixed options the store is opened with.
var DefaultStoreOptions = replica.Options{
	CreateIfMissing: true,
	Encrypt:         false,
	Backup:          false,
	AutoSync:        true,
	StoreType:       replica.StoreTypeSingleVersion,
	SecurityLevel:   replica.SecurityLevelS1,
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithScheduler sets the scheduler used for deferred sync triggers.
func WithScheduler(s Scheduler) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// Callback receives the outcome of an operation.
type Callback func(success bool)

// ChangeListener receives change notifications that inserted or updated entries.
type ChangeListener func(replica.ChangeNotification)

// WriteOption configures a single Put or Delete.
type WriteOption func(*writeOptions)

type writeOptions struct {
	targetDevice string
	callback     Callback
}

// WithTargetDevice makes Put trigger a sync to deviceID after the local write.
// Delete ignores it.
func WithTargetDevice(deviceID string) WriteOption {
	return func(o *writeOptions) {
		o.targetDevice = deviceID
	}
}

// WithCallback sets the callback that receives the operation's outcome.
func WithCallback(cb Callback) WriteOption {
	return func(o *writeOptions) {
		o.callback = cb
	}
}

func buildWriteOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// report invokes the callback if one was given.
func (o writeOptions) report(success bool) {
	if o.callback != nil {
		o.callback(success)
	}
}
