package replica

// Event names published by a Store. They are used as log attributes.
const (
	EventDataChange   = "dataChange"
	EventSyncComplete = "syncComplete"
)

// Identity names the application and the device that own a manager.
type Identity struct {
	// BundleName is the application bundle that owns the stores (e.g., "com.example.notes").
	BundleName string

	// DeviceID identifies this device among its peers.
	DeviceID string
}

// Valid reports whether both fields are set.
func (id Identity) Valid() bool {
	return id.BundleName != "" && id.DeviceID != ""
}

// ManagerConfig holds what an engine needs to construct a Manager.
type ManagerConfig struct {
	Identity Identity
}

// StoreType selects how a store versions its entries.
type StoreType int

const (
	// StoreTypeSingleVersion keeps one value per key across all devices.
	StoreTypeSingleVersion StoreType = iota

	// StoreTypeDeviceCollaboration keeps one value per key per device.
	StoreTypeDeviceCollaboration
)

// String returns the store type name.
func (t StoreType) String() string {
	switch t {
	case StoreTypeSingleVersion:
		return "SINGLE_VERSION"
	case StoreTypeDeviceCollaboration:
		return "DEVICE_COLLABORATION"
	default:
		return "UNKNOWN"
	}
}

// SecurityLevel is the data classification a store is opened with.
type SecurityLevel int

const (
	SecurityLevelS1 SecurityLevel = iota + 1
	SecurityLevelS2
	SecurityLevelS3
	SecurityLevelS4
)

// String returns the security level name.
func (l SecurityLevel) String() string {
	switch l {
	case SecurityLevelS1:
		return "S1"
	case SecurityLevelS2:
		return "S2"
	case SecurityLevelS3:
		return "S3"
	case SecurityLevelS4:
		return "S4"
	default:
		return "UNKNOWN"
	}
}

// Options configures how a store is opened.
type Options struct {
	// CreateIfMissing creates the store when it does not exist.
	CreateIfMissing bool

	// Encrypt enables encryption at rest.
	Encrypt bool

	// Backup enables engine-side backups.
	Backup bool

	// AutoSync lets the engine replicate in the background without explicit triggers.
	AutoSync bool

	StoreType     StoreType
	SecurityLevel SecurityLevel
}

// SyncMode selects the direction of an explicit sync.
type SyncMode int

const (
	SyncModePushOnly SyncMode = iota
	SyncModePullOnly
	SyncModePushPull
)

// Valid reports whether m is a known mode.
func (m SyncMode) Valid() bool {
	return m >= SyncModePushOnly && m <= SyncModePushPull
}

// String returns the mode name.
func (m SyncMode) String() string {
	switch m {
	case SyncModePushOnly:
		return "PUSH_ONLY"
	case SyncModePullOnly:
		return "PULL_ONLY"
	case SyncModePushPull:
		return "PUSH_PULL"
	default:
		return "UNKNOWN"
	}
}

// ParseSyncMode is the inverse of SyncMode.String.
func ParseSyncMode(s string) (SyncMode, bool) {
	switch s {
	case "PUSH_ONLY":
		return SyncModePushOnly, true
	case "PULL_ONLY":
		return SyncModePullOnly, true
	case "PUSH_PULL":
		return SyncModePushPull, true
	}
	return 0, false
}

// SubscribeScope filters data change notifications by origin device.
type SubscribeScope int

const (
	// SubscribeLocal delivers changes made by this device.
	SubscribeLocal SubscribeScope = iota

	// SubscribeRemote delivers changes made by other devices.
	SubscribeRemote

	// SubscribeAll delivers every change.
	SubscribeAll
)

// Includes reports whether a change from origin should be delivered to a
// subscriber on device self.
func (s SubscribeScope) Includes(origin, self string) bool {
	switch s {
	case SubscribeLocal:
		return origin == self
	case SubscribeRemote:
		return origin != self
	case SubscribeAll:
		return true
	default:
		return false
	}
}

// Entry is a single key/value pair carried by a change notification.
type Entry struct {
	Key   string
	Value string
}

// ChangeNotification describes one batch of changes from one origin device.
type ChangeNotification struct {
	// DeviceID is the device that made the changes.
	DeviceID string

	Inserted []Entry
	Updated  []Entry
	Deleted  []Entry
}

// HasUpserts reports whether the batch inserted or updated at least one entry.
func (n ChangeNotification) HasUpserts() bool {
	return len(n.Inserted) > 0 || len(n.Updated) > 0
}

// Empty reports whether the batch carries no entries at all.
func (n ChangeNotification) Empty() bool {
	return !n.HasUpserts() && len(n.Deleted) == 0
}

// SyncStatus is the outcome of a sync with a single device.
type SyncStatus int

const (
	SyncSuccess SyncStatus = iota
	SyncFailed
	SyncTimeout
)

// String returns the status name.
func (s SyncStatus) String() string {
	switch s {
	case SyncSuccess:
		return "SUCCESS"
	case SyncFailed:
		return "FAILED"
	case SyncTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// SyncResult maps each device of a finished sync round to its outcome.
type SyncResult map[string]SyncStatus
