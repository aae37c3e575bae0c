// Package dynamo implements the replica contract on Amazon DynamoDB.
//
// Each application bundle gets one table, shared by every device running the
// bundle. Stores are partitions of that table, so all devices read and write
// the same items and DynamoDB resolves concurrent writes last-writer-wins.
//
// # Deletes
//
// Delete never removes an item. It writes a tombstone: the ttl attribute is
// set to the deletion time and origin to the deleting device, so the change
// stream can attribute the delete. DynamoDB TTL reaps tombstones later, and a
// Put on a tombstoned key revives it.
//
// # Continuous Sync
//
// EnableContinuousSync starts a [stream.Poller] on the table's stream. Every
// batch it reads is turned into change notifications, grouped by origin device
// and filtered by the listener's scope.
//
// # Explicit Sync
//
// TriggerSync writes one sync request per target device into a sharded sync
// partition. A target whose poller sees a live request addressed to it writes
// an ack, provided its store was opened with AutoSync. The round finishes when every device has acked, failed or timed out
// after Config.SyncTimeout, and its result is delivered to the sync complete
// listener.
//
// # Configuration
//
// Use [DefaultConfig] and adjust:
//
//	cfg := dynamo.DefaultConfig()
//	cfg.NumShards = 16 // spread sync records of busy stores
//
// # Errors
//
// Besides the replica sentinels, the package defines:
//
//   - [ErrNotFound] - key doesn't exist or is tombstoned
//   - [ErrEmptyKey] - keys must be non-empty
//   - [ErrReservedStoreName] - store name collides with sync partitions
package dynamo
