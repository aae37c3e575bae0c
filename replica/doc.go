// Package replica defines the contract of a replicated key-value store shared
// between devices.
//
// The coordinator consumes a store only through the [Manager] and [Store]
// interfaces declared here. Engines live in their own packages; this
// repository ships a DynamoDB engine in package dynamo, and package
// replicatest provides a recording fake for tests.
//
// # Lifecycle
//
// A [Manager] is created from a [ManagerConfig] by a [ManagerFactory]. The
// manager opens named stores with fixed [Options]:
//
//	mgr, err := factory(replica.ManagerConfig{Identity: id})
//	st, err := mgr.OpenStore(ctx, "settings", replica.Options{
//	    CreateIfMissing: true,
//	    AutoSync:        true,
//	    StoreType:       replica.StoreTypeSingleVersion,
//	    SecurityLevel:   replica.SecurityLevelS1,
//	})
//
// # Events
//
// A store publishes two event streams:
//
//   - dataChange: a [ChangeNotification] per change batch, filtered by [SubscribeScope]
//   - syncComplete: a [SyncResult] per finished sync round
//
// Each stream has at most one handler; registering again replaces it.
package replica
