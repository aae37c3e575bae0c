// Package coordinator coordinates an application's use of a replicated
// key-value store shared between devices.
//
// A [Coordinator] owns exactly one store handle. It opens the store once,
// writes and deletes entries, nudges replication toward specific peers, and
// bridges the store's change notifications to a single application listener.
//
// # Lifecycle
//
// [Coordinator.Initialize] creates the manager and opens [StoreName] with
// [DefaultStoreOptions]. Repeated calls while a store is open, or while an
// open is in flight, are no-ops. Every other operation checks the lifecycle
// [State] first and reports failure when the store is not ready.
//
//	c := coordinator.New(factory, coordinator.WithLogger(logger))
//	c.Initialize(ctx, replica.Identity{BundleName: "com.example.notes", DeviceID: "tablet"},
//	    func(n replica.ChangeNotification) { render(n) })
//
// # Writes
//
// [Coordinator.Put] reports success once the local write lands. With
// [WithTargetDevice] it also schedules a PUSH_PULL sync to that device after
// [SyncSettleDelay]; the outcome of that sync is logged and never reported to
// the caller:
//
//	c.Put(ctx, "draft", body,
//	    coordinator.WithTargetDevice("phone"),
//	    coordinator.WithCallback(func(ok bool) { ... }))
//
// # Sync completion
//
// [Coordinator.AwaitSync] queues a callback for the next syncComplete event.
// Events are not correlated with writes: whichever round completes next
// releases every queued callback, in queue order, with success=true.
//
// # Errors
//
// Nothing in this package returns errors or panics on store failures. Outcomes
// reach callers only through optional callbacks; everything else is logged.
package coordinator
