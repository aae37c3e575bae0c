package coordinator

import "context"

// Put writes key locally and reports the outcome through WithCallback.
//
// With WithTargetDevice, a successful write also schedules a PUSH_PULL sync to
// that device after SyncSettleDelay. The callback receives true without
// waiting for that sync; its failure is only logged.
func (c *Coordinator) Put(ctx context.Context, key, value string, opts ...WriteOption) {
	o := buildWriteOptions(opts)

	store := c.readyStore()
	if store == nil {
		c.logger.Error("put failed", "key", key, "error", ErrNotInitialized)
		o.report(false)
		return
	}

	if err := store.Put(ctx, key, value); err != nil {
		c.logger.Error("put failed", "key", key, "error", err)
		o.report(false)
		return
	}
	c.logger.Info("put finished", "key", key, "valueLength", len(value))

	o.report(true)
	if o.targetDevice == "" {
		return
	}

	c.logger.Info("scheduling sync after put",
		"key", key,
		"device", o.targetDevice,
		"delay", SyncSettleDelay,
	)
	c.scheduleSync(o.targetDevice)
}

// Delete removes key and reports the store's outcome through WithCallback.
// It never triggers a sync.
func (c *Coordinator) Delete(ctx context.Context, key string, opts ...WriteOption) {
	o := buildWriteOptions(opts)

	store := c.readyStore()
	if store == nil {
		c.logger.Error("delete failed", "key", key, "error", ErrNotInitialized)
		o.report(false)
		return
	}

	if err := store.Delete(ctx, key); err != nil {
		c.logger.Error("delete failed", "key", key, "error", err)
		o.report(false)
		return
	}
	c.logger.Info("delete finished", "key", key)
	o.report(true)
}
