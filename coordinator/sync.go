package coordinator

import "github.com/jacentio/devicekv/replica"

// TriggerSync asks the store to PUSH_PULL with deviceIDs. The outcome is
// logged only.
func (c *Coordinator) TriggerSync(deviceIDs []string) {
	store := c.readyStore()
	if store == nil {
		c.logger.Error("sync failed", "devices", deviceIDs, "error", ErrNotInitialized)
		return
	}
	c.trigger(store, deviceIDs)
}

// TriggerSyncToDevice asks the store to PUSH_PULL with a single device. An
// empty deviceID is rejected with a warning.
func (c *Coordinator) TriggerSyncToDevice(deviceID string) {
	store := c.readyStore()
	if store == nil {
		c.logger.Error("sync failed", "device", deviceID, "error", ErrNotInitialized)
		return
	}
	if deviceID == "" {
		c.logger.Warn("skipping sync", "error", ErrEmptyDeviceID)
		return
	}
	c.trigger(store, []string{deviceID})
}

// scheduleSync triggers a sync to deviceID after SyncSettleDelay. The store is
// looked up again when the timer fires.
func (c *Coordinator) scheduleSync(deviceID string) {
	c.scheduler.AfterFunc(SyncSettleDelay, func() {
		store := c.readyStore()
		if store == nil {
			c.logger.Error("deferred sync failed", "device", deviceID, "error", ErrNotInitialized)
			return
		}
		c.trigger(store, []string{deviceID})
	})
}

func (c *Coordinator) trigger(store replica.Store, deviceIDs []string) {
	mode := replica.SyncModePushPull
	if err := store.TriggerSync(deviceIDs, mode); err != nil {
		c.logger.Error("sync trigger failed",
			"devices", deviceIDs,
			"mode", mode.String(),
			"error", err,
		)
		return
	}
	c.logger.Info("sync triggered", "devices", deviceIDs, "mode", mode.String())
}
