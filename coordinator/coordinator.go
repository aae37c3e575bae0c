package coordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jacentio/devicekv/replica"
)

// Coordinator owns one replicated store and coordinates writes, sync triggers
// and change notifications on it. It is safe for concurrent use.
type Coordinator struct {
	newManager replica.ManagerFactory
	logger     *slog.Logger
	scheduler  Scheduler

	queue  *CompletionQueue
	bridge *EventBridge

	mu      sync.Mutex
	state   State
	manager replica.Manager
	store   replica.Store
}

// New creates a Coordinator that builds its manager with factory.
func New(factory replica.ManagerFactory, opts ...Option) *Coordinator {
	c := &Coordinator{
		newManager: factory,
		logger:     slog.Default(),
		scheduler:  timerScheduler{},
		queue:      &CompletionQueue{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "coordinator")
	c.bridge = NewEventBridge(c.logger)
	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Initialize creates the manager and opens the store, then enables continuous
// sync and registers onChange and the sync completion queue.
//
// It is a no-op while a store is open or being opened. Failures are logged and
// leave the coordinator uninitialized; nothing is retried automatically.
func (c *Coordinator) Initialize(ctx context.Context, identity replica.Identity, onChange ChangeListener) {
	c.mu.Lock()
	switch state := c.state; state {
	case StateInitializing, StateReady:
		c.mu.Unlock()
		c.logger.Info("store already initialized", "state", state.String())
		return
	case StateClosed:
		c.mu.Unlock()
		c.logger.Warn("initialize called on closed coordinator")
		return
	}
	c.state = StateInitializing
	c.mu.Unlock()

	c.logger.Info("initializing store",
		"bundle", identity.BundleName,
		"device", identity.DeviceID,
		"store", StoreName,
	)

	manager, err := c.newManager(replica.ManagerConfig{Identity: identity})
	if err != nil {
		c.logger.Error("failed to create store manager", "error", err)
		c.abortInitialize()
		return
	}

	store, err := manager.OpenStore(ctx, StoreName, DefaultStoreOptions)
	if err != nil {
		c.logger.Error("failed to open store", "store", StoreName, "error", err)
		c.abortInitialize()
		return
	}

	if err := c.bridge.Subscribe(store, onChange); err != nil {
		c.logger.Error("failed to register data change listener", "error", err)
	}
	if err := store.OnSyncComplete(c.handleSyncComplete); err != nil {
		c.logger.Error("failed to register sync complete listener", "error", err)
	}

	c.mu.Lock()
	if c.state != StateInitializing {
		// Closed while opening.
		c.mu.Unlock()
		_ = c.release(ctx, store)
		return
	}
	c.manager = manager
	c.store = store
	c.state = StateReady
	c.mu.Unlock()

	go func() {
		if err := store.EnableContinuousSync(context.WithoutCancel(ctx), true); err != nil {
			c.logger.Error("failed to enable continuous sync", "error", err)
			return
		}
		c.logger.Info("continuous sync enabled")
	}()

	c.logger.Info("store initialized", "store", StoreName)
}

// UnsubscribeChanges removes the application change listener. It is safe to
// call before Initialize or more than once.
func (c *Coordinator) UnsubscribeChanges() {
	c.bridge.Unsubscribe()
}

// Close unsubscribes every listener and closes the store. Operations after
// Close report failure. Closing twice is a no-op.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	store := c.store
	prev := c.state
	c.store = nil
	c.manager = nil
	c.state = StateClosed
	c.mu.Unlock()

	if prev == StateClosed || store == nil {
		return nil
	}

	if err := c.release(ctx, store); err != nil {
		return err
	}
	c.logger.Info("store closed", "store", StoreName)
	return nil
}

// release removes both listeners and closes store.
func (c *Coordinator) release(ctx context.Context, store replica.Store) error {
	c.bridge.Unsubscribe()
	if err := store.OffSyncComplete(); err != nil {
		c.logger.Error("failed to remove sync complete listener", "error", err)
	}
	if err := store.Close(ctx); err != nil {
		c.logger.Error("failed to close store", "error", err)
		return err
	}
	return nil
}

// abortInitialize returns an in-flight initialization to Uninitialized,
// leaving a concurrent Close in effect.
func (c *Coordinator) abortInitialize() {
	c.mu.Lock()
	if c.state == StateInitializing {
		c.state = StateUninitialized
	}
	c.mu.Unlock()
}

// readyStore returns the open store, or nil unless the coordinator is ready.
func (c *Coordinator) readyStore() replica.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return nil
	}
	return c.store
}
