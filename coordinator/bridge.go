package coordinator

import (
	"log/slog"
	"sync"

	"github.com/jacentio/devicekv/replica"
)

// EventBridge forwards a store's change notifications to one listener,
// dropping notifications that neither inserted nor updated anything.
type EventBridge struct {
	logger *slog.Logger

	mu         sync.Mutex
	store      replica.Store
	subscribed bool
}

// NewEventBridge creates an unsubscribed bridge.
func NewEventBridge(logger *slog.Logger) *EventBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBridge{logger: logger}
}

// Subscribe registers onChange for all change scopes on store. It is a no-op
// if the bridge is already subscribed.
func (b *EventBridge) Subscribe(store replica.Store, onChange ChangeListener) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribed {
		return nil
	}
	if err := store.OnDataChange(replica.SubscribeAll, b.forwarder(onChange)); err != nil {
		return err
	}
	b.store = store
	b.subscribed = true
	return nil
}

// Unsubscribe removes the subscription. It is safe to call when the bridge
// was never subscribed or has already unsubscribed.
func (b *EventBridge) Unsubscribe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.store == nil || !b.subscribed {
		return
	}
	if err := b.store.OffDataChange(); err != nil {
		b.logger.Error("failed to remove data change listener",
			"event", replica.EventDataChange,
			"error", err,
		)
	}
	b.subscribed = false
}

// Subscribed reports whether the bridge currently holds a subscription.
func (b *EventBridge) Subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribed
}

func (b *EventBridge) forwarder(onChange ChangeListener) func(replica.ChangeNotification) {
	return func(n replica.ChangeNotification) {
		forward := n.HasUpserts()
		b.logger.Info("data change",
			"event", replica.EventDataChange,
			"device", n.DeviceID,
			"inserted", len(n.Inserted),
			"updated", len(n.Updated),
			"deleted", len(n.Deleted),
			"forwarded", forward,
		)
		if forward && onChange != nil {
			onChange(n)
		}
	}
}
