package dynamo

import (
	"sync"

	"github.com/jacentio/devicekv/replica"
)

// listeners holds the handlers registered on a store, one per event.
type listeners struct {
	mu       sync.RWMutex
	scope    replica.SubscribeScope
	change   func(replica.ChangeNotification)
	complete func(replica.SyncResult)
}

func (l *listeners) setChange(scope replica.SubscribeScope, h func(replica.ChangeNotification)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scope = scope
	l.change = h
}

func (l *listeners) setComplete(h func(replica.SyncResult)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.complete = h
}

func (l *listeners) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.change = nil
	l.complete = nil
}

// dispatchChanges delivers each notification the subscriber's scope admits.
// Handlers run outside the lock.
func (l *listeners) dispatchChanges(self string, notifications []replica.ChangeNotification) int {
	l.mu.RLock()
	h, scope := l.change, l.scope
	l.mu.RUnlock()
	if h == nil {
		return 0
	}

	delivered := 0
	for _, n := range notifications {
		if !scope.Includes(n.DeviceID, self) {
			continue
		}
		h(n)
		delivered++
	}
	return delivered
}

func (l *listeners) dispatchComplete(result replica.SyncResult) bool {
	l.mu.RLock()
	h := l.complete
	l.mu.RUnlock()
	if h == nil {
		return false
	}
	h(result)
	return true
}
