// Package replicatest provides a recording in-memory implementation of the
// replica contract for tests.
package replicatest

import (
	"context"
	"sync"

	"github.com/jacentio/devicekv/replica"
)

// TriggerCall records one Store.TriggerSync call.
type TriggerCall struct {
	DeviceIDs []string
	Mode      replica.SyncMode
}

// OpenCall records one Manager.OpenStore call.
type OpenCall struct {
	Name    string
	Options replica.Options
}

// Manager is a fake replica.Manager that hands out a single Store.
type Manager struct {
	// Store is returned by every successful OpenStore.
	Store *Store

	// OpenErr, when set, is returned by OpenStore.
	OpenErr error

	mu    sync.Mutex
	opens []OpenCall
}

// NewManager returns a Manager backed by a fresh Store.
func NewManager() *Manager {
	return &Manager{Store: NewStore()}
}

// Factory returns a replica.ManagerFactory that yields m. When err is
// non-nil the factory fails with it instead.
func (m *Manager) Factory(err error) replica.ManagerFactory {
	return func(cfg replica.ManagerConfig) (replica.Manager, error) {
		if err != nil {
			return nil, err
		}
		if !cfg.Identity.Valid() {
			return nil, replica.ErrInvalidIdentity
		}
		return m, nil
	}
}

// OpenStore records the call and returns m.Store or m.OpenErr.
func (m *Manager) OpenStore(_ context.Context, name string, opts replica.Options) (replica.Store, error) {
	m.mu.Lock()
	m.opens = append(m.opens, OpenCall{Name: name, Options: opts})
	err := m.OpenErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.Store, nil
}

// Opens returns the recorded OpenStore calls.
func (m *Manager) Opens() []OpenCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OpenCall(nil), m.opens...)
}

// SetOpenErr changes the error returned by later OpenStore calls.
func (m *Manager) SetOpenErr(err error) {
	m.mu.Lock()
	m.OpenErr = err
	m.mu.Unlock()
}

// Store is a fake replica.Store backed by a map. It records every call and
// lets tests emit events by hand.
type Store struct {
	// Errors returned by the corresponding methods when set.
	PutErr     error
	DeleteErr  error
	TriggerErr error
	EnableErr  error

	mu         sync.Mutex
	data       map[string]string
	puts       []replica.Entry
	deletes    []string
	triggers   []TriggerCall
	enables    []bool
	onChange   func(replica.ChangeNotification)
	scope      replica.SubscribeScope
	onComplete func(replica.SyncResult)
	closed     bool
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) EnableContinuousSync(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enables = append(s.enables, enabled)
	return s.EnableErr
}

func (s *Store) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return replica.ErrClosed
	}
	s.puts = append(s.puts, replica.Entry{Key: key, Value: value})
	if s.PutErr != nil {
		return s.PutErr
	}
	s.data[key] = value
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return replica.ErrClosed
	}
	s.deletes = append(s.deletes, key)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.data, key)
	return nil
}

func (s *Store) TriggerSync(deviceIDs []string, mode replica.SyncMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers = append(s.triggers, TriggerCall{
		DeviceIDs: append([]string(nil), deviceIDs...),
		Mode:      mode,
	})
	return s.TriggerErr
}

func (s *Store) OnDataChange(scope replica.SubscribeScope, handler func(replica.ChangeNotification)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = handler
	s.scope = scope
	return nil
}

func (s *Store) OffDataChange() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = nil
	return nil
}

func (s *Store) OnSyncComplete(handler func(replica.SyncResult)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = handler
	return nil
}

func (s *Store) OffSyncComplete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = nil
	return nil
}

func (s *Store) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// EmitDataChange delivers n to the registered dataChange handler. It reports
// whether a handler was registered.
func (s *Store) EmitDataChange(n replica.ChangeNotification) bool {
	s.mu.Lock()
	h := s.onChange
	s.mu.Unlock()
	if h == nil {
		return false
	}
	h(n)
	return true
}

// EmitSyncComplete delivers r to the registered syncComplete handler. It
// reports whether a handler was registered.
func (s *Store) EmitSyncComplete(r replica.SyncResult) bool {
	s.mu.Lock()
	h := s.onComplete
	s.mu.Unlock()
	if h == nil {
		return false
	}
	h(r)
	return true
}

// Value returns the stored value for key.
func (s *Store) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Puts returns the recorded Put calls, including failed ones.
func (s *Store) Puts() []replica.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]replica.Entry(nil), s.puts...)
}

// Deletes returns the recorded Delete keys, including failed ones.
func (s *Store) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

// Triggers returns the recorded TriggerSync calls.
func (s *Store) Triggers() []TriggerCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TriggerCall(nil), s.triggers...)
}

// Enables returns the recorded EnableContinuousSync arguments.
func (s *Store) Enables() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.enables...)
}

// Scope returns the scope of the last OnDataChange call.
func (s *Store) Scope() replica.SubscribeScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Subscribed reports which handlers are currently registered.
func (s *Store) Subscribed() (dataChange, syncComplete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onChange != nil, s.onComplete != nil
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var (
	_ replica.Manager = (*Manager)(nil)
	_ replica.Store   = (*Store)(nil)
)
