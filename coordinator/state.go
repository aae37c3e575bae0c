package coordinator

// State is the lifecycle state of a Coordinator.
type State int

const (
	// StateUninitialized means no store is open. Initialize may run.
	StateUninitialized State = iota

	// StateInitializing means an Initialize call is opening the store.
	StateInitializing

	// StateReady means the store is open and operations reach it.
	StateReady

	// StateClosed means Close released the store. It is terminal.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
