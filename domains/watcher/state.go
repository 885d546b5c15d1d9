package watcher

// State is the lifecycle state of a Fetcher.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsActive returns true while the fetch loop goroutine is alive
func (s State) IsActive() bool {
	return s == StateRunning || s == StateStopping
}
