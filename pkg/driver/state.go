package driver

// State is the observable lifecycle phase of one decode driver. States are
// totally ordered; a healthy run progresses monotonically from Created to
// Destroyed. Error is absorbing and reachable from any non-terminal state.
type State int

const (
	StateCreated State = iota
	StateDecoderBound
	StateInitialized
	StateFlushing
	StateFlushed
	StateResetting
	StateReset
	StateDestroyed
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateDecoderBound:
		return "decoder-bound"
	case StateInitialized:
		return "initialized"
	case StateFlushing:
		return "flushing"
	case StateFlushed:
		return "flushed"
	case StateResetting:
		return "resetting"
	case StateReset:
		return "reset"
	case StateDestroyed:
		return "destroyed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can leave s.
func (s State) Terminal() bool {
	return s == StateDestroyed || s == StateError
}
