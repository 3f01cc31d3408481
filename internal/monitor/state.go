package monitor

// State is the connection state of a Manager.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribing  State = "subscribing"
	StateSubscribed   State = "subscribed"
	StateFailed       State = "failed"
)

// hasSession reports whether a Session may be owned in this state.
func (s State) hasSession() bool {
	switch s {
	case StateConnecting, StateSubscribing, StateSubscribed:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (s State) String() string {
	return string(s)
}
