package transport

// State is the connection status shown to the user. It never gates message
// processing.
type State int

const (
	Connecting State = iota
	Connected
	Disconnected
	Error
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}
