package live

// ConnectionState is the lifecycle state of the stream connection.
type ConnectionState int32

const (
	// Idle means Start has not been called.
	Idle ConnectionState = iota
	Connecting
	Open
	Closed
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
