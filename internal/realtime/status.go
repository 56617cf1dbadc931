package realtime

// Status is the connection signal surfaced to the owner of a Manager.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
	StatusMissingToken Status = "missing_token"
)

// State is the Manager's internal connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Handler receives connection events. A Manager has exactly one Handler.
// Callbacks are never invoked while the Manager holds its lock, and
// inbound messages are delivered in arrival order from a single goroutine.
type Handler interface {
	OnStatus(Status)
	OnMessage(Message)
	OnError(error)
}

// HandlerFuncs adapts optional callback functions to a Handler. Nil
// fields are skipped.
type HandlerFuncs struct {
	Status  func(Status)
	Message func(Message)
	Error   func(error)
}

func (h HandlerFuncs) OnStatus(s Status) {
	if h.Status != nil {
		h.Status(s)
	}
}

func (h HandlerFuncs) OnMessage(m Message) {
	if h.Message != nil {
		h.Message(m)
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}
