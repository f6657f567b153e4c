package transfer

type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// State is one step of a role's state machine. Values only increase
// during a session.
type State uint8

const (
	StateIdle State = iota

	// sender
	StateAwaitReady
	StateSendFilename
	StateSendSize
	StateAwaitStart
	StateStreamPayload
	StateAwaitResult

	// receiver
	StateSendReady
	StateRecvFilename
	StateRecvSize
	StateSendStart
	StateRecvPayload
	StatePersist
	StateSendResult

	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:          "IDLE",
	StateAwaitReady:    "AWAIT_READY",
	StateSendFilename:  "SEND_FILENAME",
	StateSendSize:      "SEND_SIZE",
	StateAwaitStart:    "AWAIT_START",
	StateStreamPayload: "STREAM_PAYLOAD",
	StateAwaitResult:   "AWAIT_RESULT",
	StateSendReady:     "SEND_READY",
	StateRecvFilename:  "RECV_FILENAME",
	StateRecvSize:      "RECV_SIZE",
	StateSendStart:     "SEND_START",
	StateRecvPayload:   "RECV_PAYLOAD",
	StatePersist:       "PERSIST",
	StateSendResult:    "SEND_RESULT",
	StateDone:          "DONE",
	StateFailed:        "FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
