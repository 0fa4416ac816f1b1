package poll

// Outbound event names of the realtime protocol.
const (
	EventTeacherReady     = "teacher:ready"
	EventStudentReady     = "student:ready"
	EventStudentWaiting   = "student:waiting"
	EventStudentKicked    = "student:kicked"
	EventRosterUpdate     = "roster:update"
	EventQuestionAsked    = "questionAsked"
	EventResultsUpdate    = "results:update"
	EventQuestionFinished = "questionFinished"
	EventChatMessage      = "chat:message"
	EventError            = "errorMessage"
)

// InstructionKind selects what the broadcast gateway does with an instruction.
type InstructionKind int

const (
	// KindSend delivers Event/Payload to a single connection.
	KindSend InstructionKind = iota
	// KindBroadcast delivers Event/Payload to every connection in a room.
	KindBroadcast
	// KindJoin attaches a connection to a room's broadcast group.
	KindJoin
	// KindLeave detaches a connection from a room's broadcast group.
	KindLeave
)

// Instruction describes one side effect a state transition requires. Session
// operations mutate state and return instructions; the gateway performs the
// actual sends. Room is always the owning session's ID.
type Instruction struct {
	Kind    InstructionKind
	Room    string
	Conn    string
	Event   string
	Payload interface{}
}

func sendTo(conn, event string, payload interface{}) Instruction {
	return Instruction{Kind: KindSend, Conn: conn, Event: event, Payload: payload}
}

func toRoom(room, event string, payload interface{}) Instruction {
	return Instruction{Kind: KindBroadcast, Room: room, Event: event, Payload: payload}
}

func joinRoom(conn, room string) Instruction {
	return Instruction{Kind: KindJoin, Conn: conn, Room: room}
}

func leaveRoom(conn, room string) Instruction {
	return Instruction{Kind: KindLeave, Conn: conn, Room: room}
}
