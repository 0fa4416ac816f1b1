package realtime

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/models"
	"github.com/classpulse/backend/internal/poll"
)

// Inbound event names of the realtime protocol.
const (
	eventTeacherInit   = "teacher:init"
	eventStudentInit   = "student:init"
	eventAskQuestion   = "teacher:askQuestion"
	eventSubmit        = "student:submit"
	eventEndQuestion   = "teacher:endQuestion"
	eventRemoveStudent = "teacher:removeStudent"
	eventChatSend      = "chat:send"
)

type teacherInitPayload struct {
	PollID string `json:"pollId"`
}

type studentInitPayload struct {
	PollID string `json:"pollId"`
	Name   string `json:"name"`
}

type askQuestionPayload struct {
	PollID      string   `json:"pollId"`
	Text        string   `json:"text"`
	Options     []string `json:"options"`
	DurationSec int      `json:"durationSec"`
}

type submitPayload struct {
	PollID     string `json:"pollId"`
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type endQuestionPayload struct {
	PollID string `json:"pollId"`
}

type removeStudentPayload struct {
	PollID    string `json:"pollId"`
	StudentID string `json:"studentId"`
}

type chatSendPayload struct {
	PollID  string `json:"pollId"`
	From    string `json:"from"`
	Message string `json:"message"`
	Role    string `json:"role"`
}

// Sender is the transport surface the gateway drives. Implemented by Hub;
// tests substitute a recorder.
type Sender interface {
	SendToConn(connID, event string, payload interface{})
	BroadcastToRoom(roomID, event string, payload interface{})
	JoinRoom(connID, roomID string)
	LeaveRoom(connID, roomID string)
	IsConnected(connID string) bool
}

// Gateway routes inbound messages into engine-serialized directory operations
// and turns the returned instructions into concrete sends. It never mutates
// poll state itself.
type Gateway struct {
	engine    *poll.Engine
	directory *poll.Directory
	sender    Sender
	logger    *zap.Logger
}

// NewGateway creates the broadcast gateway.
func NewGateway(engine *poll.Engine, directory *poll.Directory, sender Sender, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		engine:    engine,
		directory: directory,
		sender:    sender,
		logger:    logger,
	}
}

// HandleMessage dispatches one inbound message. Unknown events and malformed
// payloads are dropped; protocol errors never tear down the connection.
func (g *Gateway) HandleMessage(connID string, msg WSMessage) {
	switch msg.Event {
	case eventTeacherInit:
		var p teacherInitPayload
		if !g.decode(connID, msg, &p) {
			return
		}
		g.engine.Do(func() {
			g.Execute(g.directory.AttachTeacher(connID, p.PollID, g.sender.IsConnected))
		})
	case eventStudentInit:
		var p studentInitPayload
		if !g.decode(connID, msg, &p) {
			return
		}
		g.engine.Do(func() {
			g.Execute(g.directory.AttachStudent(connID, p.PollID, p.Name))
		})
	case eventAskQuestion:
		var p askQuestionPayload
		if !g.decode(connID, msg, &p) {
			return
		}
		g.engine.Do(func() {
			insts, err := g.directory.AskQuestion(connID, p.PollID, p.Text, p.Options, p.DurationSec)
			g.finish(connID, insts, err)
		})
	case eventSubmit:
		var p submitPayload
		if !g.decode(connID, msg, &p) {
			return
		}
		g.engine.Do(func() {
			insts, err := g.directory.SubmitAnswer(connID, p.PollID, p.QuestionID, p.OptionID)
			g.finish(connID, insts, err)
		})
	case eventEndQuestion:
		var p endQuestionPayload
		if !g.decode(connID, msg, &p) {
			return
		}
		g.engine.Do(func() {
			insts, err := g.directory.EndQuestion(connID, p.PollID)
			g.finish(connID, insts, err)
		})
	case eventRemoveStudent:
		var p removeStudentPayload
		if !g.decode(connID, msg, &p) {
			return
		}
		g.engine.Do(func() {
			insts, err := g.directory.RemoveStudent(connID, p.PollID, p.StudentID)
			g.finish(connID, insts, err)
		})
	case eventChatSend:
		var p chatSendPayload
		if !g.decode(connID, msg, &p) {
			return
		}
		g.engine.Do(func() {
			g.Execute(g.directory.Chat(connID, p.PollID, p.From, p.Role, p.Message))
		})
	default:
		// ignore
	}
}

// HandleDisconnect runs the teardown path for a dropped connection.
func (g *Gateway) HandleDisconnect(connID string) {
	g.engine.Do(func() {
		g.Execute(g.directory.Detach(connID))
	})
}

// Execute performs the sends a state transition asked for.
func (g *Gateway) Execute(insts []poll.Instruction) {
	for _, in := range insts {
		switch in.Kind {
		case poll.KindSend:
			g.sender.SendToConn(in.Conn, in.Event, in.Payload)
		case poll.KindBroadcast:
			g.sender.BroadcastToRoom(in.Room, in.Event, in.Payload)
		case poll.KindJoin:
			g.sender.JoinRoom(in.Conn, in.Room)
		case poll.KindLeave:
			g.sender.LeaveRoom(in.Conn, in.Room)
		}
	}
}

// finish executes instructions and reports actionable errors back to the
// actor. NotFound and duplicate answers are stale-client noise and stay
// silent; nothing is ever broadcast.
func (g *Gateway) finish(connID string, insts []poll.Instruction, err error) {
	if err != nil {
		if errors.Is(err, poll.ErrNotAuthorized) || errors.Is(err, poll.ErrQuestionInProgress) {
			g.sender.SendToConn(connID, poll.EventError, models.ErrorMessage{Text: err.Error()})
		}
		return
	}
	g.Execute(insts)
}

func (g *Gateway) decode(connID string, msg WSMessage, dst interface{}) bool {
	if len(msg.Data) == 0 {
		// events like endQuestion may come with no body when the client
		// relies on its own binding
		return true
	}
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		g.logger.Debug("malformed payload",
			zap.String("client_id", connID),
			zap.String("event", msg.Event),
			zap.Error(err),
		)
		return false
	}
	return true
}
