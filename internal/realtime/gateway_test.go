package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/models"
	"github.com/classpulse/backend/internal/poll"
)

type sentMsg struct {
	kind    string // send | broadcast | join | leave
	room    string
	conn    string
	event   string
	payload interface{}
}

// fakeSender records gateway output instead of touching websockets.
type fakeSender struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (f *fakeSender) SendToConn(connID, event string, payload interface{}) {
	f.record(sentMsg{kind: "send", conn: connID, event: event, payload: payload})
}

func (f *fakeSender) BroadcastToRoom(roomID, event string, payload interface{}) {
	f.record(sentMsg{kind: "broadcast", room: roomID, event: event, payload: payload})
}

func (f *fakeSender) JoinRoom(connID, roomID string) {
	f.record(sentMsg{kind: "join", conn: connID, room: roomID})
}

func (f *fakeSender) LeaveRoom(connID, roomID string) {
	f.record(sentMsg{kind: "leave", conn: connID, room: roomID})
}

func (f *fakeSender) IsConnected(string) bool { return true }

func (f *fakeSender) record(m sentMsg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
}

func (f *fakeSender) find(kind, event string) (sentMsg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.kind == kind && m.event == event {
			return m, true
		}
	}
	return sentMsg{}, false
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = nil
}

type gatewayFixture struct {
	fc        *clockwork.FakeClock
	engine    *poll.Engine
	directory *poll.Directory
	gateway   *Gateway
	sender    *fakeSender
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	fc := clockwork.NewFakeClock()
	engine := poll.NewEngine(zap.NewNop())
	sender := &fakeSender{}

	var (
		directory *poll.Directory
		gateway   *Gateway
	)
	clock := poll.NewClock(fc, func(sessionID, questionID string) {
		engine.Do(func() {
			gateway.Execute(directory.ExpireQuestion(sessionID, questionID))
		})
	})
	directory = poll.NewDirectory(poll.NewRegistry(), clock, zap.NewNop())
	gateway = NewGateway(engine, directory, sender, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go engine.Run(ctx)

	return &gatewayFixture{fc: fc, engine: engine, directory: directory, gateway: gateway, sender: sender}
}

func wsMsg(t *testing.T, event string, payload interface{}) WSMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return WSMessage{Event: event, Data: data}
}

// sync flushes every queued engine event.
func (f *gatewayFixture) sync() {
	f.engine.DoWait(func() {})
}

func TestGatewayTeacherInit(t *testing.T) {
	f := newGatewayFixture(t)

	f.gateway.HandleMessage("t1", wsMsg(t, "teacher:init", map[string]string{}))
	f.sync()

	join, ok := f.sender.find("join", "")
	require.True(t, ok)
	require.Equal(t, "t1", join.conn)

	ready, ok := f.sender.find("send", poll.EventTeacherReady)
	require.True(t, ok)
	require.Equal(t, "t1", ready.conn)
	require.Equal(t, join.room, ready.payload.(models.TeacherReady).PollID)
}

func TestGatewayQuestionRoundTrip(t *testing.T) {
	f := newGatewayFixture(t)

	f.gateway.HandleMessage("t1", wsMsg(t, "teacher:init", map[string]string{}))
	f.gateway.HandleMessage("c1", wsMsg(t, "student:init", map[string]string{"name": "Ann"}))
	f.sync()
	f.sender.reset()

	f.gateway.HandleMessage("t1", wsMsg(t, "teacher:askQuestion", map[string]interface{}{
		"text":        "2+2?",
		"options":     []string{"3", "4"},
		"durationSec": 10,
	}))
	f.sync()

	asked, ok := f.sender.find("broadcast", poll.EventQuestionAsked)
	require.True(t, ok)
	view := asked.payload.(models.QuestionView)
	require.Len(t, view.Options, 2)

	f.gateway.HandleMessage("c1", wsMsg(t, "student:submit", map[string]string{
		"questionId": view.ID,
		"optionId":   view.Options[1].ID,
	}))
	f.sync()

	upd, ok := f.sender.find("broadcast", poll.EventResultsUpdate)
	require.True(t, ok)
	require.Equal(t, 1, upd.payload.(models.ResultsUpdate).TotalAnswers)

	// sole student answered -> finished in the same operation
	fin, ok := f.sender.find("broadcast", poll.EventQuestionFinished)
	require.True(t, ok)
	require.Equal(t, models.ReasonAllAnswered, fin.payload.(models.QuestionResult).Reason)
}

func TestGatewayReportsActionableErrorsOnly(t *testing.T) {
	f := newGatewayFixture(t)

	f.gateway.HandleMessage("t1", wsMsg(t, "teacher:init", map[string]string{}))
	f.gateway.HandleMessage("c1", wsMsg(t, "student:init", map[string]string{"name": "Ann"}))
	f.sync()
	f.sender.reset()

	// a student asking is NotAuthorized: surfaced to the actor only
	f.gateway.HandleMessage("c1", wsMsg(t, "teacher:askQuestion", map[string]string{"text": "?"}))
	f.sync()

	errMsg, ok := f.sender.find("send", poll.EventError)
	require.True(t, ok)
	require.Equal(t, "c1", errMsg.conn)
	_, broadcastErr := f.sender.find("broadcast", poll.EventError)
	require.False(t, broadcastErr)

	f.sender.reset()

	// a stale submit is silent
	f.gateway.HandleMessage("c1", wsMsg(t, "student:submit", map[string]string{
		"questionId": "gone", "optionId": "gone",
	}))
	f.sync()
	_, any := f.sender.find("send", poll.EventError)
	require.False(t, any)
}

func TestGatewayTimeoutDeliveredThroughEngine(t *testing.T) {
	f := newGatewayFixture(t)

	f.gateway.HandleMessage("t1", wsMsg(t, "teacher:init", map[string]string{}))
	f.gateway.HandleMessage("c1", wsMsg(t, "student:init", map[string]string{"name": "Ann"}))
	f.gateway.HandleMessage("t1", wsMsg(t, "teacher:askQuestion", map[string]interface{}{
		"text": "slow one", "durationSec": 15,
	}))
	f.sync()
	f.sender.reset()

	f.fc.BlockUntil(1)
	f.fc.Advance(15 * time.Second)

	require.Eventually(t, func() bool {
		fin, ok := f.sender.find("broadcast", poll.EventQuestionFinished)
		if !ok {
			return false
		}
		return fin.payload.(models.QuestionResult).Reason == models.ReasonTimeout
	}, time.Second, 10*time.Millisecond)
}

func TestGatewayDisconnectShrinksRoster(t *testing.T) {
	f := newGatewayFixture(t)

	f.gateway.HandleMessage("t1", wsMsg(t, "teacher:init", map[string]string{}))
	f.gateway.HandleMessage("c1", wsMsg(t, "student:init", map[string]string{"name": "Ann"}))
	f.gateway.HandleMessage("c2", wsMsg(t, "student:init", map[string]string{"name": "Bo"}))
	f.sync()
	f.sender.reset()

	f.gateway.HandleDisconnect("c2")
	f.sync()

	roster, ok := f.sender.find("broadcast", poll.EventRosterUpdate)
	require.True(t, ok)
	students := roster.payload.(models.RosterUpdate).Students
	require.Len(t, students, 1)
	require.Equal(t, "Ann", students[0].Name)
}

func TestGatewayChat(t *testing.T) {
	f := newGatewayFixture(t)

	f.gateway.HandleMessage("t1", wsMsg(t, "teacher:init", map[string]string{}))
	f.gateway.HandleMessage("c1", wsMsg(t, "student:init", map[string]string{"name": "Ann"}))
	f.sync()
	f.sender.reset()

	f.gateway.HandleMessage("c1", wsMsg(t, "chat:send", map[string]string{
		"from": "Ann", "message": "hi all", "role": "student",
	}))
	f.sync()

	msg, ok := f.sender.find("broadcast", poll.EventChatMessage)
	require.True(t, ok)
	chat := msg.payload.(models.ChatMessage)
	require.Equal(t, "hi all", chat.Message)
	require.NotEmpty(t, chat.ID)
	require.False(t, chat.At.IsZero())
}

func TestGatewayIgnoresUnknownAndMalformed(t *testing.T) {
	f := newGatewayFixture(t)

	f.gateway.HandleMessage("c1", WSMessage{Event: "bogus:event"})
	f.gateway.HandleMessage("c1", WSMessage{Event: "student:init", Data: json.RawMessage(`{not json`)})
	f.sync()

	f.sender.mu.Lock()
	defer f.sender.mu.Unlock()
	require.Empty(t, f.sender.msgs)
}
