package poll

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/classpulse/backend/internal/models"
)

func TestStudentWithNoSessionIsQueued(t *testing.T) {
	f := newFixture(t)

	insts := f.dir.AttachStudent("c1", "", "Ann")
	waiting, ok := findSend(insts, EventStudentWaiting)
	require.True(t, ok)
	require.Equal(t, "c1", waiting.Conn)

	// not bound anywhere yet
	_, _, bound := f.reg.Lookup("c1")
	require.False(t, bound)
}

func TestPendingStudentsDrainOnTeacherAttach(t *testing.T) {
	f := newFixture(t)

	f.dir.AttachStudent("c-live", "", "Ann")
	f.dir.AttachStudent("c-gone", "", "Bo")

	alive := func(connID string) bool { return connID == "c-live" }
	insts := f.dir.AttachTeacher("t1", "", alive)

	ready, ok := findSend(insts, EventStudentReady)
	require.True(t, ok)
	require.Equal(t, "c-live", ready.Conn)

	s, _, bound := f.reg.Lookup("c-live")
	require.True(t, bound)
	require.Len(t, s.Students(), 1)
	require.Equal(t, "Ann", s.Students()[0].Name)

	// the stale entry is discarded, not bound
	_, _, bound = f.reg.Lookup("c-gone")
	require.False(t, bound)

	// queue is empty: a second teacher attach drains nothing
	insts = f.dir.AttachTeacher("t2", "", alwaysAlive)
	_, ok = findSend(insts, EventStudentReady)
	require.False(t, ok)
}

func TestPendingStudentRemovedOnDisconnect(t *testing.T) {
	f := newFixture(t)

	f.dir.AttachStudent("c1", "", "Ann")
	require.Empty(t, f.dir.Detach("c1"))

	insts := f.dir.AttachTeacher("t1", "", alwaysAlive)
	_, ok := findSend(insts, EventStudentReady)
	require.False(t, ok)
}

func TestStudentResolution(t *testing.T) {
	f := newFixture(t)

	s1 := f.teacher(t, "t1")
	s2 := f.teacher(t, "t2")

	// (b) globally active session wins when no id is requested
	insts := f.dir.AttachStudent("c1", "", "Ann")
	ready, ok := findSend(insts, EventStudentReady)
	require.True(t, ok)
	_ = ready
	bound, _, _ := f.reg.Lookup("c1")
	require.Equal(t, s2.ID, bound.ID)

	// (a) an explicitly requested id overrides the active pointer
	f.dir.AttachStudent("c2", s1.ID, "Bo")
	bound, _, _ = f.reg.Lookup("c2")
	require.Equal(t, s1.ID, bound.ID)

	// (c) active pointer gone: fall back to the last session in creation
	// order that still has a teacher
	f.dir.Detach("t2")
	f.dir.AttachStudent("c3", "", "Cy")
	bound, _, _ = f.reg.Lookup("c3")
	require.Equal(t, s1.ID, bound.ID)
}

func TestAttachTeacherHonorsRequestedID(t *testing.T) {
	f := newFixture(t)

	created := f.dir.Create()
	insts := f.dir.AttachTeacher("t1", created.ID, alwaysAlive)
	ready, ok := findSend(insts, EventTeacherReady)
	require.True(t, ok)
	require.Equal(t, created.ID, ready.Payload.(models.TeacherReady).PollID)

	// an id the directory has never seen is created on the fly
	insts = f.dir.AttachTeacher("t2", "fresh-id", alwaysAlive)
	ready, ok = findSend(insts, EventTeacherReady)
	require.True(t, ok)
	require.Equal(t, "fresh-id", ready.Payload.(models.TeacherReady).PollID)
	require.NotNil(t, f.dir.Get("fresh-id"))
}

func TestTeacherRebindReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	s := f.teacher(t, "t1")

	insts := f.dir.AttachTeacher("t2", s.ID, alwaysAlive)
	require.NotEmpty(t, insts)
	require.Equal(t, "t2", s.TeacherConn())

	// the replaced connection lost its authority
	_, err := s.AskQuestion("t1", "q", nil, 30)
	require.ErrorIs(t, err, ErrNotAuthorized)
	_, err = s.AskQuestion("t2", "q", nil, 30)
	require.NoError(t, err)
}

func TestChatRelaysToRoom(t *testing.T) {
	f := newFixture(t)
	s := f.teacher(t, "t1")
	f.student(t, "c1", "Ann")

	insts := f.dir.Chat("c1", "", "Ann", "teacher", "hello there")
	msg, ok := findBroadcast(insts, EventChatMessage)
	require.True(t, ok)
	require.Equal(t, s.ID, msg.Room)

	chat := msg.Payload.(models.ChatMessage)
	require.Equal(t, "hello there", chat.Message)
	require.Equal(t, "Ann", chat.From)
	// the bound role wins over the claimed one
	require.Equal(t, "student", chat.Role)
	require.NotEmpty(t, chat.ID)

	// unbound connections with no resolvable session go nowhere
	require.Empty(t, f.dir.Chat("ghost", "nope", "X", "student", "hi"))

	// empty messages are dropped
	require.Empty(t, f.dir.Chat("c1", "", "Ann", "student", "   "))

	// overlong multi-byte messages clamp on a rune boundary
	insts = f.dir.Chat("c1", "", "Ann", "student", strings.Repeat("ж", 600))
	msg, ok = findBroadcast(insts, EventChatMessage)
	require.True(t, ok)
	clamped := msg.Payload.(models.ChatMessage).Message
	require.True(t, utf8.ValidString(clamped))
	require.Equal(t, maxChatLen, utf8.RuneCountInString(clamped))
}

func TestSubmitViaDirectoryUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.dir.SubmitAnswer("ghost", "nope", "q", "o")
	require.ErrorIs(t, err, ErrNotFound)
}
