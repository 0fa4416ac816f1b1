package poll

import (
	"sort"
	"strings"
	"time"

	"github.com/classpulse/backend/internal/models"
)

const (
	maxQuestionLen     = 140
	maxOptionLen       = 80
	maxNameLen         = 40
	maxDurationSec     = 300
	defaultDurationSec = 60
)

// defaultOptionLabels are used when the teacher asks a question without
// supplying options.
var defaultOptionLabels = []string{"A", "B", "C", "D"}

// truncate limits s to max characters. Length limits are character counts, so
// the cut must land on a rune boundary; slicing bytes could split a multi-byte
// rune and emit invalid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// Session owns one poll's roster, current question and history. All state is
// mutated exclusively on the engine goroutine; every operation returns the
// broadcast instructions the transition requires.
//
// Session state machine: idle (no current question) -> questioning (current
// question active) -> idle again when the question finishes.
type Session struct {
	ID          string
	teacherConn string

	roster  map[string]*models.Student
	current *models.Question
	history []models.QuestionResult // most-recent-first

	clock *Clock
}

func newSession(id string, clock *Clock) *Session {
	return &Session{
		ID:     id,
		roster: make(map[string]*models.Student),
		clock:  clock,
	}
}

// TeacherConn returns the currently bound teacher connection, or "" when the
// session is leaderless.
func (s *Session) TeacherConn() string {
	return s.teacherConn
}

// HasTeacher reports whether a teacher connection is bound.
func (s *Session) HasTeacher() bool {
	return s.teacherConn != ""
}

// Students returns a roster snapshot ordered by join time.
func (s *Session) Students() []models.Student {
	out := make([]models.Student, 0, len(s.roster))
	for _, st := range s.roster {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// History returns the finished-question snapshots, most recent first.
func (s *Session) History() []models.QuestionResult {
	out := make([]models.QuestionResult, len(s.history))
	copy(out, s.history)
	return out
}

// CurrentQuestion returns the active question or nil.
func (s *Session) CurrentQuestion() *models.Question {
	return s.current
}

func (s *Session) currentView() *models.QuestionView {
	if s.current == nil {
		return nil
	}
	v := s.current.View()
	return &v
}

// BindTeacher replaces the session's teacher binding with conn and returns
// the teacher:ready snapshot for it. Current question is announced without
// counts; history carries the revealed finals.
func (s *Session) BindTeacher(connID string) []Instruction {
	s.teacherConn = connID
	return []Instruction{
		joinRoom(connID, s.ID),
		sendTo(connID, EventTeacherReady, models.TeacherReady{
			PollID:          s.ID,
			Students:        s.Students(),
			CurrentQuestion: s.currentView(),
			PastQuestions:   s.History(),
		}),
	}
}

// AddStudent joins a student to the roster, giving it the current state and
// announcing the roster change to the room.
func (s *Session) AddStudent(connID, name string) []Instruction {
	name = truncate(strings.TrimSpace(name), maxNameLen)
	s.roster[connID] = &models.Student{
		ID:       newID(),
		Name:     name,
		JoinedAt: s.clock.Now(),
	}
	return []Instruction{
		joinRoom(connID, s.ID),
		sendTo(connID, EventStudentReady, models.StudentReady{
			CurrentQuestion: s.currentView(),
			PastQuestions:   s.History(),
		}),
		toRoom(s.ID, EventRosterUpdate, models.RosterUpdate{Students: s.Students()}),
	}
}

// AskQuestion starts a new question. Only the bound teacher may ask, and only
// while no question is active. Text and options are clamped, the duration is
// clamped to (0, maxDurationSec] with a default, and the question clock is
// armed. The announcement hides per-option counts.
func (s *Session) AskQuestion(requesterConn, text string, options []string, durationSec int) ([]Instruction, error) {
	if requesterConn != s.teacherConn || s.teacherConn == "" {
		return nil, ErrNotAuthorized
	}
	// A finished question clears itself from the session, so any question
	// still present blocks regardless of status.
	if s.current != nil {
		return nil, ErrQuestionInProgress
	}

	text = truncate(strings.TrimSpace(text), maxQuestionLen)
	if len(options) == 0 {
		options = defaultOptionLabels
	}
	opts := make([]models.Option, 0, len(options))
	for _, o := range options {
		o = truncate(strings.TrimSpace(o), maxOptionLen)
		opts = append(opts, models.Option{ID: newID(), Text: o})
	}
	if durationSec <= 0 {
		durationSec = defaultDurationSec
	}
	if durationSec > maxDurationSec {
		durationSec = maxDurationSec
	}

	s.current = &models.Question{
		ID:          newID(),
		Text:        text,
		Options:     opts,
		AskedAt:     s.clock.Now(),
		DurationSec: durationSec,
		Status:      models.QuestionActive,
		Responded:   make(map[string]bool),
	}
	s.clock.Arm(s.ID, s.current.ID, time.Duration(durationSec)*time.Second)

	return []Instruction{
		toRoom(s.ID, EventQuestionAsked, s.current.View()),
	}, nil
}

// SubmitAnswer records a student's answer for the active question. Stale
// references (wrong question, unknown option, connection not in the roster)
// are silent no-ops. A connection answers at most once. When the submission
// completes the live roster, the question finishes immediately with reason
// all_answered as part of the same operation.
func (s *Session) SubmitAnswer(requesterConn, questionID, optionID string) ([]Instruction, error) {
	q := s.current
	if q == nil || q.ID != questionID || q.Status != models.QuestionActive {
		return nil, ErrNotFound
	}
	if _, ok := s.roster[requesterConn]; !ok {
		return nil, ErrNotFound
	}
	if q.HasAnswered(requesterConn) {
		return nil, ErrAlreadyAnswered
	}

	matched := false
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			q.Options[i].Count++
			matched = true
			break
		}
	}
	if !matched {
		// Stale client referencing a prior question's options.
		return nil, ErrNotFound
	}
	q.Responded[requesterConn] = true

	insts := []Instruction{
		toRoom(s.ID, EventResultsUpdate, models.ResultsUpdate{
			QuestionID:    q.ID,
			Options:       append([]models.Option(nil), q.Options...),
			TotalAnswers:  q.TotalAnswers(),
			StudentsTotal: len(s.roster),
		}),
	}
	insts = append(insts, s.maybeFinishAllAnswered()...)
	return insts, nil
}

// EndQuestion finishes the active question on the teacher's request. With no
// active question it is a silent no-op (stale client protection).
func (s *Session) EndQuestion(requesterConn string) ([]Instruction, error) {
	if requesterConn != s.teacherConn || s.teacherConn == "" {
		return nil, ErrNotAuthorized
	}
	if s.current == nil || s.current.Status != models.QuestionActive {
		return nil, nil
	}
	return s.finishQuestion(models.ReasonTeacherEnd), nil
}

// ExpireQuestion finishes the question on clock expiry. Guarded by identity:
// a stale fire for a question that was since replaced or finished does
// nothing.
func (s *Session) ExpireQuestion(questionID string) []Instruction {
	if s.current == nil || s.current.ID != questionID || s.current.Status != models.QuestionActive {
		return nil
	}
	return s.finishQuestion(models.ReasonTimeout)
}

// finishQuestion disarms the clock, snapshots the result into history and
// returns the session to idle. The finish announcement reveals final counts.
func (s *Session) finishQuestion(reason models.FinishReason) []Instruction {
	q := s.current
	s.clock.Disarm(q.ID)
	q.Status = models.QuestionFinished
	result := q.Result(reason, s.clock.Now())
	s.history = append([]models.QuestionResult{result}, s.history...)
	s.current = nil
	return []Instruction{
		toRoom(s.ID, EventQuestionFinished, result),
	}
}

// maybeFinishAllAnswered finishes the active question when every live roster
// member is accounted for. Answers from since-departed connections still
// count toward the total, so a shrinking roster can retroactively satisfy the
// condition.
func (s *Session) maybeFinishAllAnswered() []Instruction {
	q := s.current
	if q == nil || q.Status != models.QuestionActive {
		return nil
	}
	if len(s.roster) == 0 || q.TotalAnswers() < len(s.roster) {
		return nil
	}
	return s.finishQuestion(models.ReasonAllAnswered)
}

// RemoveStudent expels a student on the teacher's request. The expelled
// connection alone receives student:kicked and leaves the room; the roster
// update goes to everyone else. Answers the student already gave remain
// counted. Returns the expelled connection ID so the caller can unbind it.
func (s *Session) RemoveStudent(requesterConn, studentID string) (string, []Instruction, error) {
	if requesterConn != s.teacherConn || s.teacherConn == "" {
		return "", nil, ErrNotAuthorized
	}
	connID := ""
	for c, st := range s.roster {
		if st.ID == studentID {
			connID = c
			break
		}
	}
	if connID == "" {
		return "", nil, ErrNotFound
	}
	delete(s.roster, connID)

	insts := []Instruction{
		sendTo(connID, EventStudentKicked, struct{}{}),
		leaveRoom(connID, s.ID),
		toRoom(s.ID, EventRosterUpdate, models.RosterUpdate{Students: s.Students()}),
	}
	insts = append(insts, s.maybeFinishAllAnswered()...)
	return connID, insts, nil
}

// DetachTeacher clears the teacher binding on disconnect. The session is not
// deleted, just leaderless.
func (s *Session) DetachTeacher(connID string) {
	if s.teacherConn == connID {
		s.teacherConn = ""
	}
}

// DetachStudent removes a disconnected student from the roster and announces
// the change. Recorded answers are not decremented, but the shrunken roster
// may complete the active question.
func (s *Session) DetachStudent(connID string) []Instruction {
	if _, ok := s.roster[connID]; !ok {
		return nil
	}
	delete(s.roster, connID)
	insts := []Instruction{
		toRoom(s.ID, EventRosterUpdate, models.RosterUpdate{Students: s.Students()}),
	}
	insts = append(insts, s.maybeFinishAllAnswered()...)
	return insts
}
