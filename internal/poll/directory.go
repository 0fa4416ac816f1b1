package poll

import (
	"strings"

	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/models"
)

const maxChatLen = 500

// Directory owns every poll session, the "globally active session" pointer
// and the queue of students who arrived before any teacher. It is the
// process-scoped context object: all registries live here, created once at
// startup, no package-level state. Like the sessions themselves it is only
// touched from the engine goroutine.
type Directory struct {
	registry *Registry
	clock    *Clock
	logger   *zap.Logger

	sessions map[string]*Session
	order    []string // session IDs in creation order, for the tie-break scan
	activeID string   // most recent session a teacher attached to
	pending  []models.PendingStudent
}

// NewDirectory creates an empty session directory.
func NewDirectory(registry *Registry, clock *Clock, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		registry: registry,
		clock:    clock,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create makes a new session with a generated id.
func (d *Directory) Create() *Session {
	return d.createWithID(newID())
}

func (d *Directory) createWithID(id string) *Session {
	s := newSession(id, d.clock)
	d.sessions[id] = s
	d.order = append(d.order, id)
	d.logger.Info("session created", zap.String("session_id", id))
	return s
}

// Get returns the session with the given id, or nil.
func (d *Directory) Get(id string) *Session {
	return d.sessions[id]
}

// AttachTeacher binds conn as the teacher of the requested session, creating
// it when needed, marks it the globally active session, and migrates any
// pending students whose connections are still live into it. alive reports
// whether a pending connection is still attached to the transport.
func (d *Directory) AttachTeacher(connID, requestedID string, alive func(connID string) bool) []Instruction {
	var s *Session
	if requestedID != "" {
		s = d.sessions[requestedID]
		if s == nil {
			// The creation endpoint hands out ids before the teacher
			// connects; honor an id we have not seen yet.
			s = d.createWithID(requestedID)
		}
	} else {
		s = d.Create()
	}

	insts := s.BindTeacher(connID)
	d.registry.BindTeacher(connID, s)
	d.activeID = s.ID
	insts = append(insts, d.DrainPendingInto(s, alive)...)
	return insts
}

// AttachStudent joins conn to a resolvable session's roster, or queues it as
// pending when no session currently has a teacher to join.
func (d *Directory) AttachStudent(connID, requestedID, name string) []Instruction {
	s := d.resolveForStudent(requestedID)
	if s == nil {
		d.pending = append(d.pending, models.PendingStudent{ConnID: connID, Name: name})
		return []Instruction{
			sendTo(connID, EventStudentWaiting, struct{}{}),
		}
	}
	insts := s.AddStudent(connID, name)
	d.registry.BindStudent(connID, s)
	return insts
}

// resolveForStudent picks the session a student lands in: the explicitly
// requested one, else the globally active one, else the last session in
// creation order that still has a teacher. This is a single-active-session
// convenience; with several sessions in active use the explicit id is the
// only reliable route.
func (d *Directory) resolveForStudent(requestedID string) *Session {
	if requestedID != "" {
		if s := d.sessions[requestedID]; s != nil {
			return s
		}
	}
	if s := d.sessions[d.activeID]; s != nil {
		return s
	}
	for i := len(d.order) - 1; i >= 0; i-- {
		if s := d.sessions[d.order[i]]; s != nil && s.HasTeacher() {
			return s
		}
	}
	return nil
}

// DrainPendingInto converts queued pending students into roster entries of
// the target session. Entries whose connection already dropped are discarded
// silently. The queue is empty afterwards.
func (d *Directory) DrainPendingInto(s *Session, alive func(connID string) bool) []Instruction {
	if len(d.pending) == 0 {
		return nil
	}
	var insts []Instruction
	for _, p := range d.pending {
		if alive != nil && !alive(p.ConnID) {
			continue
		}
		insts = append(insts, s.AddStudent(p.ConnID, p.Name)...)
		d.registry.BindStudent(p.ConnID, s)
	}
	d.pending = nil
	return insts
}

// resolveFor finds the session an operation targets: the explicit poll id
// when given, else the requester's own binding.
func (d *Directory) resolveFor(connID, pollID string) *Session {
	if pollID != "" {
		if s := d.sessions[pollID]; s != nil {
			return s
		}
	}
	if s, _, ok := d.registry.Lookup(connID); ok {
		return s
	}
	return nil
}

// AskQuestion routes a teacher's ask to its session.
func (d *Directory) AskQuestion(connID, pollID, text string, options []string, durationSec int) ([]Instruction, error) {
	s := d.resolveFor(connID, pollID)
	if s == nil {
		return nil, ErrNotFound
	}
	return s.AskQuestion(connID, text, options, durationSec)
}

// SubmitAnswer routes a student's answer to its session.
func (d *Directory) SubmitAnswer(connID, pollID, questionID, optionID string) ([]Instruction, error) {
	s := d.resolveFor(connID, pollID)
	if s == nil {
		return nil, ErrNotFound
	}
	return s.SubmitAnswer(connID, questionID, optionID)
}

// EndQuestion routes a teacher's end-question to its session.
func (d *Directory) EndQuestion(connID, pollID string) ([]Instruction, error) {
	s := d.resolveFor(connID, pollID)
	if s == nil {
		return nil, ErrNotFound
	}
	return s.EndQuestion(connID)
}

// RemoveStudent expels a roster member and unbinds its connection.
func (d *Directory) RemoveStudent(connID, pollID, studentID string) ([]Instruction, error) {
	s := d.resolveFor(connID, pollID)
	if s == nil {
		return nil, ErrNotFound
	}
	removedConn, insts, err := s.RemoveStudent(connID, studentID)
	if err != nil {
		return nil, err
	}
	d.registry.Unbind(removedConn)
	return insts, nil
}

// ExpireQuestion delivers a question-clock fire to its session. Unknown
// sessions or since-resolved questions are no-ops.
func (d *Directory) ExpireQuestion(sessionID, questionID string) []Instruction {
	s := d.sessions[sessionID]
	if s == nil {
		return nil
	}
	return s.ExpireQuestion(questionID)
}

// Chat relays a chat line to the sender's room with a server-assigned id and
// timestamp. The bound role wins over the client-claimed one.
func (d *Directory) Chat(connID, pollID, from, role, message string) []Instruction {
	s := d.resolveFor(connID, pollID)
	if s == nil {
		return nil
	}
	if _, boundRole, ok := d.registry.Lookup(connID); ok {
		role = string(boundRole)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	message = truncate(message, maxChatLen)
	msg := models.ChatMessage{
		ID:      newID(),
		At:      d.clock.Now(),
		From:    from,
		Role:    role,
		Message: message,
	}
	return []Instruction{
		toRoom(s.ID, EventChatMessage, msg),
	}
}

// Detach handles a connection loss. Teachers leave their session leaderless
// (and drop the active pointer when it pointed there); students shrink the
// roster, which may complete the active question. Pending students are
// dequeued. Unknown connections are a no-op.
func (d *Directory) Detach(connID string) []Instruction {
	for i, p := range d.pending {
		if p.ConnID == connID {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			break
		}
	}

	s, role, ok := d.registry.Lookup(connID)
	if !ok {
		return nil
	}
	d.registry.Unbind(connID)

	switch role {
	case RoleTeacher:
		s.DetachTeacher(connID)
		if d.activeID == s.ID {
			d.activeID = ""
		}
		d.logger.Info("teacher detached", zap.String("session_id", s.ID))
		return nil
	case RoleStudent:
		return s.DetachStudent(connID)
	}
	return nil
}
