package poll

// Role distinguishes how a connection is bound to a session.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

type binding struct {
	session *Session
	role    Role
}

// Registry maps connection IDs to their (session, role) binding so disconnect
// cleanup is O(1). It is only ever touched from the engine goroutine, so it
// carries no lock.
type Registry struct {
	conns map[string]binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]binding)}
}

// BindTeacher records conn as the teacher of session, replacing any prior
// binding for that connection.
func (r *Registry) BindTeacher(connID string, s *Session) {
	r.conns[connID] = binding{session: s, role: RoleTeacher}
}

// BindStudent records conn as a student of session.
func (r *Registry) BindStudent(connID string, s *Session) {
	r.conns[connID] = binding{session: s, role: RoleStudent}
}

// Lookup resolves the session and role a connection is bound to. Unknown
// connections resolve to (nil, "", false); that is not an error.
func (r *Registry) Lookup(connID string) (*Session, Role, bool) {
	b, ok := r.conns[connID]
	if !ok {
		return nil, "", false
	}
	return b.session, b.role, true
}

// Unbind forgets a connection. Safe to call for unknown connections.
func (r *Registry) Unbind(connID string) {
	delete(r.conns, connID)
}
