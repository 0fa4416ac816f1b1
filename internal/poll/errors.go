package poll

import "errors"

// Sentinel errors for session operations. All of these are local to the
// requesting connection: the gateway reports NotAuthorized and
// QuestionInProgress back to the actor and swallows the rest as stale-client
// noise. No error is ever broadcast to the room.
var (
	// ErrNotAuthorized means the action requires the session's bound teacher.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrQuestionInProgress means a question is still active and unresolved.
	ErrQuestionInProgress = errors.New("a question is already in progress")

	// ErrNotFound means the referenced session, question, option or student
	// does not exist. Treated as a silent no-op at the gateway.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyAnswered means the connection already answered this question.
	ErrAlreadyAnswered = errors.New("already answered")
)
