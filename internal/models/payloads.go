package models

// Wire payloads for server -> client events. Field names follow the realtime
// protocol, not Go conventions.

// TeacherReady is sent to a teacher after attaching to a session.
type TeacherReady struct {
	PollID          string           `json:"pollId"`
	Students        []Student        `json:"students"`
	CurrentQuestion *QuestionView    `json:"currentQuestion"`
	PastQuestions   []QuestionResult `json:"pastQuestions"`
}

// StudentReady is sent to a student after joining a session's roster.
type StudentReady struct {
	CurrentQuestion *QuestionView    `json:"currentQuestion"`
	PastQuestions   []QuestionResult `json:"pastQuestions"`
}

// RosterUpdate is broadcast whenever the roster changes.
type RosterUpdate struct {
	Students []Student `json:"students"`
}

// ResultsUpdate is broadcast after each accepted answer.
type ResultsUpdate struct {
	QuestionID    string   `json:"questionId"`
	Options       []Option `json:"options"`
	TotalAnswers  int      `json:"totalAnswers"`
	StudentsTotal int      `json:"studentsTotal"`
}

// ErrorMessage is sent only to the connection whose request failed.
type ErrorMessage struct {
	Text string `json:"text"`
}
