package models

import (
	"time"
)

// QuestionStatus is the lifecycle state of a question.
type QuestionStatus string

const (
	QuestionActive   QuestionStatus = "active"
	QuestionFinished QuestionStatus = "finished"
)

// FinishReason records why a question stopped accepting answers.
type FinishReason string

const (
	ReasonTimeout     FinishReason = "timeout"
	ReasonAllAnswered FinishReason = "all_answered"
	ReasonTeacherEnd  FinishReason = "teacher_end"
)

// Option is one answer choice with its running count.
type Option struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Question is the single active question of a poll session.
// Responded holds the connection IDs that have already answered; a connection
// may answer at most once and the total is derived from the set size.
type Question struct {
	ID          string
	Text        string
	Options     []Option
	AskedAt     time.Time
	DurationSec int
	Status      QuestionStatus
	Responded   map[string]bool
}

// TotalAnswers is the number of distinct connections that have answered.
func (q *Question) TotalAnswers() int {
	return len(q.Responded)
}

// HasAnswered reports whether the connection already submitted an answer.
func (q *Question) HasAnswered(connID string) bool {
	return q.Responded[connID]
}

// QuestionResult is the immutable snapshot of a finished question.
type QuestionResult struct {
	QuestionID   string       `json:"questionId"`
	Text         string       `json:"text"`
	Options      []Option     `json:"options"`
	TotalAnswers int          `json:"totalAnswers"`
	DurationSec  int          `json:"durationSec"`
	Reason       FinishReason `json:"reason"`
	FinishedAt   time.Time    `json:"finishedAt"`
}

// OptionView is an option as announced to the room: counts hidden.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the question as announced when asked. Per-option counts are
// never revealed while the question is active.
type QuestionView struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Options     []OptionView `json:"options"`
	AskedAt     time.Time    `json:"askedAt"`
	DurationSec int          `json:"durationSec"`
}

// View returns the count-free announcement form of the question.
func (q *Question) View() QuestionView {
	opts := make([]OptionView, len(q.Options))
	for i, o := range q.Options {
		opts[i] = OptionView{ID: o.ID, Text: o.Text}
	}
	return QuestionView{
		ID:          q.ID,
		Text:        q.Text,
		Options:     opts,
		AskedAt:     q.AskedAt,
		DurationSec: q.DurationSec,
	}
}

// Result builds the immutable snapshot for history. Option counts are copied
// so later mutation of the live slice cannot leak into history.
func (q *Question) Result(reason FinishReason, finishedAt time.Time) QuestionResult {
	opts := make([]Option, len(q.Options))
	copy(opts, q.Options)
	return QuestionResult{
		QuestionID:   q.ID,
		Text:         q.Text,
		Options:      opts,
		TotalAnswers: q.TotalAnswers(),
		DurationSec:  q.DurationSec,
		Reason:       reason,
		FinishedAt:   finishedAt,
	}
}
