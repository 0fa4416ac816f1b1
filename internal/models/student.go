package models

import "time"

// Student is a roster entry of a poll session.
type Student struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"-"`
}

// PendingStudent is a student who connected before any session had a teacher.
// Held in the directory's pending queue until a teacher attaches or the
// connection drops.
type PendingStudent struct {
	ConnID string
	Name   string
}
