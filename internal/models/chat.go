package models

import "time"

// ChatMessage is a chat line relayed to a session's room. ID and At are
// assigned server-side.
type ChatMessage struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	From    string    `json:"from"`
	Role    string    `json:"role"`
	Message string    `json:"message"`
}
