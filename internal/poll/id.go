package poll

import "github.com/google/uuid"

// newID returns a short opaque identifier (8 hex chars of a UUID). Short ids
// keep session codes and option ids friendly to debug while staying unique
// enough for a process-lifetime, classroom-scale population.
func newID() string {
	return uuid.New().String()[:8]
}
