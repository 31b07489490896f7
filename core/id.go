package core

import "github.com/google/uuid"

// NewID returns a new random identifier used for tasks, steps, audit entries
// and responses.
func NewID() string {
	return uuid.NewString()
}
