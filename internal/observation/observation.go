// Package observation handles intake and storage of raw behavioral
// observations. Recording an observation and enqueueing its processing task
// happen in one transaction, so an accepted observation is always eventually
// processed.
package observation

import (
	"time"
)

// Observation is a raw behavioral event about a person.
type Observation struct {
	ID        string         `json:"id"`
	PersonID  string         `json:"person_id"`
	Type      string         `json:"type"`
	Content   map[string]any `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TaskPayload is the outbox payload for processing one observation.
type TaskPayload struct {
	ObservationID string `json:"observation_id"`
	PersonID      string `json:"person_id"`
}
