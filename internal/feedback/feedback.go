// Package feedback records persona feedback and drives the bounded rule
// weight adjustment loop. Helpful signals boost a rule immediately;
// unhelpful signals damp it only after repeated agreement inside a trailing
// window, and every change publishes a new mapper configuration version.
package feedback

import (
	"time"
)

// Feedback is one user signal about a persona or one of its suggestions.
type Feedback struct {
	ID            string         `json:"id"`
	PersonaID     string         `json:"persona_id"`
	RuleID        string         `json:"rule_id,omitempty"`
	MapperID      string         `json:"mapper_id,omitempty"`
	MapperVersion int            `json:"mapper_version,omitempty"`
	Helpful       *bool          `json:"helpful,omitempty"`
	Rating        *int           `json:"rating,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// TaskPayload is the outbox payload for processing one feedback record.
type TaskPayload struct {
	FeedbackID string `json:"feedback_id"`
}

// Summary aggregates feedback for one mapper.
type Summary struct {
	MapperID     string  `json:"mapper_id"`
	Total        int     `json:"total"`
	Helpful      int     `json:"helpful"`
	Unhelpful    int     `json:"unhelpful"`
	AverageScore float64 `json:"average_rating"`
}
