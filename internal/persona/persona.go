// Package persona generates time-bounded persona snapshots from a person's
// mindscape and a mapper configuration, and caches them until they expire
// or the underlying traits change.
package persona

import (
	"fmt"
	"time"

	"github.com/personakit/personakit/internal/rules"
)

// Persona is a generated, expiring view of a person for one mapper.
type Persona struct {
	ID               string             `json:"id"`
	PersonID         string             `json:"person_id"`
	MapperID         string             `json:"mapper_id"`
	MapperVersion    int                `json:"mapper_version"`
	MindscapeVersion int64              `json:"mindscape_version"`
	Core             map[string]any     `json:"core"`
	Overlay          map[string]any     `json:"overlay"`
	Suggestions      []rules.Suggestion `json:"suggestions"`
	GeneratedAt      time.Time          `json:"generated_at"`
	ExpiresAt        time.Time          `json:"expires_at"`
}

// Expired reports whether the persona is past its TTL.
func (p *Persona) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// MissingTraitsError reports which required traits a person does not have
// yet. Callers surface it as "not enough data", not as a system failure.
type MissingTraitsError struct {
	MapperID string
	Missing  []string
}

func (e *MissingTraitsError) Error() string {
	return fmt.Sprintf("mapper %s requires traits not yet observed: %v", e.MapperID, e.Missing)
}
