// Package mapper manages versioned mapper configurations. A configuration
// bundles the rules, templates, and feedback settings that turn a mindscape
// into a persona. Versions are immutable: every change, including automatic
// weight adjustments, publishes a new version and deprecates the old one.
package mapper

import (
	"fmt"
	"time"

	"github.com/personakit/personakit/internal/rules"
)

// Configuration statuses.
const (
	StatusDraft      = "draft"
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
)

// Weight bounds enforced on every rule.
const (
	MinWeight = 0.1
	MaxWeight = 2.0
)

// FeedbackSettings tunes the automatic weight adjustment loop.
type FeedbackSettings struct {
	NegativeThreshold int           `json:"negative_threshold"`
	NegativeWindow    time.Duration `json:"negative_window"`
	PositiveFactor    float64       `json:"positive_factor"`
	NegativeFactor    float64       `json:"negative_factor"`
	Cooldown          time.Duration `json:"cooldown"`
}

// DefaultFeedbackSettings returns the standard adjustment policy: boost on
// any helpful signal, damp only after repeated negative signals in a week,
// at most one adjustment per rule per day.
func DefaultFeedbackSettings() FeedbackSettings {
	return FeedbackSettings{
		NegativeThreshold: 5,
		NegativeWindow:    7 * 24 * time.Hour,
		PositiveFactor:    1.1,
		NegativeFactor:    0.8,
		Cooldown:          24 * time.Hour,
	}
}

// Adjustment is one audit record of a rule weight change.
type Adjustment struct {
	RuleID         string    `json:"rule_id"`
	PreviousWeight float64   `json:"previous_weight"`
	NewWeight      float64   `json:"new_weight"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// Configuration is one immutable version of a mapper.
type Configuration struct {
	ID             string            `json:"id"`
	MapperID       string            `json:"mapper_id"`
	Version        int               `json:"version"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	RequiredTraits []string          `json:"required_traits,omitempty"`
	Rules          []rules.Rule      `json:"rules"`
	Templates      map[string]string `json:"templates"`
	Feedback       FeedbackSettings  `json:"feedback"`
	PersonaTTL     time.Duration     `json:"persona_ttl"`
	Status         string            `json:"status"`
	Audit          []Adjustment      `json:"audit,omitempty"`
	CreatedBy      string            `json:"created_by,omitempty"`
	UsageCount     int               `json:"usage_count"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Rule returns the rule with the given id, if present.
func (c *Configuration) Rule(id string) (rules.Rule, bool) {
	for _, r := range c.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return rules.Rule{}, false
}

// Validate checks the structural invariants a configuration must satisfy
// before it can be published. Condition trees are already validated during
// JSON decoding.
func (c *Configuration) Validate() error {
	if c.MapperID == "" {
		return fmt.Errorf("mapper_id is required")
	}
	if len(c.Rules) == 0 {
		return fmt.Errorf("configuration needs at least one rule")
	}

	seen := map[string]bool{}
	for i, r := range c.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule %d has no id", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
		if r.Weight < MinWeight || r.Weight > MaxWeight {
			return fmt.Errorf("rule %q weight %.2f outside [%.1f, %.1f]", r.ID, r.Weight, MinWeight, MaxWeight)
		}
		if len(r.Actions) == 0 {
			return fmt.Errorf("rule %q has no actions", r.ID)
		}
		for _, action := range r.Actions {
			if action.Type != "suggest" {
				return fmt.Errorf("rule %q has unsupported action type %q", r.ID, action.Type)
			}
			if _, ok := c.Templates[action.Template]; !ok {
				return fmt.Errorf("rule %q references unknown template %q", r.ID, action.Template)
			}
		}
	}
	return nil
}

// ClampWeight bounds a weight to the allowed range.
func ClampWeight(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}
