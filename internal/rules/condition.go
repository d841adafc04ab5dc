// Package rules evaluates declarative mapper rules against a person's
// traits, narrative search results, and request context, producing weighted
// persona suggestions.
package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Condition types. The set is closed: configurations carrying an unknown
// type are rejected at load time, not silently skipped at evaluation time.
const (
	CondAll       = "all"
	CondAny       = "any"
	CondTrait     = "trait"
	CondNarrative = "narrative"
	CondContext   = "context"
)

// Comparison operators usable in trait and context checks.
const (
	OpExists    = "exists"
	OpNotExists = "not_exists"
	OpEquals    = "equals"
	OpNotEquals = "not_equals"
	OpGreater   = "greater"
	OpLess      = "less"
	OpContains  = "contains"
)

// Condition is one node of a rule's condition tree. Exactly one variant
// field is set, selected by Type.
type Condition struct {
	Type string `json:"type"`

	// all / any
	Conditions []Condition `json:"conditions,omitempty"`

	// trait / context checks
	Path     string `json:"path,omitempty"`
	Key      string `json:"key,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value,omitempty"`

	// narrative checks
	Query      string   `json:"query,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
	MinResults int      `json:"min_results,omitempty"`
}

// UnmarshalJSON validates the condition tree as it is decoded so malformed
// configurations fail at load time.
func (c *Condition) UnmarshalJSON(data []byte) error {
	type alias Condition
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Condition(raw)
	return c.validate()
}

func (c *Condition) validate() error {
	switch c.Type {
	case CondAll, CondAny:
		if len(c.Conditions) == 0 {
			return fmt.Errorf("%q condition requires nested conditions", c.Type)
		}
	case CondTrait:
		if c.Path == "" {
			return fmt.Errorf("trait condition requires a path")
		}
		return validOperator(c.Operator)
	case CondContext:
		if c.Key == "" {
			return fmt.Errorf("context condition requires a key")
		}
		return validOperator(c.Operator)
	case CondNarrative:
		if c.Query == "" {
			return fmt.Errorf("narrative condition requires a query")
		}
		if c.MinResults < 0 {
			return fmt.Errorf("narrative min_results must be non-negative")
		}
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	return nil
}

func validOperator(op string) error {
	switch op {
	case OpExists, OpNotExists, OpEquals, OpNotEquals, OpGreater, OpLess, OpContains:
		return nil
	}
	return fmt.Errorf("unknown operator %q", op)
}

// compare applies op to a resolved value. A missing value (found=false)
// satisfies only not_exists.
func compare(value any, found bool, op string, expected any) bool {
	switch op {
	case OpExists:
		return found
	case OpNotExists:
		return !found
	}
	if !found {
		return false
	}

	switch op {
	case OpEquals:
		return equalValues(value, expected)
	case OpNotEquals:
		return !equalValues(value, expected)
	case OpGreater:
		a, aok := numeric(value)
		b, bok := numeric(expected)
		return aok && bok && a > b
	case OpLess:
		a, aok := numeric(value)
		b, bok := numeric(expected)
		return aok && bok && a < b
	case OpContains:
		return containsValue(value, expected)
	}
	return false
}

func equalValues(a, b any) bool {
	if na, aok := numeric(a); aok {
		if nb, bok := numeric(b); bok {
			return na == nb
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, fmt.Sprintf("%v", needle))
	case []any:
		for _, item := range h {
			if equalValues(item, needle) {
				return true
			}
		}
	case []string:
		for _, item := range h {
			if equalValues(item, needle) {
				return true
			}
		}
	}
	return false
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
