package traits

import (
	"fmt"
	"time"
)

// Observation types understood by the extractor. Unknown types yield an
// empty delta, not an error, so replays and forward-compatible producers
// are harmless.
const (
	ObservationWorkSession   = "work_session"
	ObservationUserInput     = "user_input"
	ObservationCalendarEvent = "calendar_event"
)

// ValidationError marks a structurally invalid observation payload. It is
// permanent: retrying the task cannot fix it.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "invalid observation payload: " + e.Msg }

// Extractor derives partial trait deltas from observation content.
// It is pure and deterministic: no I/O, no clock reads beyond the supplied
// observation time, safe to replay under at-least-once delivery.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract returns the trait delta for an observation. observedAt stamps
// every produced entry so replace-if-newer merges stay deterministic.
func (e *Extractor) Extract(obsType string, content map[string]any, observedAt time.Time) (Delta, error) {
	if content == nil {
		return nil, &ValidationError{Msg: "content must be an object"}
	}

	switch obsType {
	case ObservationWorkSession:
		return e.extractWorkSession(content, observedAt)
	case ObservationUserInput:
		return e.extractUserInput(content, observedAt)
	case ObservationCalendarEvent:
		return e.extractCalendar(content, observedAt)
	default:
		return Delta{}, nil
	}
}

func (e *Extractor) extractWorkSession(content map[string]any, at time.Time) (Delta, error) {
	delta := Delta{}

	if raw, ok := content["duration_minutes"]; ok {
		duration, ok := asFloat(raw)
		if !ok {
			return nil, &ValidationError{Msg: "duration_minutes must be numeric"}
		}
		// High confidence for a direct measurement.
		delta["work.focus_duration"] = DeltaEntry{
			Entry:  Entry{Value: duration, Confidence: 0.9, SampleSize: 1, UpdatedAt: at},
			Policy: PolicyWeightedAverage,
		}
	}

	start, hasStart := content["start"]
	if rawScore, ok := content["productivity_score"]; ok && hasStart {
		score, ok := asFloat(rawScore)
		if !ok {
			return nil, &ValidationError{Msg: "productivity_score must be numeric"}
		}
		if hour, ok := parseHour(start); ok {
			if score >= 4 {
				slot := fmt.Sprintf("%02d:00-%02d:00", hour, (hour+1)%24)
				delta["work.peak_hours"] = DeltaEntry{
					Entry:  Entry{Value: []any{slot}, Confidence: 0.7, SampleSize: 1, UpdatedAt: at},
					Policy: PolicyAppendUnique,
				}
			}
			delta["current_state.energy_level"] = DeltaEntry{
				Entry:  Entry{Value: energyFromScore(score), Confidence: 0.6, SampleSize: 1, UpdatedAt: at},
				Policy: PolicyReplaceIfNewer,
			}
		}
	}

	if raw, ok := content["interruptions"]; ok {
		interruptions, ok := asFloat(raw)
		if !ok {
			return nil, &ValidationError{Msg: "interruptions must be numeric"}
		}
		cost := "low"
		switch {
		case interruptions >= 3:
			cost = "high"
		case interruptions >= 1:
			cost = "medium"
		}
		delta["work.task_switching_cost"] = DeltaEntry{
			Entry:  Entry{Value: cost, Confidence: 0.7, SampleSize: 1, UpdatedAt: at},
			Policy: PolicyReplaceIfNewer,
		}
	}

	return delta, nil
}

func (e *Extractor) extractUserInput(content map[string]any, at time.Time) (Delta, error) {
	inputType, _ := content["type"].(string)

	switch inputType {
	case "energy_check":
		energy, ok := content["energy_level"].(string)
		if !ok || energy == "" {
			return nil, &ValidationError{Msg: "energy_check requires energy_level"}
		}
		// Direct user input gets full confidence.
		return Delta{
			"current_state.energy_level": {
				Entry:  Entry{Value: energy, Confidence: 1.0, SampleSize: 1, UpdatedAt: at},
				Policy: PolicyReplaceIfNewer,
			},
		}, nil

	case "wizard_response":
		responses, ok := content["responses"].(map[string]any)
		if !ok {
			return nil, &ValidationError{Msg: "wizard_response requires responses object"}
		}
		return e.extractWizard(responses, at), nil
	}

	return Delta{}, nil
}

func (e *Extractor) extractWizard(responses map[string]any, at time.Time) Delta {
	delta := Delta{}

	if productive, _ := responses["most_productive"].(string); productive != "" {
		timeMap := map[string][]any{
			"morning":   {"06:00-12:00"},
			"afternoon": {"12:00-18:00"},
			"evening":   {"18:00-23:00"},
			"varies":    {"09:00-11:00", "14:00-16:00"},
		}
		if ranges, ok := timeMap[productive]; ok {
			delta["work.energy_patterns"] = DeltaEntry{
				Entry:  Entry{Value: ranges, Confidence: 0.8, SampleSize: 1, UpdatedAt: at},
				Policy: PolicyAppendUnique,
			}
			delta["work.peak_hours"] = DeltaEntry{
				Entry:  Entry{Value: ranges, Confidence: 0.8, SampleSize: 1, UpdatedAt: at},
				Policy: PolicyAppendUnique,
			}
		}
	}

	if focus, _ := responses["focus_duration"].(string); focus != "" {
		durationMap := map[string]float64{"30min": 30, "1hr": 60, "2hr+": 120}
		if minutes, ok := durationMap[focus]; ok {
			delta["work.focus_duration"] = DeltaEntry{
				Entry:  Entry{Value: minutes, Confidence: 0.9, SampleSize: 1, UpdatedAt: at},
				Policy: PolicyWeightedAverage,
			}
		}
	}

	if disruptor, _ := responses["flow_disruptor"].(string); disruptor != "" {
		costMap := map[string]string{
			"meetings":         "high",
			"slack":            "medium",
			"context-switches": "high",
			"email":            "low",
		}
		cost, ok := costMap[disruptor]
		if !ok {
			cost = "medium"
		}
		delta["work.task_switching_cost"] = DeltaEntry{
			Entry:  Entry{Value: cost, Confidence: 0.8, SampleSize: 1, UpdatedAt: at},
			Policy: PolicyReplaceIfNewer,
		}
	}

	return delta
}

func (e *Extractor) extractCalendar(content map[string]any, at time.Time) (Delta, error) {
	eventType, _ := content["type"].(string)
	if eventType != "meeting" {
		return Delta{}, nil
	}

	duration := 60.0
	if raw, ok := content["duration_minutes"]; ok {
		d, ok := asFloat(raw)
		if !ok {
			return nil, &ValidationError{Msg: "duration_minutes must be numeric"}
		}
		duration = d
	}

	recovery := 45.0
	switch {
	case duration <= 30:
		recovery = 15
	case duration <= 60:
		recovery = 30
	}

	// Lower confidence: recovery time is inferred, not measured.
	return Delta{
		"work.meeting_recovery_time": {
			Entry:  Entry{Value: recovery, Confidence: 0.5, SampleSize: 1, UpdatedAt: at},
			Policy: PolicyWeightedAverage,
		},
	}, nil
}

func energyFromScore(score float64) string {
	switch {
	case score >= 4:
		return "high"
	case score >= 3:
		return "medium"
	default:
		return "low"
	}
}

// asFloat coerces JSON numbers (and ints from Go callers) to float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// parseHour extracts the hour from an ISO timestamp string or time.Time.
func parseHour(v any) (int, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.Hour(), true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.Hour(), true
			}
		}
	}
	return 0, false
}
