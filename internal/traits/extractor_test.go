package traits

import (
	"errors"
	"testing"
	"time"
)

var testTime = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func TestExtractWorkSessionDuration(t *testing.T) {
	e := NewExtractor()
	delta, err := e.Extract(ObservationWorkSession, map[string]any{
		"duration_minutes": 90.0,
	}, testTime)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	entry, ok := delta["work.focus_duration"]
	if !ok {
		t.Fatal("expected work.focus_duration in delta")
	}
	if entry.Value != 90.0 {
		t.Errorf("expected value 90, got %v", entry.Value)
	}
	if entry.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", entry.Confidence)
	}
	if entry.Policy != PolicyWeightedAverage {
		t.Errorf("expected weighted_average policy, got %s", entry.Policy)
	}
}

func TestExtractWorkSessionProductiveMorning(t *testing.T) {
	e := NewExtractor()
	delta, err := e.Extract(ObservationWorkSession, map[string]any{
		"start":              "2025-06-02T09:00:00Z",
		"productivity_score": 5.0,
	}, testTime)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	peak, ok := delta["work.peak_hours"]
	if !ok {
		t.Fatal("expected work.peak_hours for high productivity")
	}
	slots, ok := peak.Value.([]any)
	if !ok || len(slots) != 1 || slots[0] != "09:00-10:00" {
		t.Errorf("expected peak slot 09:00-10:00, got %v", peak.Value)
	}

	energy, ok := delta["current_state.energy_level"]
	if !ok {
		t.Fatal("expected current_state.energy_level")
	}
	if energy.Value != "high" {
		t.Errorf("expected high energy for score 5, got %v", energy.Value)
	}
}

func TestExtractWorkSessionLowProductivityNoPeak(t *testing.T) {
	e := NewExtractor()
	delta, err := e.Extract(ObservationWorkSession, map[string]any{
		"start":              "2025-06-02T14:00:00Z",
		"productivity_score": 2.0,
	}, testTime)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if _, ok := delta["work.peak_hours"]; ok {
		t.Error("low productivity must not mark peak hours")
	}
	if energy := delta["current_state.energy_level"]; energy.Value != "low" {
		t.Errorf("expected low energy for score 2, got %v", energy.Value)
	}
}

func TestExtractWorkSessionInterruptions(t *testing.T) {
	e := NewExtractor()
	cases := []struct {
		interruptions float64
		want          string
	}{
		{0, "low"},
		{1, "medium"},
		{2, "medium"},
		{3, "high"},
		{7, "high"},
	}
	for _, tc := range cases {
		delta, err := e.Extract(ObservationWorkSession, map[string]any{
			"interruptions": tc.interruptions,
		}, testTime)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if got := delta["work.task_switching_cost"].Value; got != tc.want {
			t.Errorf("interruptions=%v: expected %s, got %v", tc.interruptions, tc.want, got)
		}
	}
}

func TestExtractWorkSessionBadDuration(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract(ObservationWorkSession, map[string]any{
		"duration_minutes": "ninety",
	}, testTime)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestExtractUserInputEnergyCheck(t *testing.T) {
	e := NewExtractor()
	delta, err := e.Extract(ObservationUserInput, map[string]any{
		"type":         "energy_check",
		"energy_level": "high",
	}, testTime)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	entry := delta["current_state.energy_level"]
	if entry.Value != "high" || entry.Confidence != 1.0 {
		t.Errorf("expected high/1.0, got %v/%v", entry.Value, entry.Confidence)
	}
}

func TestExtractUserInputWizard(t *testing.T) {
	e := NewExtractor()
	delta, err := e.Extract(ObservationUserInput, map[string]any{
		"type": "wizard_response",
		"responses": map[string]any{
			"most_productive": "morning",
			"focus_duration":  "2hr+",
			"flow_disruptor":  "meetings",
		},
	}, testTime)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if delta["work.focus_duration"].Value != 120.0 {
		t.Errorf("expected 120 minutes for 2hr+, got %v", delta["work.focus_duration"].Value)
	}
	if delta["work.task_switching_cost"].Value != "high" {
		t.Errorf("expected high cost for meetings, got %v", delta["work.task_switching_cost"].Value)
	}
	if _, ok := delta["work.peak_hours"]; !ok {
		t.Error("expected peak hours from wizard response")
	}
}

func TestExtractCalendarMeetingRecovery(t *testing.T) {
	e := NewExtractor()
	cases := []struct {
		duration float64
		want     float64
	}{
		{30, 15},
		{60, 30},
		{90, 45},
	}
	for _, tc := range cases {
		delta, err := e.Extract(ObservationCalendarEvent, map[string]any{
			"type":             "meeting",
			"duration_minutes": tc.duration,
		}, testTime)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if got := delta["work.meeting_recovery_time"].Value; got != tc.want {
			t.Errorf("duration=%v: expected recovery %v, got %v", tc.duration, tc.want, got)
		}
	}
}

func TestExtractUnknownTypeIsEmpty(t *testing.T) {
	e := NewExtractor()
	delta, err := e.Extract("heartbeat", map[string]any{"x": 1}, testTime)
	if err != nil {
		t.Fatalf("unknown type must not error: %v", err)
	}
	if len(delta) != 0 {
		t.Errorf("expected empty delta, got %v", delta)
	}
}
