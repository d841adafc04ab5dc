package traits

import (
	"testing"
	"time"
)

func TestMergeWeightedAverage(t *testing.T) {
	older := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	existing := Entry{Value: 60.0, Confidence: 0.9, SampleSize: 3, UpdatedAt: older}
	incoming := DeltaEntry{
		Entry:  Entry{Value: 120.0, Confidence: 0.9, SampleSize: 1, UpdatedAt: newer},
		Policy: PolicyWeightedAverage,
	}

	merged := Merge(existing, incoming)
	if merged.Value != 75.0 {
		t.Errorf("expected (60*3+120*1)/4 = 75, got %v", merged.Value)
	}
	if merged.SampleSize != 4 {
		t.Errorf("expected sample size 4, got %d", merged.SampleSize)
	}
	if merged.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", merged.Confidence)
	}
	if !merged.UpdatedAt.Equal(newer) {
		t.Errorf("expected updated_at %v, got %v", newer, merged.UpdatedAt)
	}
}

func TestMergeWeightedAverageNonNumeric(t *testing.T) {
	now := time.Now().UTC()
	existing := Entry{Value: "medium", Confidence: 0.5, SampleSize: 1, UpdatedAt: now}
	incoming := DeltaEntry{
		Entry:  Entry{Value: "high", Confidence: 0.9, SampleSize: 1, UpdatedAt: now},
		Policy: PolicyWeightedAverage,
	}
	if merged := Merge(existing, incoming); merged.Value != "high" {
		t.Errorf("higher confidence value must win, got %v", merged.Value)
	}

	// Reversed confidence keeps the existing value.
	existing.Confidence, incoming.Confidence = 0.9, 0.5
	if merged := Merge(existing, incoming); merged.Value != "medium" {
		t.Errorf("existing value must survive lower-confidence update, got %v", merged.Value)
	}
}

func TestMergeReplaceIfNewer(t *testing.T) {
	older := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	existing := Entry{Value: "low", Confidence: 0.6, SampleSize: 1, UpdatedAt: newer}
	stale := DeltaEntry{
		Entry:  Entry{Value: "high", Confidence: 0.6, SampleSize: 1, UpdatedAt: older},
		Policy: PolicyReplaceIfNewer,
	}
	if merged := Merge(existing, stale); merged.Value != "low" {
		t.Errorf("stale delta must not replace, got %v", merged.Value)
	}

	fresh := DeltaEntry{
		Entry:  Entry{Value: "high", Confidence: 0.6, SampleSize: 1, UpdatedAt: newer.Add(time.Hour)},
		Policy: PolicyReplaceIfNewer,
	}
	if merged := Merge(existing, fresh); merged.Value != "high" {
		t.Errorf("newer delta must replace, got %v", merged.Value)
	}
}

func TestMergeAppendUnique(t *testing.T) {
	now := time.Now().UTC()
	existing := Entry{Value: []any{"09:00-10:00"}, Confidence: 0.7, SampleSize: 2, UpdatedAt: now}
	incoming := DeltaEntry{
		Entry:  Entry{Value: []any{"09:00-10:00", "14:00-15:00"}, Confidence: 0.7, SampleSize: 1, UpdatedAt: now},
		Policy: PolicyAppendUnique,
	}

	merged := Merge(existing, incoming)
	list, ok := merged.Value.([]any)
	if !ok {
		t.Fatalf("expected list value, got %T", merged.Value)
	}
	if len(list) != 2 || list[0] != "09:00-10:00" || list[1] != "14:00-15:00" {
		t.Errorf("expected deduplicated union, got %v", list)
	}
}

func TestMergeConfidenceRounded(t *testing.T) {
	now := time.Now().UTC()
	existing := Entry{Value: 10.0, Confidence: 0.9, SampleSize: 2, UpdatedAt: now}
	incoming := DeltaEntry{
		Entry:  Entry{Value: 20.0, Confidence: 0.5, SampleSize: 1, UpdatedAt: now},
		Policy: PolicyWeightedAverage,
	}
	// (0.9*2 + 0.5*1) / 3 = 0.7666... -> 0.767
	if merged := Merge(existing, incoming); merged.Confidence != 0.767 {
		t.Errorf("expected confidence 0.767, got %v", merged.Confidence)
	}
}
