// Package traits defines trait entries, extraction of trait deltas from
// observations, and the per-trait merge policies applied by the mindscape
// updater.
package traits

import "time"

// MergePolicy selects how an incoming delta combines with an existing entry.
type MergePolicy string

const (
	// PolicyWeightedAverage merges numeric values as a sample-weighted
	// running average; non-numeric values fall back to higher confidence.
	PolicyWeightedAverage MergePolicy = "weighted_average"
	// PolicyReplaceIfNewer replaces the value when the delta is newer.
	PolicyReplaceIfNewer MergePolicy = "replace_if_newer"
	// PolicyAppendUnique unions list values and recomputes confidence.
	PolicyAppendUnique MergePolicy = "append_unique"
)

// Entry is a single derived trait value.
type Entry struct {
	Value      any       `json:"value"`
	Confidence float64   `json:"confidence"`
	SampleSize int       `json:"sample_size"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DeltaEntry is an extracted partial trait update tagged with its merge policy.
type DeltaEntry struct {
	Entry
	Policy MergePolicy `json:"policy"`
}

// Delta maps dotted trait paths (e.g. "work.focus_duration") to updates.
type Delta map[string]DeltaEntry
