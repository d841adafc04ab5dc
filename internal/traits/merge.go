package traits

import (
	"math"
	"strconv"
)

// Merge combines an existing trait entry with an incoming delta according to
// the delta's policy. Confidence is always merged as a sample-weighted
// average (rounded to 3 decimals) and sample sizes accumulate, so repeated
// evidence narrows toward observed values.
func Merge(existing Entry, incoming DeltaEntry) Entry {
	totalSamples := existing.SampleSize + incoming.SampleSize
	if totalSamples <= 0 {
		totalSamples = 1
	}
	confidence := round3((existing.Confidence*float64(existing.SampleSize) +
		incoming.Confidence*float64(incoming.SampleSize)) / float64(totalSamples))

	merged := Entry{
		Confidence: confidence,
		SampleSize: totalSamples,
		UpdatedAt:  incoming.UpdatedAt,
	}
	if existing.UpdatedAt.After(incoming.UpdatedAt) {
		merged.UpdatedAt = existing.UpdatedAt
	}

	switch incoming.Policy {
	case PolicyReplaceIfNewer:
		if incoming.UpdatedAt.Before(existing.UpdatedAt) {
			merged.Value = existing.Value
		} else {
			merged.Value = incoming.Value
		}
	case PolicyAppendUnique:
		merged.Value = unionLists(existing.Value, incoming.Value)
	default: // PolicyWeightedAverage
		merged.Value = weightedValue(existing, incoming.Entry)
	}

	return merged
}

// weightedValue averages numeric values by sample size. Lists union, and
// anything else keeps whichever side reported higher confidence.
func weightedValue(existing, incoming Entry) any {
	ev, eok := toFloat(existing.Value)
	nv, nok := toFloat(incoming.Value)
	if eok && nok {
		total := existing.SampleSize + incoming.SampleSize
		if total <= 0 {
			total = 1
		}
		return (ev*float64(existing.SampleSize) + nv*float64(incoming.SampleSize)) / float64(total)
	}

	if isList(existing.Value) && isList(incoming.Value) {
		return unionLists(existing.Value, incoming.Value)
	}

	if incoming.Confidence > existing.Confidence {
		return incoming.Value
	}
	return existing.Value
}

// unionLists combines two list values preserving first-seen order.
// Non-list inputs are treated as single-element lists.
func unionLists(a, b any) any {
	var out []any
	seen := map[string]bool{}
	for _, v := range append(toList(a), toList(b)...) {
		key := stringKey(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func toList(v any) []any {
	switch l := v.(type) {
	case nil:
		return nil
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []string:
		return true
	default:
		return false
	}
}

func stringKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := toFloat(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "?"
}

func toFloat(v any) (float64, bool) {
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

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
