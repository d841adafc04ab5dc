package rules

import (
	"strings"

	"github.com/personakit/personakit/internal/traits"
)

// Resolve looks up a dotted path in a trait map. Trait keys are themselves
// dotted, so resolution finds the longest key that prefixes the path and
// then navigates any remaining segments into the entry's value.
// "work.focus_duration" hits the entry directly; "work.energy_patterns.current"
// hits the "work.energy_patterns" entry and descends into its map value.
func Resolve(tr map[string]traits.Entry, path string) (any, bool) {
	if entry, ok := tr[path]; ok {
		return entry.Value, true
	}

	best := ""
	for key := range tr {
		if strings.HasPrefix(path, key+".") && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return nil, false
	}

	value := tr[best].Value
	for _, segment := range strings.Split(path[len(best)+1:], ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return value, true
}

// ResolveContext looks up a dotted key in a request context map.
func ResolveContext(ctx map[string]any, key string) (any, bool) {
	if v, ok := ctx[key]; ok {
		return v, true
	}
	value := any(ctx)
	for _, segment := range strings.Split(key, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return value, true
}
