package persona

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/personakit/personakit/internal/staleness"
)

// Registry is an in-memory cache of generated personas. Entries expire at
// their TTL and are invalidated early when the person's mindscape changes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Persona
	now     func() time.Time
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*Persona),
		now:     time.Now,
		logger:  logger,
	}
}

func cacheKey(personID, mapperID string) string {
	return personID + "/" + mapperID
}

// Get returns a cached persona if present and not expired.
func (r *Registry) Get(personID, mapperID string) (*Persona, bool) {
	r.mu.RLock()
	p, ok := r.entries[cacheKey(personID, mapperID)]
	r.mu.RUnlock()
	if !ok || p.Expired(r.now().UTC()) {
		return nil, false
	}
	return p, true
}

// Put caches a persona until it expires or is invalidated.
func (r *Registry) Put(p *Persona) {
	r.mu.Lock()
	r.entries[cacheKey(p.PersonID, p.MapperID)] = p
	r.mu.Unlock()
}

// Invalidate drops all cached personas for a person.
func (r *Registry) Invalidate(personID string) {
	r.mu.Lock()
	for key, p := range r.entries {
		if p.PersonID == personID {
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()
}

// InvalidateMapper drops all cached personas built from the given mapper.
// Called when a new configuration version is published, so a cached persona
// never outlives a weight adjustment.
func (r *Registry) InvalidateMapper(mapperID string) {
	r.mu.Lock()
	for key, p := range r.entries {
		if p.MapperID == mapperID {
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()
}

// Len returns the number of cached personas, including not-yet-purged
// expired ones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Watch invalidates cached personas as staleness events arrive, and purges
// expired entries periodically. Runs until the context is cancelled.
func (r *Registry) Watch(ctx context.Context, events <-chan staleness.Event) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			r.Invalidate(ev.PersonID)
			r.logger.Debug("Cached personas invalidated",
				"person_id", ev.PersonID, "mindscape_version", ev.Version)
		case <-ticker.C:
			r.purge()
		}
	}
}

func (r *Registry) purge() {
	now := r.now().UTC()
	r.mu.Lock()
	for key, p := range r.entries {
		if p.Expired(now) {
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()
}
