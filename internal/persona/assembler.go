package persona

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/personakit/personakit/internal/mapper"
	"github.com/personakit/personakit/internal/metrics"
	"github.com/personakit/personakit/internal/mindscape"
	"github.com/personakit/personakit/internal/rules"
	"github.com/personakit/personakit/internal/traits"
)

// DefaultTTL applies when a configuration does not set a persona TTL.
const DefaultTTL = 24 * time.Hour

// Assembler generates personas.
type Assembler struct {
	mindscapes *mindscape.Store
	mappers    *mapper.Store
	engine     *rules.Engine
	registry   *Registry
	logger     *slog.Logger
}

// NewAssembler wires persona generation. registry may be nil to disable
// caching.
func NewAssembler(mindscapes *mindscape.Store, mappers *mapper.Store, engine *rules.Engine, registry *Registry, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		mindscapes: mindscapes,
		mappers:    mappers,
		engine:     engine,
		registry:   registry,
		logger:     logger,
	}
}

// Get returns a cached persona when one is still fresh, otherwise generates
// a new one. ttlOverride takes precedence over the mapper's TTL when
// positive.
func (a *Assembler) Get(ctx context.Context, personID, mapperID string, reqCtx map[string]any, ttlOverride time.Duration) (*Persona, error) {
	if a.registry != nil {
		if p, ok := a.registry.Get(personID, mapperID); ok {
			return p, nil
		}
	}
	return a.Generate(ctx, personID, mapperID, reqCtx, ttlOverride)
}

// Generate builds a fresh persona from the person's current mindscape and
// the mapper's active configuration. ttlOverride takes precedence over the
// mapper's TTL when positive.
func (a *Assembler) Generate(ctx context.Context, personID, mapperID string, reqCtx map[string]any, ttlOverride time.Duration) (*Persona, error) {
	cfg, err := a.mappers.GetActive(ctx, mapperID)
	if err != nil {
		return nil, fmt.Errorf("load mapper %s: %w", mapperID, err)
	}

	ms, err := a.mindscapes.Get(ctx, personID)
	if err != nil {
		return nil, err
	}

	if missing := missingTraits(cfg.RequiredTraits, ms.Traits); len(missing) > 0 {
		return nil, &MissingTraitsError{MapperID: mapperID, Missing: missing}
	}

	ttl := cfg.PersonaTTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()

	p := &Persona{
		ID:               uuid.NewString(),
		PersonID:         personID,
		MapperID:         cfg.MapperID,
		MapperVersion:    cfg.Version,
		MindscapeVersion: ms.Version,
		Core:             buildCore(ms.Traits),
		Overlay:          buildOverlay(ms.Traits),
		Suggestions:      a.engine.Evaluate(ctx, personID, cfg.Rules, cfg.Templates, ms.Traits, reqCtx),
		GeneratedAt:      now,
		ExpiresAt:        now.Add(ttl),
	}

	if err := a.mappers.TouchUsage(ctx, cfg.ID); err != nil {
		a.logger.Warn("Usage update failed", "mapper_id", mapperID, "error", err)
	}
	metrics.PersonasGenerated.WithLabelValues(mapperID).Inc()
	a.logger.Info("Persona generated",
		"person_id", personID, "mapper_id", mapperID,
		"mapper_version", cfg.Version, "suggestions", len(p.Suggestions))

	if a.registry != nil {
		a.registry.Put(p)
	}
	return p, nil
}

func missingTraits(required []string, tr map[string]traits.Entry) []string {
	var missing []string
	for _, path := range required {
		if _, ok := rules.Resolve(tr, path); !ok {
			missing = append(missing, path)
		}
	}
	return missing
}

// buildCore collects stable traits: everything outside current_state.
func buildCore(tr map[string]traits.Entry) map[string]any {
	core := map[string]any{}
	for path, entry := range tr {
		if strings.HasPrefix(path, "current_state.") {
			continue
		}
		core[path] = map[string]any{
			"value":      entry.Value,
			"confidence": entry.Confidence,
		}
	}
	return core
}

// buildOverlay collects volatile current_state traits.
func buildOverlay(tr map[string]traits.Entry) map[string]any {
	overlay := map[string]any{}
	for path, entry := range tr {
		if !strings.HasPrefix(path, "current_state.") {
			continue
		}
		overlay[strings.TrimPrefix(path, "current_state.")] = map[string]any{
			"value":      entry.Value,
			"confidence": entry.Confidence,
			"updated_at": entry.UpdatedAt,
		}
	}
	return overlay
}
