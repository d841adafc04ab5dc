package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/personakit/personakit/internal/config"
	"github.com/personakit/personakit/internal/feedback"
	"github.com/personakit/personakit/internal/mapper"
	"github.com/personakit/personakit/internal/mindscape"
	"github.com/personakit/personakit/internal/observation"
	"github.com/personakit/personakit/internal/outbox"
	"github.com/personakit/personakit/internal/store"
)

// app bundles the opened components shared by all commands.
type app struct {
	cfg          *config.Config
	store        *store.Store
	tasks        *outbox.Store
	observations *observation.Store
	mindscapes   *mindscape.Store
	mappers      *mapper.Store
	feedback     *feedback.Store
	logger       *slog.Logger
}

// openApp loads config, opens the database, and seeds the built-in mapper.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config warning: %v (using defaults)\n", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.Open(cfg.Paths.DatabasePath)
	if err != nil {
		return nil, err
	}

	db := st.DB()
	tasks := outbox.NewStore(db)
	a := &app{
		cfg:          cfg,
		store:        st,
		tasks:        tasks,
		observations: observation.NewStore(db, tasks),
		mindscapes:   mindscape.NewStore(db),
		mappers:      mapper.NewStore(db),
		feedback:     feedback.NewStore(db, tasks),
		logger:       slog.Default(),
	}

	if err := a.mappers.Seed(ctx, mapper.DailyWorkOptimizer()); err != nil {
		st.Close()
		return nil, fmt.Errorf("seed built-in mapper: %w", err)
	}
	return a, nil
}

func (a *app) close() {
	a.store.Close()
}
