package mindscape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/personakit/personakit/internal/metrics"
	"github.com/personakit/personakit/internal/observation"
	"github.com/personakit/personakit/internal/outbox"
	"github.com/personakit/personakit/internal/retry"
	"github.com/personakit/personakit/internal/staleness"
	"github.com/personakit/personakit/internal/traits"
)

// Updater is the outbox handler that turns observations into trait updates.
type Updater struct {
	observations *observation.Store
	mindscapes   *Store
	extractor    *traits.Extractor
	publisher    staleness.Publisher
	retryCfg     retry.Config
	logger       *slog.Logger
}

// NewUpdater wires the observation-processing handler.
func NewUpdater(observations *observation.Store, mindscapes *Store, publisher staleness.Publisher, retryCfg retry.Config, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	if retryCfg.MaxAttempts <= 0 {
		retryCfg = retry.DefaultConfig()
	}
	return &Updater{
		observations: observations,
		mindscapes:   mindscapes,
		extractor:    traits.NewExtractor(),
		publisher:    publisher,
		retryCfg:     retryCfg,
		logger:       logger,
	}
}

// HandleTask processes one observation task. Structural payload problems
// are permanent; version conflicts retry with backoff inside the handler so
// the task itself only fails when contention is truly pathological.
func (u *Updater) HandleTask(ctx context.Context, task outbox.Task) error {
	var payload observation.TaskPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return outbox.Permanent(fmt.Errorf("decode task payload: %w", err))
	}
	if payload.ObservationID == "" || payload.PersonID == "" {
		return outbox.Permanent(errors.New("task payload missing observation_id or person_id"))
	}

	obs, err := u.observations.Get(ctx, payload.ObservationID)
	if errors.Is(err, observation.ErrNotFound) {
		// Deleted before processing. Nothing to apply.
		u.logger.Info("Observation gone, skipping", "observation_id", payload.ObservationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load observation: %w", err)
	}

	delta, err := u.extractor.Extract(obs.Type, obs.Content, obs.CreatedAt)
	if err != nil {
		var verr *traits.ValidationError
		if errors.As(err, &verr) {
			return outbox.Permanent(err)
		}
		return err
	}
	if len(delta) == 0 {
		return nil
	}

	var (
		ms      Mindscape
		applied bool
	)
	err = retry.Do(ctx, u.retryCfg, func(ctx context.Context) error {
		var applyErr error
		ms, applied, applyErr = u.mindscapes.ApplyDelta(ctx, task.ID, obs.PersonID, delta)
		if errors.Is(applyErr, ErrVersionConflict) {
			metrics.MindscapeConflicts.Inc()
		}
		return applyErr
	}, func(err error) bool {
		return errors.Is(err, ErrVersionConflict)
	})
	if err != nil {
		return fmt.Errorf("apply trait delta: %w", err)
	}

	if !applied {
		u.logger.Info("Delta already applied, skipping",
			"task_id", task.ID, "person_id", obs.PersonID)
		return nil
	}

	u.logger.Info("Mindscape updated",
		"person_id", obs.PersonID, "version", ms.Version, "paths", len(delta))

	if u.publisher != nil {
		ev := staleness.Event{
			PersonID:     obs.PersonID,
			Version:      ms.Version,
			ChangedPaths: deltaPaths(delta),
			OccurredAt:   time.Now().UTC(),
		}
		if perr := u.publisher.Publish(ctx, ev); perr != nil {
			// The update is committed; losing the event only delays refresh.
			u.logger.Warn("Staleness publish failed", "person_id", obs.PersonID, "error", perr)
		}
	}
	return nil
}

func deltaPaths(delta traits.Delta) []string {
	paths := make([]string, 0, len(delta))
	for p := range delta {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
