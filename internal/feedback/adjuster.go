package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/personakit/personakit/internal/mapper"
	"github.com/personakit/personakit/internal/metrics"
	"github.com/personakit/personakit/internal/outbox"
	"github.com/personakit/personakit/internal/retry"
)

// Invalidator evicts cached personas built from a mapper. Implemented by
// the persona registry.
type Invalidator interface {
	InvalidateMapper(mapperID string)
}

// Adjuster is the outbox handler applying feedback to rule weights.
type Adjuster struct {
	feedback *Store
	mappers  *mapper.Store
	cache    Invalidator
	retryCfg retry.Config
	logger   *slog.Logger
}

// NewAdjuster wires the feedback-processing handler. cache may be nil when
// no persona cache is running.
func NewAdjuster(feedback *Store, mappers *mapper.Store, retryCfg retry.Config, cache Invalidator, logger *slog.Logger) *Adjuster {
	if logger == nil {
		logger = slog.Default()
	}
	if retryCfg.MaxAttempts <= 0 {
		retryCfg = retry.DefaultConfig()
	}
	return &Adjuster{feedback: feedback, mappers: mappers, cache: cache, retryCfg: retryCfg, logger: logger}
}

// HandleTask processes one feedback record. Adjustment decisions use the
// feedback's own timestamp, so replays under at-least-once delivery reach
// the same verdict. Publish races with concurrent adjusters retry against
// the reloaded active version.
func (a *Adjuster) HandleTask(ctx context.Context, task outbox.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return outbox.Permanent(fmt.Errorf("decode task payload: %w", err))
	}
	if payload.FeedbackID == "" {
		return outbox.Permanent(errors.New("task payload missing feedback_id"))
	}

	fb, err := a.feedback.Get(ctx, payload.FeedbackID)
	if errors.Is(err, ErrNotFound) {
		return outbox.Permanent(err)
	}
	if err != nil {
		return err
	}

	if fb.Helpful == nil || fb.RuleID == "" || fb.MapperID == "" {
		// Rating-only or persona-level feedback carries no rule signal.
		return nil
	}

	return retry.Do(ctx, a.retryCfg, func(ctx context.Context) error {
		return a.adjust(ctx, fb)
	}, func(err error) bool {
		return errors.Is(err, mapper.ErrVersionConflict)
	})
}

func (a *Adjuster) adjust(ctx context.Context, fb Feedback) error {
	cfg, err := a.mappers.GetActive(ctx, fb.MapperID)
	if err != nil {
		if errors.Is(err, mapper.ErrNotFound) {
			return outbox.Permanent(err)
		}
		return err
	}

	rule, ok := cfg.Rule(fb.RuleID)
	if !ok {
		// The rule was removed in a later version. Nothing to adjust.
		a.logger.Info("Feedback for unknown rule, skipping",
			"mapper_id", fb.MapperID, "rule_id", fb.RuleID)
		return nil
	}

	settings := cfg.Feedback
	if settings.PositiveFactor == 0 {
		settings = mapper.DefaultFeedbackSettings()
	}

	if last, ok, err := a.feedback.LastAdjustment(ctx, fb.MapperID, fb.RuleID); err != nil {
		return err
	} else if ok && fb.CreatedAt.Sub(last) < settings.Cooldown {
		a.logger.Info("Rule in adjustment cooldown, skipping",
			"mapper_id", fb.MapperID, "rule_id", fb.RuleID, "last_adjusted", last)
		return nil
	}

	var (
		newWeight float64
		reason    string
		direction string
	)
	if *fb.Helpful {
		newWeight = mapper.ClampWeight(rule.Weight * settings.PositiveFactor)
		reason = "helpful feedback"
		direction = "up"
	} else {
		since := fb.CreatedAt.Add(-settings.NegativeWindow)
		negatives, err := a.feedback.CountNegative(ctx, fb.MapperID, fb.RuleID, since, fb.CreatedAt)
		if err != nil {
			return err
		}
		if negatives < settings.NegativeThreshold {
			a.logger.Debug("Negative feedback below threshold",
				"mapper_id", fb.MapperID, "rule_id", fb.RuleID,
				"negatives", negatives, "threshold", settings.NegativeThreshold)
			return nil
		}
		newWeight = mapper.ClampWeight(rule.Weight * settings.NegativeFactor)
		reason = fmt.Sprintf("%d unhelpful signals in %s", negatives, settings.NegativeWindow)
		direction = "down"
	}

	if newWeight == rule.Weight {
		// Already clamped at a bound.
		return nil
	}

	next := nextVersion(cfg, fb.RuleID, newWeight)
	// The adjustment is stamped with the feedback's own time so cooldown
	// checks stay deterministic under task replay.
	adjustment := mapper.Adjustment{
		RuleID:         fb.RuleID,
		PreviousWeight: rule.Weight,
		NewWeight:      newWeight,
		Reason:         reason,
		Timestamp:      fb.CreatedAt,
	}
	next.Audit = append(next.Audit, adjustment)

	if err := a.mappers.PublishVersion(ctx, next, &adjustment); err != nil {
		return err
	}
	if a.cache != nil {
		a.cache.InvalidateMapper(fb.MapperID)
	}

	metrics.WeightAdjustments.WithLabelValues(direction).Inc()
	a.logger.Info("Rule weight adjusted",
		"mapper_id", fb.MapperID, "rule_id", fb.RuleID,
		"previous", rule.Weight, "new", newWeight,
		"version", next.Version, "reason", reason)
	return nil
}

// nextVersion copies cfg with one rule's weight changed and the version
// bumped. Rules are copied so the source configuration stays untouched.
func nextVersion(cfg mapper.Configuration, ruleID string, weight float64) mapper.Configuration {
	next := cfg
	next.ID = ""
	next.Version = cfg.Version + 1
	next.UsageCount = 0
	next.CreatedAt = time.Time{}
	next.CreatedBy = "feedback"
	next.Rules = append(next.Rules[:0:0], cfg.Rules...)
	for i := range next.Rules {
		if next.Rules[i].ID == ruleID {
			next.Rules[i].Weight = weight
		}
	}
	next.Audit = append(cfg.Audit[:0:0], cfg.Audit...)
	return next
}
