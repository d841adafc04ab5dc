package mapper

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/personakit/personakit/internal/rules"
	"github.com/personakit/personakit/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewStore(st.DB())
}

func testConfig(version int) Configuration {
	return Configuration{
		MapperID: "test_mapper",
		Version:  version,
		Name:     "Test Mapper",
		Feedback: DefaultFeedbackSettings(),
		Rules: []rules.Rule{{
			ID:     "r1",
			Weight: 1.0,
			Condition: rules.Condition{
				Type: rules.CondTrait, Path: "work.focus_duration", Operator: rules.OpExists,
			},
			Actions: []rules.Action{{Type: "suggest", Template: "t1"}},
		}},
		Templates: map[string]string{"t1": "Do the thing."},
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx, testConfig(0)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Second seed must not create another version.
	if err := s.Seed(ctx, testConfig(0)); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	versions, err := s.History(ctx, "test_mapper")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(versions))
	}
	if versions[0].Version != 1 || versions[0].Status != StatusActive {
		t.Errorf("expected active v1, got v%d %s", versions[0].Version, versions[0].Status)
	}
}

func TestSeedDefaultMapperLoadsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx, DailyWorkOptimizer()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cfg, err := s.GetActive(ctx, "daily_work_optimizer")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if len(cfg.Rules) == 0 || len(cfg.Templates) == 0 {
		t.Error("expected rules and templates to round-trip")
	}
	if cfg.PersonaTTL != 24*time.Hour {
		t.Errorf("expected 24h TTL, got %v", cfg.PersonaTTL)
	}
	if cfg.Feedback.NegativeThreshold != 5 {
		t.Errorf("expected threshold 5, got %d", cfg.Feedback.NegativeThreshold)
	}
	if _, ok := cfg.Rule("focus_block_length"); !ok {
		t.Error("expected focus_block_length rule")
	}
}

func TestPublishVersionDeprecatesPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx, testConfig(0)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	next := testConfig(2)
	next.Rules[0].Weight = 1.1
	adj := Adjustment{
		RuleID: "r1", PreviousWeight: 1.0, NewWeight: 1.1,
		Reason: "helpful feedback", Timestamp: time.Now().UTC(),
	}
	next.Audit = []Adjustment{adj}
	if err := s.PublishVersion(ctx, next, &adj); err != nil {
		t.Fatalf("publish: %v", err)
	}

	active, err := s.GetActive(ctx, "test_mapper")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.Version != 2 {
		t.Errorf("expected active v2, got v%d", active.Version)
	}
	if active.Rules[0].Weight != 1.1 {
		t.Errorf("expected adjusted weight 1.1, got %v", active.Rules[0].Weight)
	}
	if len(active.Audit) != 1 || active.Audit[0].Reason != "helpful feedback" {
		t.Errorf("expected audit entry, got %+v", active.Audit)
	}

	old, err := s.Get(ctx, "test_mapper", 1)
	if err != nil {
		t.Fatalf("get v1: %v", err)
	}
	if old.Status != StatusDeprecated {
		t.Errorf("expected v1 deprecated, got %s", old.Status)
	}
	if old.Rules[0].Weight != 1.0 {
		t.Errorf("old version must be untouched, weight=%v", old.Rules[0].Weight)
	}

	history, err := s.WeightHistory(ctx, "test_mapper", "r1")
	if err != nil {
		t.Fatalf("weight history: %v", err)
	}
	if len(history) != 1 || history[0].NewWeight != 1.1 {
		t.Errorf("expected 1 adjustment record, got %+v", history)
	}
}

func TestPublishVersionConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx, testConfig(0)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.PublishVersion(ctx, testConfig(2), nil); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	// Publishing the same version again loses the race.
	if err := s.PublishVersion(ctx, testConfig(2), nil); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestValidateRejectsBadConfigurations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"no rules", func(c *Configuration) { c.Rules = nil }},
		{"empty rule id", func(c *Configuration) { c.Rules[0].ID = "" }},
		{"weight too low", func(c *Configuration) { c.Rules[0].Weight = 0.05 }},
		{"weight too high", func(c *Configuration) { c.Rules[0].Weight = 2.5 }},
		{"no actions", func(c *Configuration) { c.Rules[0].Actions = nil }},
		{"unknown template", func(c *Configuration) { c.Rules[0].Actions[0].Template = "nope" }},
		{"bad action type", func(c *Configuration) { c.Rules[0].Actions[0].Type = "execute" }},
		{"duplicate rule ids", func(c *Configuration) {
			c.Rules = append(c.Rules, c.Rules[0])
		}},
	}
	for _, tc := range cases {
		cfg := testConfig(1)
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
	good := testConfig(1)
	if err := good.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestTouchUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx, testConfig(0)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cfg, err := s.GetActive(ctx, "test_mapper")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.TouchUsage(ctx, cfg.ID); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}
	cfg, err = s.GetActive(ctx, "test_mapper")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.UsageCount != 3 {
		t.Errorf("expected usage 3, got %d", cfg.UsageCount)
	}
}

func TestClampWeight(t *testing.T) {
	if got := ClampWeight(2.4); got != MaxWeight {
		t.Errorf("expected clamp to %v, got %v", MaxWeight, got)
	}
	if got := ClampWeight(0.05); got != MinWeight {
		t.Errorf("expected clamp to %v, got %v", MinWeight, got)
	}
	if got := ClampWeight(1.3); got != 1.3 {
		t.Errorf("in-range weight must pass through, got %v", got)
	}
}
