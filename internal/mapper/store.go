package mapper

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/personakit/personakit/internal/store"
)

// ErrNotFound is returned when no matching configuration exists.
var ErrNotFound = errors.New("mapper configuration not found")

// ErrVersionConflict signals a lost publish race: another writer already
// published that version number. Callers reload the active version and
// retry.
var ErrVersionConflict = errors.New("mapper version conflict")

// Store persists mapper configurations.
type Store struct {
	db *sql.DB
}

// NewStore creates a configuration store on the shared database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// configBody is the JSON stored in the configuration column. Identity and
// lifecycle fields live in their own columns.
type configBody struct {
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	RequiredTraits []string          `json:"required_traits,omitempty"`
	Rules          json.RawMessage   `json:"rules"`
	Templates      map[string]string `json:"templates"`
	Feedback       FeedbackSettings  `json:"feedback"`
	PersonaTTL     time.Duration     `json:"persona_ttl"`
}

// Seed inserts cfg as version 1 (active) unless the mapper already has any
// version. Used to install built-in mappers on startup.
func (s *Store) Seed(ctx context.Context, cfg Configuration) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mapper_configs WHERE mapper_id = ?`, cfg.MapperID).Scan(&n); err != nil {
		return fmt.Errorf("check mapper: %w", err)
	}
	if n > 0 {
		return nil
	}

	cfg.Version = 1
	cfg.Status = StatusActive
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("seed %s: %w", cfg.MapperID, err)
	}
	return s.insert(ctx, s.db, cfg)
}

// GetActive returns the mapper's active configuration.
func (s *Store) GetActive(ctx context.Context, mapperID string) (Configuration, error) {
	return s.getWhere(ctx, `mapper_id = ? AND status = ?`, mapperID, StatusActive)
}

// Get returns one specific version.
func (s *Store) Get(ctx context.Context, mapperID string, version int) (Configuration, error) {
	return s.getWhere(ctx, `mapper_id = ? AND version = ?`, mapperID, version)
}

// PublishVersion atomically publishes next as the new active version and
// deprecates the previous one. next.Version must be exactly one past the
// version it derives from; a concurrent publish of the same number returns
// ErrVersionConflict. When adjustment is non-nil its audit row commits in
// the same transaction.
func (s *Store) PublishVersion(ctx context.Context, next Configuration, adjustment *Adjustment) error {
	if err := next.Validate(); err != nil {
		return err
	}
	next.Status = StatusActive
	if next.ID == "" {
		next.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE mapper_configs SET status = ?
		WHERE mapper_id = ? AND status = ?`,
		StatusDeprecated, next.MapperID, StatusActive)
	if err != nil {
		return fmt.Errorf("deprecate active version: %w", err)
	}

	if err := s.insert(ctx, tx, next); err != nil {
		return err
	}

	if adjustment != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rule_adjustments (mapper_id, rule_id, previous_weight, new_weight, reason, adjusted_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			next.MapperID, adjustment.RuleID, adjustment.PreviousWeight,
			adjustment.NewWeight, adjustment.Reason, store.FormatTime(adjustment.Timestamp))
		if err != nil {
			return fmt.Errorf("record adjustment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	return nil
}

// TouchUsage bumps the usage counter of a configuration version.
func (s *Store) TouchUsage(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mapper_configs SET usage_count = usage_count + 1, last_used_at = ?
		WHERE id = ?`, store.FormatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("touch usage: %w", err)
	}
	return nil
}

// History returns all versions of a mapper, newest first.
func (s *Store) History(ctx context.Context, mapperID string) ([]Configuration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mapper_id, version, configuration, status, audit, created_by, usage_count, created_at
		FROM mapper_configs
		WHERE mapper_id = ?
		ORDER BY version DESC`, mapperID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []Configuration
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// WeightHistory returns the adjustment trail for one rule, oldest first.
func (s *Store) WeightHistory(ctx context.Context, mapperID, ruleID string) ([]Adjustment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, previous_weight, new_weight, reason, adjusted_at
		FROM rule_adjustments
		WHERE mapper_id = ? AND rule_id = ?
		ORDER BY adjusted_at`, mapperID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	defer rows.Close()

	var out []Adjustment
	for rows.Next() {
		var (
			adj Adjustment
			at  string
		)
		if err := rows.Scan(&adj.RuleID, &adj.PreviousWeight, &adj.NewWeight, &adj.Reason, &at); err != nil {
			return nil, fmt.Errorf("scan adjustment: %w", err)
		}
		adj.Timestamp = store.ParseTime(at)
		out = append(out, adj)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insert(ctx context.Context, ex execer, cfg Configuration) error {
	rulesJSON, err := json.Marshal(cfg.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	body, err := json.Marshal(configBody{
		Name:           cfg.Name,
		Description:    cfg.Description,
		RequiredTraits: cfg.RequiredTraits,
		Rules:          rulesJSON,
		Templates:      cfg.Templates,
		Feedback:       cfg.Feedback,
		PersonaTTL:     cfg.PersonaTTL,
	})
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	audit, err := json.Marshal(cfg.Audit)
	if err != nil {
		return fmt.Errorf("encode audit: %w", err)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO mapper_configs (id, mapper_id, version, configuration, status, audit, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.MapperID, cfg.Version, string(body), cfg.Status,
		string(audit), cfg.CreatedBy, store.FormatTime(cfg.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrVersionConflict
		}
		return fmt.Errorf("insert configuration: %w", err)
	}
	return nil
}

func (s *Store) getWhere(ctx context.Context, where string, args ...any) (Configuration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mapper_id, version, configuration, status, audit, created_by, usage_count, created_at
		FROM mapper_configs
		WHERE `+where+`
		ORDER BY version DESC
		LIMIT 1`, args...)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Configuration{}, ErrNotFound
	}
	return cfg, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (Configuration, error) {
	var (
		cfg     Configuration
		body    string
		audit   string
		created string
	)
	err := row.Scan(&cfg.ID, &cfg.MapperID, &cfg.Version, &body, &cfg.Status,
		&audit, &cfg.CreatedBy, &cfg.UsageCount, &created)
	if err != nil {
		return Configuration{}, err
	}

	var decoded configBody
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return Configuration{}, fmt.Errorf("decode configuration: %w", err)
	}
	if err := json.Unmarshal(decoded.Rules, &cfg.Rules); err != nil {
		return Configuration{}, fmt.Errorf("decode rules: %w", err)
	}
	if err := json.Unmarshal([]byte(audit), &cfg.Audit); err != nil {
		return Configuration{}, fmt.Errorf("decode audit: %w", err)
	}
	cfg.Name = decoded.Name
	cfg.Description = decoded.Description
	cfg.RequiredTraits = decoded.RequiredTraits
	cfg.Templates = decoded.Templates
	cfg.Feedback = decoded.Feedback
	cfg.PersonaTTL = decoded.PersonaTTL
	cfg.CreatedAt = store.ParseTime(created)
	return cfg, nil
}
