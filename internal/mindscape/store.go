// Package mindscape maintains each person's accumulated trait state. Writes
// use optimistic concurrency: every successful update bumps a version
// column, and concurrent writers retry on conflict so no update is lost.
package mindscape

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/personakit/personakit/internal/store"
	"github.com/personakit/personakit/internal/traits"
)

// ErrVersionConflict signals a lost compare-and-swap race. Callers reload
// and retry.
var ErrVersionConflict = errors.New("mindscape version conflict")

// Mindscape is a person's current trait state.
type Mindscape struct {
	PersonID  string                  `json:"person_id"`
	Traits    map[string]traits.Entry `json:"traits"`
	Version   int64                   `json:"version"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Store persists mindscapes.
type Store struct {
	db *sql.DB
}

// NewStore creates a mindscape store on the shared database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns a person's mindscape. A person with no observations yet gets
// an empty version-0 mindscape rather than an error.
func (s *Store) Get(ctx context.Context, personID string) (Mindscape, error) {
	var (
		raw     string
		version int64
		updated string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT traits, version, updated_at FROM mindscapes WHERE person_id = ?`,
		personID).Scan(&raw, &version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Mindscape{PersonID: personID, Traits: map[string]traits.Entry{}}, nil
	}
	if err != nil {
		return Mindscape{}, fmt.Errorf("get mindscape: %w", err)
	}

	ms := Mindscape{PersonID: personID, Version: version, UpdatedAt: store.ParseTime(updated)}
	if err := json.Unmarshal([]byte(raw), &ms.Traits); err != nil {
		return Mindscape{}, fmt.Errorf("decode traits: %w", err)
	}
	return ms, nil
}

// ApplyDelta merges a trait delta into a person's mindscape with a
// compare-and-swap on the version column. The idempotency marker for taskID
// commits in the same transaction, so a task replayed after a crash is
// detected and skipped. Returns the resulting mindscape and whether the
// delta was applied (false means it had already been applied).
func (s *Store) ApplyDelta(ctx context.Context, taskID, personID string, delta traits.Delta) (Mindscape, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Mindscape{}, false, fmt.Errorf("begin apply: %w", err)
	}
	defer tx.Rollback()

	var seen int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mindscape_applied WHERE task_id = ?`, taskID).Scan(&seen); err != nil {
		return Mindscape{}, false, fmt.Errorf("check applied marker: %w", err)
	}
	if seen > 0 {
		tx.Rollback()
		ms, err := s.Get(ctx, personID)
		return ms, false, err
	}

	var (
		raw     string
		version int64
	)
	current := map[string]traits.Entry{}
	err = tx.QueryRowContext(ctx,
		`SELECT traits, version FROM mindscapes WHERE person_id = ?`, personID).
		Scan(&raw, &version)
	exists := true
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return Mindscape{}, false, fmt.Errorf("load mindscape: %w", err)
	} else if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return Mindscape{}, false, fmt.Errorf("decode traits: %w", err)
	}

	for path, entry := range delta {
		if existing, ok := current[path]; ok {
			current[path] = traits.Merge(existing, entry)
		} else {
			current[path] = entry.Entry
		}
	}

	merged, err := json.Marshal(current)
	if err != nil {
		return Mindscape{}, false, fmt.Errorf("encode traits: %w", err)
	}
	now := time.Now().UTC()
	newVersion := version + 1

	if exists {
		res, err := tx.ExecContext(ctx, `
			UPDATE mindscapes SET traits = ?, version = ?, updated_at = ?
			WHERE person_id = ? AND version = ?`,
			string(merged), newVersion, store.FormatTime(now), personID, version)
		if err != nil {
			return Mindscape{}, false, fmt.Errorf("update mindscape: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Mindscape{}, false, ErrVersionConflict
		}
	} else {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO mindscapes (person_id, traits, version, updated_at)
			VALUES (?, ?, ?, ?)`,
			personID, string(merged), newVersion, store.FormatTime(now))
		if err != nil {
			if isUniqueViolation(err) {
				// Another writer created the row first.
				return Mindscape{}, false, ErrVersionConflict
			}
			return Mindscape{}, false, fmt.Errorf("insert mindscape: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mindscape_applied (task_id, person_id, version, applied_at)
		VALUES (?, ?, ?, ?)`,
		taskID, personID, newVersion, store.FormatTime(now))
	if err != nil {
		return Mindscape{}, false, fmt.Errorf("record applied marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Mindscape{}, false, fmt.Errorf("commit apply: %w", err)
	}

	return Mindscape{PersonID: personID, Traits: current, Version: newVersion, UpdatedAt: now}, true, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
