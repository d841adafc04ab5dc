package observation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/personakit/personakit/internal/outbox"
	"github.com/personakit/personakit/internal/store"
)

// ErrNotFound is returned when an observation does not exist or was deleted.
var ErrNotFound = errors.New("observation not found")

// Store persists observations and enqueues their processing tasks.
type Store struct {
	db    *sql.DB
	tasks *outbox.Store
}

// NewStore creates an observation store. tasks may be nil for read-only use.
func NewStore(db *sql.DB, tasks *outbox.Store) *Store {
	return &Store{db: db, tasks: tasks}
}

// Record validates and persists an observation, and enqueues its processing
// task in the same transaction.
func (s *Store) Record(ctx context.Context, personID, obsType string, content, metadata map[string]any) (Observation, error) {
	if personID == "" {
		return Observation{}, errors.New("person_id is required")
	}
	if obsType == "" {
		return Observation{}, errors.New("observation type is required")
	}
	if content == nil {
		content = map[string]any{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return Observation{}, fmt.Errorf("marshal content: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return Observation{}, fmt.Errorf("marshal metadata: %w", err)
	}

	obs := Observation{
		ID:        uuid.NewString(),
		PersonID:  personID,
		Type:      obsType,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Observation{}, fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO observations (id, person_id, type, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		obs.ID, obs.PersonID, obs.Type, string(contentJSON), string(metaJSON),
		store.FormatTime(obs.CreatedAt))
	if err != nil {
		return Observation{}, fmt.Errorf("insert observation: %w", err)
	}

	if _, err := s.tasks.EnqueueTx(ctx, tx, outbox.TaskProcessObservation, TaskPayload{
		ObservationID: obs.ID,
		PersonID:      obs.PersonID,
	}); err != nil {
		return Observation{}, err
	}

	if err := tx.Commit(); err != nil {
		return Observation{}, fmt.Errorf("commit record: %w", err)
	}
	return obs, nil
}

// Get returns an observation by id. Soft-deleted observations are invisible.
func (s *Store) Get(ctx context.Context, id string) (Observation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, person_id, type, content, metadata, created_at
		FROM observations
		WHERE id = ? AND deleted_at IS NULL`, id)
	return scanObservation(row)
}

// ListByPerson returns a person's observations, newest first.
func (s *Store) ListByPerson(ctx context.Context, personID string, limit int) ([]Observation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, person_id, type, content, metadata, created_at
		FROM observations
		WHERE person_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT ?`, personID, limit)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// Delete soft-deletes an observation. Already-processed trait updates are
// not rolled back.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE observations SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		store.FormatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("delete observation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (Observation, error) {
	var (
		obs     Observation
		content string
		meta    string
		created string
	)
	err := row.Scan(&obs.ID, &obs.PersonID, &obs.Type, &content, &meta, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Observation{}, ErrNotFound
	}
	if err != nil {
		return Observation{}, fmt.Errorf("scan observation: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &obs.Content); err != nil {
		return Observation{}, fmt.Errorf("decode observation content: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &obs.Metadata); err != nil {
		return Observation{}, fmt.Errorf("decode observation metadata: %w", err)
	}
	obs.CreatedAt = store.ParseTime(created)
	return obs, nil
}
