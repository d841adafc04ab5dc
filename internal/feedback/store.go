package feedback

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

// ErrNotFound is returned when a feedback record does not exist.
var ErrNotFound = errors.New("feedback not found")

// Store persists feedback and enqueues its processing tasks.
type Store struct {
	db    *sql.DB
	tasks *outbox.Store
}

// NewStore creates a feedback store. tasks may be nil for read-only use.
func NewStore(db *sql.DB, tasks *outbox.Store) *Store {
	return &Store{db: db, tasks: tasks}
}

// Submit validates and persists feedback, enqueueing its processing task in
// the same transaction.
func (s *Store) Submit(ctx context.Context, fb Feedback) (Feedback, error) {
	if fb.PersonaID == "" {
		return Feedback{}, errors.New("persona_id is required")
	}
	if fb.Helpful == nil && fb.Rating == nil {
		return Feedback{}, errors.New("feedback needs helpful or rating")
	}
	if fb.Rating != nil && (*fb.Rating < 1 || *fb.Rating > 5) {
		return Feedback{}, errors.New("rating must be between 1 and 5")
	}
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	if fb.Context == nil {
		fb.Context = map[string]any{}
	}

	contextJSON, err := json.Marshal(fb.Context)
	if err != nil {
		return Feedback{}, fmt.Errorf("marshal feedback context: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Feedback{}, fmt.Errorf("begin submit: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feedback (id, persona_id, rule_id, mapper_id, mapper_version, helpful, rating, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.PersonaID, fb.RuleID, fb.MapperID, fb.MapperVersion,
		nullableBool(fb.Helpful), nullableInt(fb.Rating), string(contextJSON),
		store.FormatTime(fb.CreatedAt))
	if err != nil {
		return Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}

	if _, err := s.tasks.EnqueueTx(ctx, tx, outbox.TaskProcessFeedback, TaskPayload{FeedbackID: fb.ID}); err != nil {
		return Feedback{}, err
	}

	if err := tx.Commit(); err != nil {
		return Feedback{}, fmt.Errorf("commit submit: %w", err)
	}
	return fb, nil
}

// Get returns one feedback record.
func (s *Store) Get(ctx context.Context, id string) (Feedback, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, persona_id, rule_id, mapper_id, mapper_version, helpful, rating, context, created_at
		FROM feedback WHERE id = ?`, id)

	var (
		fb      Feedback
		helpful sql.NullBool
		rating  sql.NullInt64
		rawCtx  string
		created string
	)
	err := row.Scan(&fb.ID, &fb.PersonaID, &fb.RuleID, &fb.MapperID, &fb.MapperVersion,
		&helpful, &rating, &rawCtx, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Feedback{}, ErrNotFound
	}
	if err != nil {
		return Feedback{}, fmt.Errorf("scan feedback: %w", err)
	}
	if helpful.Valid {
		v := helpful.Bool
		fb.Helpful = &v
	}
	if rating.Valid {
		v := int(rating.Int64)
		fb.Rating = &v
	}
	if err := json.Unmarshal([]byte(rawCtx), &fb.Context); err != nil {
		return Feedback{}, fmt.Errorf("decode feedback context: %w", err)
	}
	fb.CreatedAt = store.ParseTime(created)
	return fb, nil
}

// CountNegative counts unhelpful feedback for a rule inside [since, until].
func (s *Store) CountNegative(ctx context.Context, mapperID, ruleID string, since, until time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM feedback
		WHERE mapper_id = ? AND rule_id = ? AND helpful = 0
		AND created_at >= ? AND created_at <= ?`,
		mapperID, ruleID, store.FormatTime(since), store.FormatTime(until)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count negative feedback: %w", err)
	}
	return n, nil
}

// LastAdjustment returns when the rule's weight last changed. ok is false
// when it never has.
func (s *Store) LastAdjustment(ctx context.Context, mapperID, ruleID string) (time.Time, bool, error) {
	var at string
	err := s.db.QueryRowContext(ctx, `
		SELECT adjusted_at FROM rule_adjustments
		WHERE mapper_id = ? AND rule_id = ?
		ORDER BY adjusted_at DESC LIMIT 1`, mapperID, ruleID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load last adjustment: %w", err)
	}
	return store.ParseTime(at), true, nil
}

// Summarize aggregates feedback for a mapper.
func (s *Store) Summarize(ctx context.Context, mapperID string) (Summary, error) {
	sum := Summary{MapperID: mapperID}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN helpful = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN helpful = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(rating), 0)
		FROM feedback WHERE mapper_id = ?`, mapperID).
		Scan(&sum.Total, &sum.Helpful, &sum.Unhelpful, &sum.AverageScore)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize feedback: %w", err)
	}
	return sum, nil
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

func nullableInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
