package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
)

// Repository persists the trigger history.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	RecordTrigger(ctx context.Context, rec TriggerRecord) error
	ListTriggers(ctx context.Context, automationID string, limit int) ([]TriggerRecord, error)
	ListRecentTriggers(ctx context.Context, limit int) ([]TriggerRecord, error)
	PruneTriggers(ctx context.Context, before time.Time) (int64, error)
}

// triggerColumns is the SELECT column list for trigger queries.
const triggerColumns = `id, automation_id, area, flavor, actuators, state, reason, status, error, triggered_at`

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Limits for history queries.
const (
	defaultTriggerLimit = 20
	maxTriggerLimit     = 500
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordTrigger inserts a trigger record.
func (r *SQLiteRepository) RecordTrigger(ctx context.Context, rec TriggerRecord) error {
	actuators, err := json.Marshal(rec.Actuators)
	if err != nil {
		return fmt.Errorf("marshalling actuators: %w", err)
	}

	query := `
		INSERT INTO automation_triggers (` + triggerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.AutomationID,
		rec.Area,
		rec.Flavor,
		string(actuators),
		string(rec.State),
		rec.Reason,
		rec.Status,
		nullableString(rec.Error),
		rec.TriggeredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting trigger: %w", err)
	}
	return nil
}

// ListTriggers returns the most recent triggers of one automation.
func (r *SQLiteRepository) ListTriggers(ctx context.Context, automationID string, limit int) ([]TriggerRecord, error) {
	query := `SELECT ` + triggerColumns + `
		FROM automation_triggers
		WHERE automation_id = ?
		ORDER BY triggered_at DESC
		LIMIT ?`
	return r.queryTriggers(ctx, query, automationID, clampLimit(limit))
}

// ListRecentTriggers returns the most recent triggers of every automation.
func (r *SQLiteRepository) ListRecentTriggers(ctx context.Context, limit int) ([]TriggerRecord, error) {
	query := `SELECT ` + triggerColumns + `
		FROM automation_triggers
		ORDER BY triggered_at DESC
		LIMIT ?`
	return r.queryTriggers(ctx, query, clampLimit(limit))
}

// PruneTriggers deletes records older than before and returns how many were
// removed.
func (r *SQLiteRepository) PruneTriggers(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM automation_triggers WHERE triggered_at < ?`,
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning triggers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) queryTriggers(ctx context.Context, query string, args ...any) ([]TriggerRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", err)
	}
	defer rows.Close()

	var records []TriggerRecord
	for rows.Next() {
		rec, scanErr := scanTrigger(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning trigger: %w", scanErr)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating triggers: %w", err)
	}
	return records, nil
}

func scanTrigger(rows *sql.Rows) (TriggerRecord, error) {
	var (
		rec         TriggerRecord
		actuators   string
		state       string
		errMsg      sql.NullString
		triggeredAt string
	)
	if err := rows.Scan(
		&rec.ID,
		&rec.AutomationID,
		&rec.Area,
		&rec.Flavor,
		&actuators,
		&state,
		&rec.Reason,
		&rec.Status,
		&errMsg,
		&triggeredAt,
	); err != nil {
		return TriggerRecord{}, err
	}

	if err := json.Unmarshal([]byte(actuators), &rec.Actuators); err != nil {
		return TriggerRecord{}, fmt.Errorf("unmarshalling actuators: %w", err)
	}
	rec.State = actuator.State(state)
	if errMsg.Valid {
		rec.Error = errMsg.String
	}
	t, err := time.Parse(timeLayout, triggeredAt)
	if err != nil {
		return TriggerRecord{}, fmt.Errorf("parsing triggered_at: %w", err)
	}
	rec.TriggeredAt = t
	return rec, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultTriggerLimit
	}
	if limit > maxTriggerLimit {
		return maxTriggerLimit
	}
	return limit
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
