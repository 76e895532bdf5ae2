package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PersistedEntry is an audit entry as stored in the database, tagged
// with the reconciliation run it belongs to.
type PersistedEntry struct {
	ID        int64  `json:"id"`
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Details   string `json:"details"`
	Actor     string `json:"actor"`
	Checksum  string `json:"checksum"`
	CreatedAt string `json:"created_at"`
}

// Repository persists audit trails
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new audit repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "audit").Logger(),
	}
}

// SaveRun stores all entries of one reconciliation run under a run ID.
// Entries are written in call order so the persisted trail preserves
// the sequential consistency of the in-memory log.
func (r *Repository) SaveRun(runID string, entries []Entry) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO audit_entries (run_id, timestamp, action, details_json, actor, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().Format("2006-01-02 15:04:05")
	for _, e := range entries {
		details, err := json.Marshal(e.Details)
		if err != nil {
			details = []byte("{}")
		}
		if _, err := stmt.Exec(runID, e.Timestamp, e.Action, string(details), e.Actor, e.Checksum, createdAt); err != nil {
			return fmt.Errorf("failed to insert audit entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit trail: %w", err)
	}

	r.log.Debug().Str("run_id", runID).Int("entries", len(entries)).Msg("Audit trail persisted")
	return nil
}

// ListByRun retrieves the persisted trail for one run, in insert order.
func (r *Repository) ListByRun(runID string) ([]PersistedEntry, error) {
	query := `
		SELECT id, run_id, timestamp, action, details_json, actor, checksum, created_at
		FROM audit_entries
		WHERE run_id = ?
		ORDER BY id ASC
	`
	return r.list(query, runID)
}

// ListRecent retrieves the most recent persisted entries, newest first.
func (r *Repository) ListRecent(limit int) ([]PersistedEntry, error) {
	if limit < 1 {
		limit = 100
	}
	query := `
		SELECT id, run_id, timestamp, action, details_json, actor, checksum, created_at
		FROM audit_entries
		ORDER BY id DESC
		LIMIT ?
	`
	return r.list(query, limit)
}

func (r *Repository) list(query string, args ...any) ([]PersistedEntry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []PersistedEntry
	for rows.Next() {
		var e PersistedEntry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Timestamp, &e.Action, &e.Details, &e.Actor, &e.Checksum, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
