// Package journal persists crankd's scheduling events to a local SQLite
// database: submissions, confirmations, retries, drops and pool rotations.
// The journal is observability-only. The scheduler never reads it back, so a
// journal failure can cost history but never a round.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crankd/crankd/common"
	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/logger"
)

// Event names recorded in the journal.
const (
	EventSubmitted = "submitted"
	EventConfirmed = "confirmed"
	EventRetried   = "retried"
	EventDropped   = "dropped"
	EventVetoed    = "vetoed"
	EventRotation  = "rotation"
)

// DefaultQueryLimit caps history queries that do not name their own limit.
const DefaultQueryLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    slot       INTEGER NOT NULL,
    ref        TEXT    NOT NULL,
    signature  TEXT    NOT NULL DEFAULT '',
    event      TEXT    NOT NULL,
    detail     TEXT    NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_ref ON events(ref);
CREATE INDEX IF NOT EXISTS events_created_at ON events(created_at);
`

// Journal is an append-only event log backed by SQLite.
type Journal struct {
	db  *sql.DB
	log logger.Logger
	now func() time.Time
}

// Open creates or opens the journal database at path and migrates its
// schema. Use ":memory:" for a throwaway journal in tests.
func Open(path string, l logger.Logger) (*Journal, error) {
	if l == nil {
		l = logger.NewNopLogger()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	// database/sql pooling hands ":memory:" connections separate
	// databases; the journal is low-traffic, one connection is plenty.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal schema: %w", err)
	}
	return &Journal{db: db, log: l, now: time.Now}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one event row. Failures are logged, never returned: the
// caller is mid-round and must not care.
func (j *Journal) Record(slot uint64, ref, signature, event, detail string) {
	_, err := j.db.Exec(
		`INSERT INTO events (slot, ref, signature, event, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		slot, ref, signature, event, detail, j.now().Unix(),
	)
	if err != nil {
		j.log.Warning("journal: recording %s for %s: %v", event, ref, err)
	}
}

// RecordReport journals everything one scheduling round did.
func (j *Journal) RecordReport(report *cranklib.RoundReport) {
	for _, sub := range report.Submitted {
		j.Record(report.Slot, sub.Ref.String(), sub.Signature.String(), EventSubmitted, "")
	}
	for _, ref := range report.Confirmed {
		j.Record(report.Slot, ref.String(), "", EventConfirmed, "")
	}
	for _, ref := range report.Retried {
		j.Record(report.Slot, ref.String(), "", EventRetried, "transaction failed or never landed")
	}
	for _, ref := range report.Dropped {
		j.Record(report.Slot, ref.String(), "", EventDropped,
			fmt.Sprintf("exceeded %d simulation failures", cranklib.MaxSimulationFailures))
	}
	for _, ref := range report.Vetoed {
		j.Record(report.Slot, ref.String(), "", EventVetoed, "excluded by policy script")
	}
	if report.Rotation != nil {
		j.Record(report.Slot, "", report.Rotation.String(), EventRotation, "pool rotation submitted")
	}
}

// Query returns the newest matching events, newest first.
func (j *Journal) Query(params common.HistoryParams) ([]common.HistoryEntry, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	query := `SELECT id, slot, ref, signature, event, detail, created_at FROM events`
	var (
		where []string
		args  []any
	)
	if params.Ref != "" {
		where = append(where, "ref = ?")
		args = append(args, params.Ref)
	}
	if params.Event != "" {
		where = append(where, "event = ?")
		args = append(args, params.Event)
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []common.HistoryEntry
	for rows.Next() {
		var (
			e       common.HistoryEntry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Slot, &e.Ref, &e.Signature, &e.Event, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal rows: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored events.
func (j *Journal) Count() (int64, error) {
	var n int64
	err := j.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// deleteOlderThan removes rows created before cutoff and returns how many.
func (j *Journal) deleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := j.db.Exec(`DELETE FROM events WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
