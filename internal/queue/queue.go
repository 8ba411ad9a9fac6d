// Package queue is the durable on-disk queue that holds intakes accepted
// while the primary store was unavailable.
package queue

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Entry is one queued intake awaiting replay.
type Entry struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Body          []byte    `json:"-"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Stats summarizes queue depth.
type Stats struct {
	Pending   int        `json:"pending"`
	Exhausted int        `json:"exhausted"`
	Oldest    *time.Time `json:"oldest,omitempty"`
}

// Queue is a SQLite-backed FIFO keyed by submission id.
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pending_intakes (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	body            BLOB NOT NULL,
	attempts        INTEGER NOT NULL DEFAULT 0,
	last_error      TEXT NOT NULL DEFAULT '',
	next_attempt_at INTEGER NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_intakes_next ON pending_intakes(next_attempt_at);
`

// Open opens (creating if needed) the queue database at path in WAL mode.
func Open(ctx context.Context, path string) (*Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "queue: open")
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "queue: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "queue: migrate")
	}
	return &Queue{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue stores an intake for later replay. Enqueueing an id twice keeps
// the first body.
func (q *Queue) Enqueue(ctx context.Context, id, kind string, body []byte) error {
	now := q.now().UTC().UnixMilli()
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO pending_intakes (id, kind, body, next_attempt_at, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, kind, body, now, now,
	)
	return eris.Wrapf(err, "queue: enqueue %s", id)
}

// Due returns up to limit entries whose next attempt is due and which have
// not used up maxAttempts, oldest first.
func (q *Queue) Due(ctx context.Context, maxAttempts, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, kind, body, attempts, last_error, next_attempt_at, created_at
		 FROM pending_intakes
		 WHERE next_attempt_at <= ? AND attempts < ?
		 ORDER BY created_at, id
		 LIMIT ?`,
		q.now().UTC().UnixMilli(), maxAttempts, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "queue: query due")
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "queue: iterate due")
}

// List returns every entry, oldest first.
func (q *Queue) List(ctx context.Context) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, kind, body, attempts, last_error, next_attempt_at, created_at
		 FROM pending_intakes ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "queue: list")
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "queue: iterate list")
}

// MarkFailed records a failed replay and schedules the next attempt.
func (q *Queue) MarkFailed(ctx context.Context, id string, cause error, delay time.Duration) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	next := q.now().Add(delay).UTC().UnixMilli()
	res, err := q.db.ExecContext(ctx,
		`UPDATE pending_intakes
		 SET attempts = attempts + 1, last_error = ?, next_attempt_at = ?
		 WHERE id = ?`,
		msg, next, id,
	)
	if err != nil {
		return eris.Wrapf(err, "queue: mark failed %s", id)
	}
	return checkAffected(res, id)
}

// Remove deletes a replayed entry.
func (q *Queue) Remove(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM pending_intakes WHERE id = ?`, id)
	return eris.Wrapf(err, "queue: remove %s", id)
}

// Stats counts replayable and exhausted entries.
func (q *Queue) Stats(ctx context.Context, maxAttempts int) (Stats, error) {
	var s Stats
	var oldest sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN attempts < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN attempts >= ? THEN 1 ELSE 0 END), 0),
			MIN(created_at)
		 FROM pending_intakes`,
		maxAttempts, maxAttempts,
	).Scan(&s.Pending, &s.Exhausted, &oldest)
	if err != nil {
		return Stats{}, eris.Wrap(err, "queue: stats")
	}
	if oldest.Valid {
		t := time.UnixMilli(oldest.Int64).UTC()
		s.Oldest = &t
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var next, created int64
	if err := row.Scan(&e.ID, &e.Kind, &e.Body, &e.Attempts, &e.LastError, &next, &created); err != nil {
		return Entry{}, eris.Wrap(err, "queue: scan entry")
	}
	e.NextAttemptAt = time.UnixMilli(next).UTC()
	e.CreatedAt = time.UnixMilli(created).UTC()
	return e, nil
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "queue: rows affected")
	}
	if n == 0 {
		return eris.Errorf("queue: entry %s not found", id)
	}
	return nil
}
