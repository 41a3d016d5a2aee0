package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Outcome values stored in the ledger.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// DefaultRecentLimit is used when Recent is called with a non-positive limit.
const DefaultRecentLimit = 20

// Entry is one finished job.
type Entry struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Counts summarizes the ledger by outcome.
type Counts struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Total returns the number of recorded jobs.
func (c Counts) Total() int64 {
	return c.Completed + c.Failed
}

// Record appends entry and returns its row id. A zero RecordedAt is stamped
// with the current time.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if entry.Filename == "" {
		return 0, errors.New("history: filename is required")
	}
	switch entry.Outcome {
	case OutcomeCompleted, OutcomeFailed:
	default:
		return 0, fmt.Errorf("history: unsupported outcome %q", entry.Outcome)
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`INSERT INTO jobs (filename, outcome, reason, duration_ms, recorded_at) VALUES (?, ?, ?, ?, ?)`,
			entry.Filename, entry.Outcome, entry.Reason, entry.DurationMS,
			entry.RecordedAt.UTC().Format(time.RFC3339Nano),
		)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("insert history entry: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, outcome, reason, duration_ms, recorded_at FROM jobs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &e.Filename, &e.Outcome, &e.Reason, &e.DurationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			e.RecordedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Counts returns per-outcome totals.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM jobs GROUP BY outcome`)
	if err != nil {
		return Counts{}, fmt.Errorf("count history: %w", err)
	}
	defer rows.Close()

	var counts Counts
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return Counts{}, fmt.Errorf("scan history count: %w", err)
		}
		switch outcome {
		case OutcomeCompleted:
			counts.Completed = n
		case OutcomeFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

// PruneBefore deletes entries recorded before cutoff and returns how many
// were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, `DELETE FROM jobs WHERE recorded_at < ?`,
			cutoff.UTC().Format(time.RFC3339Nano))
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}
