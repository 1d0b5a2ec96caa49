package netlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	defaultRecentLimit = 100
	maxRecentLimit     = 1000
)

// SQLiteSink stores entries in the network_events table.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink creates a sink over an already migrated database.
func NewSQLiteSink(db *sql.DB) *SQLiteSink {
	return &SQLiteSink{db: db}
}

// Write inserts one entry.
func (s *SQLiteSink) Write(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO network_events (id, occurred_at, level, event, path, detail)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UTC().Format(timeLayout), e.Level.String(), e.Event, e.Path, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting network event: %w", err)
	}
	return nil
}

// Recent returns the newest matching entries, oldest first.
func (s *SQLiteSink) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	levels := atLeast(f.MinLevel)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(levels)), ",")
	conditions := []string{"level IN (" + placeholders + ")"}
	args := make([]any, 0, len(levels)+2)
	for _, l := range levels {
		args = append(args, l.String())
	}
	if f.Path != "" {
		conditions = append(conditions, "path = ?")
		args = append(args, f.Path)
	}
	args = append(args, limit)

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		"SELECT id, occurred_at, level, event, path, detail FROM network_events WHERE %s ORDER BY occurred_at DESC LIMIT ?",
		strings.Join(conditions, " AND "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying network events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var occurredAt, level string
		if err := rows.Scan(&e.ID, &occurredAt, &level, &e.Event, &e.Path, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning network event: %w", err)
		}
		if e.Time, err = time.Parse(timeLayout, occurredAt); err != nil {
			return nil, fmt.Errorf("parsing network event timestamp %q: %w", occurredAt, err)
		}
		if e.Level, err = ParseLevel(level); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating network events: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Prune deletes entries older than before and returns how many were removed.
func (s *SQLiteSink) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM network_events WHERE occurred_at < ?",
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning network events: %w", err)
	}
	return res.RowsAffected()
}

// RunPruner prunes entries older than retention every interval until ctx
// is done. A non-positive retention disables pruning.
func (s *SQLiteSink) RunPruner(ctx context.Context, retention, interval time.Duration, logger Logger) {
	if retention <= 0 || interval <= 0 {
		return
	}
	if logger == nil {
		logger = noopLogger{}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.Prune(ctx, now.Add(-retention))
			if err != nil {
				logger.Warn("pruning network events failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("pruned network events", "count", n)
			}
		}
	}
}
