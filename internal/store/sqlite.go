// Package store persists waits in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/ecswait/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

const waitColumns = `id, cluster, filter, state, interval_ns, timeout_ns, soft_fail, polls, last_count,
	error, labels, created_at, last_polled_at, completed_at`

func (s *SQLiteStore) CreateWait(ctx context.Context, w *model.Wait) error {
	s.logger.Debug("sql", "op", "insert", "table", "waits", "id", w.ID)

	filterJSON, err := json.Marshal(w.Filter)
	if err != nil {
		return fmt.Errorf("marshal filter: %w", err)
	}
	labelsJSON, err := json.Marshal(w.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO waits (`+waitColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Cluster, string(filterJSON), string(w.State),
		int64(w.Interval), int64(w.Timeout), boolToInt(w.SoftFail),
		w.Polls, w.LastCount, w.Error, string(labelsJSON),
		w.CreatedAt.Format(time.RFC3339Nano),
		formatTimePtr(w.LastPolledAt), formatTimePtr(w.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) GetWait(ctx context.Context, id string) (*model.Wait, error) {
	s.logger.Debug("sql", "op", "select", "table", "waits", "id", id)

	row := s.db.QueryRowContext(ctx, `SELECT `+waitColumns+` FROM waits WHERE id = ?`, id)
	w, err := scanWait(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *SQLiteStore) ListWaits(ctx context.Context, opts model.ListOptions) ([]*model.Wait, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "waits", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var where []string
	var args []any
	if opts.State != "" {
		where = append(where, "state = ?")
		args = append(args, opts.State)
	}
	if opts.Cluster != "" {
		where = append(where, "cluster = ?")
		args = append(args, opts.Cluster)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM waits`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+waitColumns+` FROM waits`+clause+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var waits []*model.Wait
	for rows.Next() {
		w, err := scanWait(rows)
		if err != nil {
			return nil, 0, err
		}
		waits = append(waits, w)
	}
	return waits, total, rows.Err()
}

func (s *SQLiteStore) UpdateWait(ctx context.Context, w *model.Wait, expected model.WaitState) error {
	s.logger.Debug("sql", "op", "update", "table", "waits", "id", w.ID, "state", w.State, "expected", expected)

	labelsJSON, err := json.Marshal(w.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE waits SET state = ?, polls = ?, last_count = ?, error = ?, labels = ?,
		 last_polled_at = ?, completed_at = ? WHERE id = ? AND state = ?`,
		string(w.State), w.Polls, w.LastCount, w.Error, string(labelsJSON),
		formatTimePtr(w.LastPolledAt), formatTimePtr(w.CompletedAt), w.ID, string(expected),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT state FROM waits WHERE id = ?`, w.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("wait %s: %w", w.ID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("wait %s is %s, expected %s: %w", w.ID, current, expected, ErrStateConflict)
}

func (s *SQLiteStore) GetWaitsByState(ctx context.Context, state model.WaitState) ([]*model.Wait, error) {
	s.logger.Debug("sql", "op", "select_by_state", "table", "waits", "state", state)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+waitColumns+` FROM waits WHERE state = ? ORDER BY created_at ASC`, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var waits []*model.Wait
	for rows.Next() {
		w, err := scanWait(rows)
		if err != nil {
			return nil, err
		}
		waits = append(waits, w)
	}
	return waits, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWait(sc scanner) (*model.Wait, error) {
	var w model.Wait
	var filterJSON, labelsJSON, state, createdAt string
	var intervalNS, timeoutNS int64
	var softFail int
	var lastPolledAt, completedAt sql.NullString

	if err := sc.Scan(&w.ID, &w.Cluster, &filterJSON, &state, &intervalNS, &timeoutNS, &softFail,
		&w.Polls, &w.LastCount, &w.Error, &labelsJSON, &createdAt, &lastPolledAt, &completedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(filterJSON), &w.Filter); err != nil {
		return nil, fmt.Errorf("unmarshal filter for wait %s: %w", w.ID, err)
	}
	if err := json.Unmarshal([]byte(labelsJSON), &w.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels for wait %s: %w", w.ID, err)
	}
	if w.Labels == nil {
		w.Labels = map[string]string{}
	}
	w.State = model.WaitState(state)
	w.Interval = time.Duration(intervalNS)
	w.Timeout = time.Duration(timeoutNS)
	w.SoftFail = softFail != 0
	w.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	w.LastPolledAt = parseTimePtr(lastPolledAt)
	w.CompletedAt = parseTimePtr(completedAt)
	return &w, nil
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
