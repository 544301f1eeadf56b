// Package history persists task and session completions to SQLite so past
// activity survives daemon restarts.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/user/taskping/internal/types"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database (modernc.org/sqlite, pure Go, no CGO).
type Store struct {
	db *sql.DB
}

// New opens (or creates) the history database at the given path.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool,
	// preventing "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// TaskRecord is one finished task.
type TaskRecord struct {
	ID                int64
	SessionID         types.SessionID
	Project           string
	Cost              float64
	Duration          time.Duration
	AssistantMessages int
	LastMessageUUID   string
	CompletionType    types.CompletionType
	CompletedAt       time.Time
}

// SessionRecord is one completed session.
type SessionRecord struct {
	ID           int64
	SessionID    types.SessionID
	Project      string
	Summary      string
	TotalCost    float64
	MessageCount int
	Duration     time.Duration
	StartedAt    time.Time
	EndedAt      time.Time
	Reason       types.CompletionReason
	RecordedAt   time.Time
}

// RecordTask inserts a task completion.
func (s *Store) RecordTask(ctx context.Context, r *TaskRecord) error {
	if r.CompletedAt.IsZero() {
		r.CompletedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO task_completions (session_id, project, cost, duration_ms, assistant_messages, last_message_uuid, completion_type, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.SessionID), r.Project, r.Cost, r.Duration.Milliseconds(),
		r.AssistantMessages, r.LastMessageUUID, string(r.CompletionType), r.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record task completion: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

// RecordSession inserts a session completion.
func (s *Store) RecordSession(ctx context.Context, r *SessionRecord) error {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO session_completions (session_id, project, summary, total_cost, message_count, duration_ms, started_at, ended_at, reason, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.SessionID), r.Project, r.Summary, r.TotalCost, r.MessageCount,
		r.Duration.Milliseconds(), r.StartedAt.UTC(), r.EndedAt.UTC(), string(r.Reason), r.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record session completion: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

// RecentTasks returns the newest task completions, optionally filtered by
// project. limit <= 0 means 20.
func (s *Store) RecentTasks(ctx context.Context, project string, limit int) ([]*TaskRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, session_id, project, cost, duration_ms, assistant_messages, last_message_uuid, completion_type, completed_at
		FROM task_completions`
	var args []any
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY completed_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task completions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*TaskRecord
	for rows.Next() {
		r := &TaskRecord{}
		var sessionID, completionType string
		var durationMS int64
		if err := rows.Scan(&r.ID, &sessionID, &r.Project, &r.Cost, &durationMS,
			&r.AssistantMessages, &r.LastMessageUUID, &completionType, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan task completion: %w", err)
		}
		r.SessionID = types.SessionID(sessionID)
		r.CompletionType = types.CompletionType(completionType)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentSessions returns the newest session completions, optionally
// filtered by project. limit <= 0 means 20.
func (s *Store) RecentSessions(ctx context.Context, project string, limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, session_id, project, summary, total_cost, message_count, duration_ms, started_at, ended_at, reason, recorded_at
		FROM session_completions`
	var args []any
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list session completions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*SessionRecord
	for rows.Next() {
		r := &SessionRecord{}
		var sessionID, reason string
		var durationMS int64
		if err := rows.Scan(&r.ID, &sessionID, &r.Project, &r.Summary, &r.TotalCost,
			&r.MessageCount, &durationMS, &r.StartedAt, &r.EndedAt, &reason, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan session completion: %w", err)
		}
		r.SessionID = types.SessionID(sessionID)
		r.Reason = types.CompletionReason(reason)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// DigestStats aggregates activity since a point in time.
type DigestStats struct {
	Since       time.Time
	Tasks       int
	TaskCost    float64
	Sessions    int
	SessionCost float64
	Projects    []string
}

// Summary aggregates completions recorded at or after since.
func (s *Store) Summary(ctx context.Context, since time.Time) (*DigestStats, error) {
	stats := &DigestStats{Since: since}
	since = since.UTC()

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(cost), 0) FROM task_completions WHERE completed_at >= ?", since,
	).Scan(&stats.Tasks, &stats.TaskCost)
	if err != nil {
		return nil, fmt.Errorf("summarize tasks: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(total_cost), 0) FROM session_completions WHERE recorded_at >= ?", since,
	).Scan(&stats.Sessions, &stats.SessionCost)
	if err != nil {
		return nil, fmt.Errorf("summarize sessions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT project FROM task_completions WHERE completed_at >= ?
		UNION SELECT project FROM session_completions WHERE recorded_at >= ?
		ORDER BY project`, since, since)
	if err != nil {
		return nil, fmt.Errorf("summarize projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		stats.Projects = append(stats.Projects, p)
	}
	return stats, rows.Err()
}
