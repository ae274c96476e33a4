// Package sqlite implements planner.Store on a SQLite database through
// mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/planner"
)

// Fixed width keeps lexical order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const createCalendarSQL = `
CREATE TABLE IF NOT EXISTS calendar_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    start_at TEXT NOT NULL,
    end_at TEXT NOT NULL
)`

const createCalendarIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_calendar_user ON calendar_events(user_id, start_at)`

const createStudyLogsSQL = `
CREATE TABLE IF NOT EXISTS study_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    day TEXT NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    hours REAL NOT NULL DEFAULT 0,
    tasks_completed INTEGER NOT NULL DEFAULT 0
)`

const createStudyLogsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_study_logs_user ON study_logs(user_id, day)`

const createDeadlinesSQL = `
CREATE TABLE IF NOT EXISTS deadlines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    deadline_date TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    requirements_json TEXT NOT NULL DEFAULT '[]',
    category TEXT NOT NULL DEFAULT 'other',
    priority INTEGER NOT NULL DEFAULT 3,
    status TEXT NOT NULL DEFAULT 'pending'
)`

const createDeadlinesIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_deadlines_user ON deadlines(user_id, status, deadline_date)`

// Options configures a Store.
type Options struct {
	Logger logging.Logger
}

// Store is a planner.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s, err := New(db, optFns...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle and creates the schema if needed.
func New(db *sql.DB, optFns ...func(o *Options)) (*Store, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}

	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{db: db, logger: opts.Logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
		s.logger.Warn("planner.sqlite.pragma_failed", "pragma", "busy_timeout", "error", err)
	}

	statements := []string{
		createCalendarSQL,
		createCalendarIndexSQL,
		createStudyLogsSQL,
		createStudyLogsIndexSQL,
		createDeadlinesSQL,
		createDeadlinesIndexSQL,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	s.logger.Debug("planner.sqlite.schema_ready")
	return nil
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// AddCalendarEvent implements planner.Store.
func (s *Store) AddCalendarEvent(ctx context.Context, ev planner.CalendarEvent) (int64, error) {
	if !ev.End.After(ev.Start) {
		return 0, fmt.Errorf("calendar event %q ends before it starts", ev.Title)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_events (user_id, title, start_at, end_at) VALUES (?, ?, ?, ?)`,
		ev.UserID, ev.Title, ev.Start.UTC().Format(timeLayout), ev.End.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to insert calendar event: %w", err)
	}
	return res.LastInsertId()
}

// CalendarEvents implements planner.Store.
func (s *Store) CalendarEvents(ctx context.Context, userID string, from, to time.Time) ([]planner.CalendarEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, start_at, end_at FROM calendar_events
		 WHERE user_id = ? AND start_at < ? AND end_at > ?
		 ORDER BY start_at`,
		userID, to.UTC().Format(timeLayout), from.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar events: %w", err)
	}
	defer rows.Close()

	var out []planner.CalendarEvent
	for rows.Next() {
		var (
			ev         planner.CalendarEvent
			start, end string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Title, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		if ev.Start, err = time.Parse(timeLayout, start); err != nil {
			return nil, fmt.Errorf("calendar event %d: %w", ev.ID, err)
		}
		if ev.End, err = time.Parse(timeLayout, end); err != nil {
			return nil, fmt.Errorf("calendar event %d: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// AddStudyLog implements planner.Store.
func (s *Store) AddStudyLog(ctx context.Context, log planner.StudyLog) (int64, error) {
	if log.Hours < 0 {
		return 0, errors.New("study log hours must not be negative")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO study_logs (user_id, day, subject, hours, tasks_completed) VALUES (?, ?, ?, ?, ?)`,
		log.UserID, log.Day.UTC().Format(timeLayout), log.Subject, log.Hours, log.TasksCompleted)
	if err != nil {
		return 0, fmt.Errorf("failed to insert study log: %w", err)
	}
	return res.LastInsertId()
}

// StudyLogs implements planner.Store.
func (s *Store) StudyLogs(ctx context.Context, userID string, since time.Time) ([]planner.StudyLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, day, subject, hours, tasks_completed FROM study_logs
		 WHERE user_id = ? AND day >= ?
		 ORDER BY day, id`,
		userID, since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query study logs: %w", err)
	}
	defer rows.Close()

	var out []planner.StudyLog
	for rows.Next() {
		var (
			l   planner.StudyLog
			day string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &day, &l.Subject, &l.Hours, &l.TasksCompleted); err != nil {
			return nil, fmt.Errorf("failed to scan study log: %w", err)
		}
		if l.Day, err = time.Parse(timeLayout, day); err != nil {
			return nil, fmt.Errorf("study log %d: %w", l.ID, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AddDeadline implements planner.Store.
func (s *Store) AddDeadline(ctx context.Context, d planner.Deadline) (int64, error) {
	if err := planner.ValidateDeadline(d); err != nil {
		return 0, err
	}
	if d.Status == "" {
		d.Status = planner.StatusPending
	}
	if d.Requirements == nil {
		d.Requirements = []string{}
	}
	reqJSON, err := json.Marshal(d.Requirements)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal requirements: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO deadlines (user_id, title, deadline_date, description, requirements_json, category, priority, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.UserID, d.Title, d.DeadlineDate.Format(planner.DateLayout), d.Description, string(reqJSON), d.Category, d.Priority, d.Status)
	if err != nil {
		return 0, fmt.Errorf("failed to insert deadline: %w", err)
	}

	id, err := res.LastInsertId()
	if err == nil {
		s.logger.Debug("planner.deadline.added", "id", id, "user", d.UserID, "date", d.DeadlineDate.Format(planner.DateLayout))
	}
	return id, err
}

// Deadlines implements planner.Store.
func (s *Store) Deadlines(ctx context.Context, userID, status string) ([]planner.Deadline, error) {
	query := `SELECT id, user_id, title, deadline_date, description, requirements_json, category, priority, status
		FROM deadlines WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY deadline_date, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deadlines: %w", err)
	}
	defer rows.Close()

	var out []planner.Deadline
	for rows.Next() {
		var (
			d       planner.Deadline
			date    string
			reqJSON string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &date, &d.Description, &reqJSON, &d.Category, &d.Priority, &d.Status); err != nil {
			return nil, fmt.Errorf("failed to scan deadline: %w", err)
		}
		if d.DeadlineDate, err = time.Parse(planner.DateLayout, date); err != nil {
			return nil, fmt.Errorf("deadline %d: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(reqJSON), &d.Requirements); err != nil {
			return nil, fmt.Errorf("deadline %d: failed to unmarshal requirements: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDeadlineStatus implements planner.Store.
func (s *Store) UpdateDeadlineStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE deadlines SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update deadline: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("deadline %d: %w", id, planner.ErrNotFound)
	}
	return nil
}

var _ planner.Store = (*Store)(nil)
