package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pavelanni/statexam/internal/model"

	_ "modernc.org/sqlite"
)

// Store keeps progress records in SQLite. It satisfies the same contract
// as History and can replace it without changing callers.
type Store struct {
	db   *sql.DB
	opts options
}

func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, opts: applyOptions(opts)}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS progress_records (
		session_id TEXT PRIMARY KEY,
		grade TEXT NOT NULL,
		mode TEXT NOT NULL,
		total_questions INTEGER NOT NULL DEFAULT 0,
		correct_answers INTEGER NOT NULL DEFAULT 0,
		accuracy REAL NOT NULL DEFAULT 0,
		time_spent REAL,
		category_scores TEXT NOT NULL DEFAULT '{}',
		detailed_results TEXT NOT NULL DEFAULT '[]',
		date TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_progress_grade_mode ON progress_records (grade, mode);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save stamps and upserts a progress record.
func (s *Store) Save(rec model.ProgressRecord) (model.ProgressRecord, error) {
	rec = stamp(rec, s.opts.now())

	cats, err := json.Marshal(rec.CategoryScores)
	if err != nil {
		return rec, fmt.Errorf("encode category scores: %w", err)
	}
	details, err := json.Marshal(rec.DetailedResults)
	if err != nil {
		return rec, fmt.Errorf("encode detailed results: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO progress_records (session_id, grade, mode, total_questions, correct_answers, accuracy,
		     time_spent, category_scores, detailed_results, date, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		     grade = excluded.grade, mode = excluded.mode,
		     total_questions = excluded.total_questions, correct_answers = excluded.correct_answers,
		     accuracy = excluded.accuracy, time_spent = excluded.time_spent,
		     category_scores = excluded.category_scores, detailed_results = excluded.detailed_results,
		     date = excluded.date, timestamp = excluded.timestamp`,
		rec.SessionID, rec.Grade, rec.Mode, rec.TotalQuestions, rec.CorrectAnswers, rec.Accuracy,
		rec.TimeSpent, string(cats), string(details), rec.Date, rec.Timestamp,
	)
	if err != nil {
		slog.Error("failed to save session", "session_id", rec.SessionID, "error", err)
		return rec, fmt.Errorf("save session %s: %w", rec.SessionID, err)
	}
	slog.Info("saved session", "session_id", rec.SessionID, "grade", rec.Grade, "mode", rec.Mode,
		"accuracy", rec.Accuracy)
	return rec, nil
}

const recordColumns = `session_id, grade, mode, total_questions, correct_answers, accuracy,
	time_spent, category_scores, detailed_results, date, timestamp`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.ProgressRecord, error) {
	var (
		rec       model.ProgressRecord
		timeSpent sql.NullFloat64
		cats      string
		details   string
	)
	err := row.Scan(&rec.SessionID, &rec.Grade, &rec.Mode, &rec.TotalQuestions, &rec.CorrectAnswers,
		&rec.Accuracy, &timeSpent, &cats, &details, &rec.Date, &rec.Timestamp)
	if err != nil {
		return rec, err
	}
	if timeSpent.Valid {
		v := timeSpent.Float64
		rec.TimeSpent = &v
	}
	if err := json.Unmarshal([]byte(cats), &rec.CategoryScores); err != nil {
		slog.Warn("malformed category scores", "session_id", rec.SessionID, "error", err)
	}
	if err := json.Unmarshal([]byte(details), &rec.DetailedResults); err != nil {
		slog.Warn("malformed detailed results", "session_id", rec.SessionID, "error", err)
	}
	return rec, nil
}

// Get returns the record for sessionID, or nil if there is none.
func (s *Store) Get(sessionID string) (*model.ProgressRecord, error) {
	rec, err := scanRecord(s.db.QueryRow(
		`SELECT `+recordColumns+` FROM progress_records WHERE session_id = ?`, sessionID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns records matching the optional grade and mode, newest first.
func (s *Store) List(grade model.Grade, mode model.Mode) ([]model.ProgressRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM progress_records WHERE 1=1`
	var args []any
	if grade != "" {
		query += ` AND grade = ?`
		args = append(args, grade)
	}
	if mode != "" {
		query += ` AND mode = ?`
		args = append(args, mode)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []model.ProgressRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// HistoryList returns compact summaries, newest date first.
func (s *Store) HistoryList() ([]model.HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT session_id, date, grade, mode, accuracy FROM progress_records ORDER BY date DESC, timestamp ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []model.HistoryEntry{}
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.SessionID, &e.Date, &e.Grade, &e.Mode, &e.Accuracy); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Statistics aggregates every record of grade (all grades when empty).
func (s *Store) Statistics(grade model.Grade) (model.Statistics, error) {
	records, err := s.List(grade, "")
	if err != nil {
		return model.Statistics{}, err
	}
	return Summarize(records), nil
}

// SessionCount returns the number of stored records.
func (s *Store) SessionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM progress_records`).Scan(&count)
	return count, err
}
