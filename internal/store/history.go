package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pavelanni/statexam/internal/model"
)

// HistoryIndexFile is the name of the compact summary index.
const HistoryIndexFile = "history_list.json"

// History keeps one JSON file per completed session in a directory, plus
// an index of compact summaries so list views need not open every record.
type History struct {
	dir  string
	opts options
}

// NewHistory returns a progress store rooted at dir, creating it if needed.
func NewHistory(dir string, opts ...Option) (*History, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &History{dir: dir, opts: applyOptions(opts)}, nil
}

// validSessionID reports whether id can name a record file without
// escaping the directory or clobbering the index.
func validSessionID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`) &&
		id+".json" != HistoryIndexFile
}

func (h *History) recordPath(sessionID string) string {
	return filepath.Join(h.dir, sessionID+".json")
}

// Save stamps and persists rec, then refreshes the history index.
func (h *History) Save(rec model.ProgressRecord) (model.ProgressRecord, error) {
	rec = stamp(rec, h.opts.now())
	if !validSessionID(rec.SessionID) {
		return rec, fmt.Errorf("save session: invalid session id %q", rec.SessionID)
	}
	if err := writeJSON(h.recordPath(rec.SessionID), rec); err != nil {
		return rec, fmt.Errorf("save session %s: %w", rec.SessionID, err)
	}
	if err := h.updateIndex(rec); err != nil {
		return rec, err
	}
	slog.Info("saved session", "session_id", rec.SessionID, "grade", rec.Grade, "mode", rec.Mode,
		"accuracy", rec.Accuracy)
	return rec, nil
}

func (h *History) updateIndex(rec model.ProgressRecord) error {
	entries := h.readIndex()
	entries = slices.DeleteFunc(entries, func(e model.HistoryEntry) bool {
		return e.SessionID == rec.SessionID
	})
	entries = append(entries, summaryOf(rec))
	slices.SortStableFunc(entries, func(a, b model.HistoryEntry) int {
		return strings.Compare(b.Date, a.Date)
	})
	if err := writeJSON(filepath.Join(h.dir, HistoryIndexFile), entries); err != nil {
		return fmt.Errorf("update history index: %w", err)
	}
	return nil
}

func (h *History) readIndex() []model.HistoryEntry {
	var entries []model.HistoryEntry
	readJSON(filepath.Join(h.dir, HistoryIndexFile), &entries)
	return entries
}

// HistoryList returns the summary index, newest date first.
func (h *History) HistoryList() ([]model.HistoryEntry, error) {
	entries := h.readIndex()
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	return entries, nil
}

// Get returns the record for sessionID, or nil if there is none.
func (h *History) Get(sessionID string) (*model.ProgressRecord, error) {
	if !validSessionID(sessionID) {
		return nil, nil
	}
	var rec model.ProgressRecord
	if !readJSON(h.recordPath(sessionID), &rec) {
		return nil, nil
	}
	return &rec, nil
}

// List returns every stored record matching the optional grade and mode,
// newest timestamp first.
func (h *History) List(grade model.Grade, mode model.Mode) ([]model.ProgressRecord, error) {
	paths, err := filepath.Glob(filepath.Join(h.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	records := []model.ProgressRecord{}
	for _, path := range paths {
		if filepath.Base(path) == HistoryIndexFile {
			continue
		}
		var rec model.ProgressRecord
		if !readJSON(path, &rec) {
			continue
		}
		if grade != "" && rec.Grade != grade {
			continue
		}
		if mode != "" && rec.Mode != mode {
			continue
		}
		records = append(records, rec)
	}
	slices.SortStableFunc(records, func(a, b model.ProgressRecord) int {
		return strings.Compare(b.Timestamp, a.Timestamp)
	})
	return records, nil
}

// Statistics aggregates every record of grade (all grades when empty).
func (h *History) Statistics(grade model.Grade) (model.Statistics, error) {
	records, err := h.List(grade, "")
	if err != nil {
		return model.Statistics{}, err
	}
	return Summarize(records), nil
}
