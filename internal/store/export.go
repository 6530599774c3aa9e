package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/statexam/internal/model"
)

// ProgressReader is the read side shared by History and Store.
type ProgressReader interface {
	List(grade model.Grade, mode model.Mode) ([]model.ProgressRecord, error)
	HistoryList() ([]model.HistoryEntry, error)
}

// ExportProgress builds an export bundle of every record matching the
// optional grade and mode filters.
func ExportProgress(r ProgressReader, grade model.Grade, mode model.Mode, now time.Time) (model.ProgressExport, error) {
	records, err := r.List(grade, mode)
	if err != nil {
		return model.ProgressExport{}, fmt.Errorf("list sessions: %w", err)
	}
	entries, err := r.HistoryList()
	if err != nil {
		return model.ProgressExport{}, fmt.Errorf("read history: %w", err)
	}

	history := []model.HistoryEntry{}
	for _, e := range entries {
		if grade != "" && e.Grade != grade {
			continue
		}
		if mode != "" && e.Mode != mode {
			continue
		}
		history = append(history, e)
	}

	return model.ProgressExport{
		ExportedAt: now,
		Grade:      grade,
		Mode:       mode,
		Statistics: Summarize(records),
		History:    history,
		Sessions:   records,
	}, nil
}
