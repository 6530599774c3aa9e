package model

import "time"

// ProgressExport is the top-level JSON structure for progress export.
type ProgressExport struct {
	ExportedAt time.Time        `json:"exported_at"`
	Grade      Grade            `json:"grade,omitempty"`
	Mode       Mode             `json:"mode,omitempty"`
	Statistics Statistics       `json:"statistics"`
	History    []HistoryEntry   `json:"history"`
	Sessions   []ProgressRecord `json:"sessions"`
}
