package model

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the format of ProgressRecord.Date and HistoryEntry.Date.
	DateLayout = "2006-01-02"
	// TimestampLayout is fixed-width so timestamps sort lexicographically.
	TimestampLayout = "2006-01-02T15:04:05.000000"
)

// NewSessionID derives a session identifier from t, e.g.
// "20250301_142233_123456".
func NewSessionID(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/1000)
}
