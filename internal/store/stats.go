package store

import (
	"time"

	"github.com/pavelanni/statexam/internal/model"
)

// Option configures a progress store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used to stamp saved records.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// stamp fills in the session ID, date and timestamp of rec.
func stamp(rec model.ProgressRecord, now time.Time) model.ProgressRecord {
	if rec.SessionID == "" {
		rec.SessionID = model.NewSessionID(now)
	}
	rec.Date = now.Format(model.DateLayout)
	rec.Timestamp = now.Format(model.TimestampLayout)
	return rec
}

func summaryOf(rec model.ProgressRecord) model.HistoryEntry {
	return model.HistoryEntry{
		SessionID: rec.SessionID,
		Date:      rec.Date,
		Grade:     rec.Grade,
		Mode:      rec.Mode,
		Accuracy:  rec.Accuracy,
	}
}

// Summarize aggregates a list of records.
//
// AverageAccuracy is weighted by question count (total correct over total
// questions), while each CategoryAverages entry is the plain mean of the
// per-session category accuracies. The two weightings differ on purpose.
func Summarize(records []model.ProgressRecord) model.Statistics {
	var st model.Statistics
	if len(records) == 0 {
		return st
	}

	type acc struct {
		sum   float64
		count int
	}
	cats := make(map[string]*acc)

	st.TotalSessions = len(records)
	for _, rec := range records {
		st.TotalQuestions += rec.TotalQuestions
		st.TotalCorrect += rec.CorrectAnswers
		for cat, score := range rec.CategoryScores {
			a, ok := cats[cat]
			if !ok {
				a = &acc{}
				cats[cat] = a
			}
			a.sum += score
			a.count++
		}
	}
	if st.TotalQuestions > 0 {
		st.AverageAccuracy = float64(st.TotalCorrect) / float64(st.TotalQuestions)
	}

	st.CategoryAverages = make(map[string]float64, len(cats))
	for cat, a := range cats {
		st.CategoryAverages[cat] = a.sum / float64(a.count)
	}
	return st
}
