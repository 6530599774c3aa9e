package store

import (
	"math"
	"testing"
	"time"

	"github.com/pavelanni/statexam/internal/model"
)

// progressStore is the contract shared by History and Store.
type progressStore interface {
	Save(rec model.ProgressRecord) (model.ProgressRecord, error)
	Get(sessionID string) (*model.ProgressRecord, error)
	List(grade model.Grade, mode model.Mode) ([]model.ProgressRecord, error)
	HistoryList() ([]model.HistoryEntry, error)
	Statistics(grade model.Grade) (model.Statistics, error)
}

// fakeClock returns a clock advancing by step on every call.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

type storeFactory func(t *testing.T, now func() time.Time) progressStore

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"json": func(t *testing.T, now func() time.Time) progressStore {
			h, err := NewHistory(t.TempDir(), WithClock(now))
			if err != nil {
				t.Fatalf("NewHistory: %v", err)
			}
			return h
		},
		"sqlite": func(t *testing.T, now func() time.Time) progressStore {
			s, err := New(":memory:", WithClock(now))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestProgressSaveAndGet(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			start := time.Date(2025, 3, 1, 14, 22, 33, 123456000, time.UTC)
			s := factory(t, fakeClock(start, time.Second))

			spent := 125.5
			saved, err := s.Save(model.ProgressRecord{
				Grade:          model.Grade2,
				Mode:           model.ModeExam,
				TotalQuestions: 2,
				CorrectAnswers: 1,
				Accuracy:       0.5,
				TimeSpent:      &spent,
				CategoryScores: map[string]float64{"probability": 0.5},
				DetailedResults: []model.DetailResult{
					{ProblemID: "G2_probability_001", IsCorrect: true, UserAnswer: "b", CorrectAnswer: float64(1)},
					{ProblemID: "G2_probability_002", IsCorrect: false},
				},
			})
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if saved.SessionID != "20250301_142233_123456" {
				t.Errorf("session id = %q", saved.SessionID)
			}
			if saved.Date != "2025-03-01" {
				t.Errorf("date = %q", saved.Date)
			}
			if saved.Timestamp != "2025-03-01T14:22:33.123456" {
				t.Errorf("timestamp = %q", saved.Timestamp)
			}

			got, err := s.Get(saved.SessionID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got == nil {
				t.Fatal("expected record")
			}
			if got.TimeSpent == nil || *got.TimeSpent != spent {
				t.Errorf("time spent = %v", got.TimeSpent)
			}
			if len(got.DetailedResults) != 2 || !got.DetailedResults[0].IsCorrect {
				t.Errorf("detailed results = %+v", got.DetailedResults)
			}
			if got.DetailedResults[1].UserAnswer != nil {
				t.Errorf("missing answer should round-trip as nil, got %v", got.DetailedResults[1].UserAnswer)
			}
			if !approx(got.CategoryScores["probability"], 0.5) {
				t.Errorf("category scores = %v", got.CategoryScores)
			}

			missing, err := s.Get("nope")
			if err != nil || missing != nil {
				t.Errorf("Get(nope) = %v, %v", missing, err)
			}
		})
	}
}

func TestProgressKeepsGivenSessionID(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, time.Now)
			saved, err := s.Save(model.ProgressRecord{SessionID: "exam-1", Grade: model.Grade1, Mode: model.ModeExam})
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			if saved.SessionID != "exam-1" {
				t.Errorf("session id = %q", saved.SessionID)
			}

			// Saving again under the same id replaces the record and its index entry.
			if _, err := s.Save(model.ProgressRecord{SessionID: "exam-1", Grade: model.Grade1, Mode: model.ModeExam, Accuracy: 1}); err != nil {
				t.Fatalf("Save again: %v", err)
			}
			list, _ := s.List("", "")
			if len(list) != 1 || list[0].Accuracy != 1 {
				t.Errorf("List = %+v", list)
			}
			entries, _ := s.HistoryList()
			if len(entries) != 1 || entries[0].Accuracy != 1 {
				t.Errorf("HistoryList = %+v", entries)
			}
		})
	}
}

func TestProgressListFilterAndOrder(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
			s := factory(t, fakeClock(start, 25*time.Hour))

			recs := []model.ProgressRecord{
				{Grade: model.Grade2, Mode: model.ModeExam},
				{Grade: model.Grade2, Mode: model.ModePractice},
				{Grade: model.GradePre1, Mode: model.ModeExam},
				{Grade: model.Grade2, Mode: model.ModeExam},
			}
			var savedIDs []string
			for _, r := range recs {
				saved, err := s.Save(r)
				if err != nil {
					t.Fatalf("Save: %v", err)
				}
				savedIDs = append(savedIDs, saved.SessionID)
			}

			tests := []struct {
				name  string
				grade model.Grade
				mode  model.Mode
				want  []string
			}{
				{"all", "", "", []string{savedIDs[3], savedIDs[2], savedIDs[1], savedIDs[0]}},
				{"grade 2", model.Grade2, "", []string{savedIDs[3], savedIDs[1], savedIDs[0]}},
				{"grade 2 exams", model.Grade2, model.ModeExam, []string{savedIDs[3], savedIDs[0]}},
				{"practice", "", model.ModePractice, []string{savedIDs[1]}},
				{"grade 1", model.Grade1, "", []string{}},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					list, err := s.List(tt.grade, tt.mode)
					if err != nil {
						t.Fatalf("List: %v", err)
					}
					var got []string
					for _, r := range list {
						got = append(got, r.SessionID)
					}
					if len(got) != len(tt.want) {
						t.Fatalf("List = %v, want %v", got, tt.want)
					}
					for i := range got {
						if got[i] != tt.want[i] {
							t.Fatalf("List = %v, want %v", got, tt.want)
						}
					}
				})
			}

			entries, err := s.HistoryList()
			if err != nil {
				t.Fatalf("HistoryList: %v", err)
			}
			if len(entries) != 4 {
				t.Fatalf("expected 4 history entries, got %d", len(entries))
			}
			for i := 1; i < len(entries); i++ {
				if entries[i-1].Date < entries[i].Date {
					t.Errorf("history not sorted by date desc: %+v", entries)
				}
			}
		})
	}
}

func TestProgressStatistics(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, fakeClock(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), time.Minute))

			empty, err := s.Statistics("")
			if err != nil {
				t.Fatalf("Statistics: %v", err)
			}
			if empty.TotalSessions != 0 || empty.AverageAccuracy != 0 {
				t.Errorf("empty statistics = %+v", empty)
			}

			recs := []model.ProgressRecord{
				{Grade: model.Grade2, Mode: model.ModeExam, TotalQuestions: 10, CorrectAnswers: 7,
					CategoryScores: map[string]float64{"probability": 1.0, "regression": 0.5}},
				{Grade: model.Grade2, Mode: model.ModeExam, TotalQuestions: 20, CorrectAnswers: 10,
					CategoryScores: map[string]float64{"probability": 0.0}},
				{Grade: model.GradePre1, Mode: model.ModePractice, TotalQuestions: 5, CorrectAnswers: 5},
			}
			for _, r := range recs {
				if _, err := s.Save(r); err != nil {
					t.Fatalf("Save: %v", err)
				}
			}

			st, err := s.Statistics("")
			if err != nil {
				t.Fatalf("Statistics: %v", err)
			}
			if st.TotalSessions != 3 {
				t.Errorf("total sessions = %d, want 3", st.TotalSessions)
			}
			if st.TotalQuestions != 35 {
				t.Errorf("total questions = %d, want 35", st.TotalQuestions)
			}
			if st.TotalCorrect != 22 {
				t.Errorf("total correct = %d, want 22", st.TotalCorrect)
			}
			if !approx(st.AverageAccuracy, 22.0/35.0) {
				t.Errorf("average accuracy = %v, want %v", st.AverageAccuracy, 22.0/35.0)
			}

			// Category averages are the unweighted mean of per-session values,
			// not weighted by question count like AverageAccuracy.
			if !approx(st.CategoryAverages["probability"], 0.5) {
				t.Errorf("probability average = %v, want 0.5", st.CategoryAverages["probability"])
			}
			if !approx(st.CategoryAverages["regression"], 0.5) {
				t.Errorf("regression average = %v, want 0.5", st.CategoryAverages["regression"])
			}

			g2, err := s.Statistics(model.Grade2)
			if err != nil {
				t.Fatalf("Statistics(2): %v", err)
			}
			if g2.TotalSessions != 2 || g2.TotalQuestions != 30 || g2.TotalCorrect != 17 {
				t.Errorf("grade 2 statistics = %+v", g2)
			}
		})
	}
}

func TestSummarizeWeighting(t *testing.T) {
	// One session with 1/1 and one with 0/99: question-weighted overall
	// accuracy is 1%, session-weighted category average is 50%.
	st := Summarize([]model.ProgressRecord{
		{TotalQuestions: 1, CorrectAnswers: 1, CategoryScores: map[string]float64{"c": 1}},
		{TotalQuestions: 99, CorrectAnswers: 0, CategoryScores: map[string]float64{"c": 0}},
	})
	if !approx(st.AverageAccuracy, 0.01) {
		t.Errorf("average accuracy = %v, want 0.01", st.AverageAccuracy)
	}
	if !approx(st.CategoryAverages["c"], 0.5) {
		t.Errorf("category average = %v, want 0.5", st.CategoryAverages["c"])
	}
}

func TestSummarizeZeroQuestions(t *testing.T) {
	st := Summarize([]model.ProgressRecord{{TotalQuestions: 0}})
	if st.TotalSessions != 1 || st.AverageAccuracy != 0 {
		t.Errorf("Summarize = %+v", st)
	}
}

func TestExportProgress(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, fakeClock(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), time.Hour))
			for _, r := range []model.ProgressRecord{
				{Grade: model.Grade2, Mode: model.ModeExam, TotalQuestions: 10, CorrectAnswers: 5},
				{Grade: model.Grade1, Mode: model.ModeExam, TotalQuestions: 3, CorrectAnswers: 3},
			} {
				if _, err := s.Save(r); err != nil {
					t.Fatalf("Save: %v", err)
				}
			}

			now := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
			exp, err := ExportProgress(s, model.Grade2, "", now)
			if err != nil {
				t.Fatalf("ExportProgress: %v", err)
			}
			if !exp.ExportedAt.Equal(now) {
				t.Errorf("exported at = %v", exp.ExportedAt)
			}
			if len(exp.Sessions) != 1 || len(exp.History) != 1 {
				t.Fatalf("sessions = %d, history = %d, want 1 and 1", len(exp.Sessions), len(exp.History))
			}
			if exp.Statistics.TotalQuestions != 10 || !approx(exp.Statistics.AverageAccuracy, 0.5) {
				t.Errorf("statistics = %+v", exp.Statistics)
			}
		})
	}
}
