// Package views renders the server-side HTML pages.
package views

//go:generate templ generate

import (
	"context"
	"fmt"
	"slices"

	"github.com/a-h/templ"

	"github.com/pavelanni/statexam/internal/i18n"
	"github.com/pavelanni/statexam/internal/model"
	"github.com/pavelanni/statexam/internal/scoring"
)

// GradeInfo is one row of the grade table on the index page.
type GradeInfo struct {
	Grade      model.Grade
	Settings   model.GradeSettings
	Available  int
	Categories []string
}

// IndexData feeds IndexPage.
type IndexData struct {
	Grades []GradeInfo
	Stats  model.Statistics
	Recent []model.HistoryEntry
}

// ResultData feeds ResultPage. Problems is keyed by problem id and may
// miss problems that were deleted from the bank after the session.
type ResultData struct {
	Record   model.ProgressRecord
	Problems map[string]model.Problem
}

// detailView is one graded problem as shown on the result page.
type detailView struct {
	ProblemID     string
	Question      string
	Status        string
	StatusKey     string
	UserAnswer    string
	CorrectAnswer string
	Explanation   string
}

func percent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

func homeURL(ctx context.Context) templ.SafeURL {
	return templ.SafeURL(model.BasePathFromContext(ctx) + "/")
}

func resultURL(ctx context.Context, sessionID string) templ.SafeURL {
	return templ.SafeURL(model.BasePathFromContext(ctx) + "/result/" + sessionID)
}

func recentLabel(ctx context.Context, e model.HistoryEntry) string {
	return e.Date + " " + i18n.GradeLabel(ctx, e.Grade) + " " + i18n.ModeLabel(ctx, e.Mode) + " " + percent(e.Accuracy)
}

func summary(ctx context.Context, rec model.ProgressRecord) string {
	return i18n.GradeLabel(ctx, rec.Grade) + " " + i18n.ModeLabel(ctx, rec.Mode) + " " +
		i18n.Td(ctx, "Score", map[string]any{"Correct": rec.CorrectAnswers, "Total": rec.TotalQuestions}) +
		" (" + percent(rec.Accuracy) + ")"
}

func sortedCategories(scores map[string]float64) []string {
	cats := make([]string, 0, len(scores))
	for c := range scores {
		cats = append(cats, c)
	}
	slices.Sort(cats)
	return cats
}

// details resolves each graded problem against the bank. Essays are shown
// as not auto-graded instead of incorrect.
func details(ctx context.Context, d ResultData) []detailView {
	out := make([]detailView, 0, len(d.Record.DetailedResults))
	for _, dr := range d.Record.DetailedResults {
		prob, known := d.Problems[dr.ProblemID]
		v := detailView{
			ProblemID:     dr.ProblemID,
			Status:        i18n.T(ctx, "Incorrect"),
			StatusKey:     "incorrect",
			UserAnswer:    i18n.T(ctx, "NoAnswer"),
			CorrectAnswer: displayAnswer(prob, known, dr.CorrectAnswer),
		}
		switch {
		case known && !scoring.AutoGradable(prob):
			v.Status, v.StatusKey = i18n.T(ctx, "NotAutoGraded"), "manual"
		case dr.IsCorrect:
			v.Status, v.StatusKey = i18n.T(ctx, "Correct"), "correct"
		}
		if dr.UserAnswer != nil {
			v.UserAnswer = fmt.Sprintf("%v", dr.UserAnswer)
		}
		if known {
			v.Question = prob.Question
			v.Explanation = prob.Explanation
		}
		out = append(out, v)
	}
	return out
}

// displayAnswer resolves a multiple-choice index to its option text.
func displayAnswer(p model.Problem, known bool, correct any) string {
	if known && p.Type() == model.TypeMultipleChoice {
		if opt, ok := scoring.CorrectOption(p); ok {
			return opt
		}
	}
	if correct == nil {
		return "-"
	}
	if s, ok := scoring.Text(correct); ok {
		return s
	}
	return fmt.Sprintf("%v", correct)
}
