package exam

import (
	"maps"
	"slices"
	"time"

	"github.com/pavelanni/statexam/internal/model"
	"github.com/pavelanni/statexam/internal/scoring"
)

// Session is one attempt at a fixed set of problems. A nil *Session is
// treated as "no active session" by every method.
type Session struct {
	id        string
	grade     model.Grade
	mode      model.Mode
	problems  []model.Problem
	answers   map[string]model.SubmittedAnswer
	start     time.Time
	timeLimit time.Duration // zero for untimed practice
	end       time.Time
	finished  bool
	result    *model.ExamResult
	now       func() time.Time
}

// ID returns the exam id, or "" for a nil session.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

func (s *Session) Grade() model.Grade {
	if s == nil {
		return ""
	}
	return s.grade
}

func (s *Session) Mode() model.Mode {
	if s == nil {
		return ""
	}
	return s.mode
}

// Problems returns a copy of the sampled problem set in order.
func (s *Session) Problems() []model.Problem {
	if s == nil {
		return nil
	}
	return slices.Clone(s.problems)
}

// IsFinished reports whether Finish has been called on the session.
func (s *Session) IsFinished() bool {
	return s != nil && s.finished
}

// Answer returns the latest answer submitted for problemID.
func (s *Session) Answer(problemID string) (model.SubmittedAnswer, bool) {
	if s == nil {
		return model.SubmittedAnswer{}, false
	}
	a, ok := s.answers[problemID]
	return a, ok
}

// SubmitAnswer records value as the answer for problemID, replacing any
// earlier answer. The time limit is not enforced here. It returns false
// when there is no session or the session is finished.
func (s *Session) SubmitAnswer(problemID string, value any) bool {
	if s == nil || s.finished {
		return false
	}
	s.answers[problemID] = model.SubmittedAnswer{Value: value, SubmittedAt: s.now()}
	return true
}

// RemainingTime returns the time left before the limit, floored at zero.
// ok is false for a nil, finished or untimed session.
func (s *Session) RemainingTime() (remaining time.Duration, ok bool) {
	if s == nil || s.finished || s.timeLimit <= 0 {
		return 0, false
	}
	remaining = s.timeLimit - s.now().Sub(s.start)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Check grades the current answer to one problem of the session.
// ok is false when the problem is not part of the session or has no answer.
func (s *Session) Check(problemID string) (correct, ok bool) {
	if s == nil {
		return false, false
	}
	i := slices.IndexFunc(s.problems, func(p model.Problem) bool { return p.ID == problemID })
	if i < 0 {
		return false, false
	}
	a, answered := s.answers[problemID]
	if !answered {
		return false, false
	}
	return scoring.IsCorrect(s.problems[i], a.Value), true
}

// View returns the serializable state of the session.
func (s *Session) View() model.SessionView {
	if s == nil {
		return model.SessionView{}
	}
	v := model.SessionView{
		ExamID:     s.id,
		Grade:      s.grade,
		Mode:       s.mode,
		Problems:   slices.Clone(s.problems),
		Answers:    maps.Clone(s.answers),
		StartTime:  s.start,
		IsFinished: s.finished,
	}
	if s.timeLimit > 0 {
		v.TimeLimitSeconds = s.timeLimit.Seconds()
	}
	if s.finished {
		end := s.end
		v.EndTime = &end
	}
	return v
}

// score runs the scoring pass over the session's problems in order.
// Answers for problem ids outside the session are ignored.
func (s *Session) score() model.GradingResult {
	type tally struct{ correct, total int }

	res := model.GradingResult{
		CategoryScores:  map[string]float64{},
		DetailedResults: make([]model.DetailResult, 0, len(s.problems)),
	}
	buckets := map[string]*tally{}

	for _, p := range s.problems {
		var answer any
		if a, ok := s.answers[p.ID]; ok {
			answer = a.Value
		}
		correct := scoring.IsCorrect(p, answer)
		if correct {
			res.CorrectCount++
		}

		category := p.Category
		if category == "" {
			category = "unknown"
		}
		b, ok := buckets[category]
		if !ok {
			b = &tally{}
			buckets[category] = b
		}
		b.total++
		if correct {
			b.correct++
		}

		res.DetailedResults = append(res.DetailedResults, model.DetailResult{
			ProblemID:     p.ID,
			IsCorrect:     correct,
			UserAnswer:    answer,
			CorrectAnswer: p.CorrectAnswer,
		})
	}

	if len(s.problems) > 0 {
		res.Accuracy = float64(res.CorrectCount) / float64(len(s.problems))
	}
	for c, b := range buckets {
		res.CategoryScores[c] = float64(b.correct) / float64(b.total)
	}
	return res
}
