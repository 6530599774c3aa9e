// Package exam runs timed exam and untimed practice sessions over problems
// sampled from the bank and records graded results.
package exam

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/statexam/internal/config"
	"github.com/pavelanni/statexam/internal/model"
)

// Sampler draws problems from the bank.
type Sampler interface {
	SampleRandom(grade model.Grade, n int, category string, difficulty model.Difficulty) []model.Problem
}

// Recorder persists finished sessions.
type Recorder interface {
	Save(rec model.ProgressRecord) (model.ProgressRecord, error)
}

// Engine starts and finishes sessions.
type Engine struct {
	bank     Sampler
	progress Recorder
	grades   config.Grades
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(bank Sampler, progress Recorder, grades config.Grades, opts ...Option) *Engine {
	e := &Engine{bank: bank, progress: progress, grades: grades, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the exam settings for grade, falling back to
// config.Fallback for grades without configuration.
func (e *Engine) Settings(grade model.Grade) model.GradeSettings {
	if s, ok := e.grades.Settings(grade); ok {
		return s
	}
	return config.Fallback
}

// Start samples an exam for grade. A count of zero or less uses the
// grade's configured question count. It returns false when the bank has
// no problems for the grade.
func (e *Engine) Start(grade model.Grade, count int) (*Session, bool) {
	settings := e.Settings(grade)
	if count <= 0 {
		count = settings.Questions
	}
	problems := e.bank.SampleRandom(grade, count, "", "")
	if len(problems) == 0 {
		slog.Info("no problems to start exam", "grade", grade)
		return nil, false
	}
	s := e.newSession(grade, model.ModeExam, problems)
	s.timeLimit = settings.TimeLimit()
	slog.Info("exam started", "exam_id", s.id, "grade", grade, "problems", len(problems))
	return s, true
}

// StartPractice samples an untimed practice set, optionally narrowed by
// category and difficulty.
func (e *Engine) StartPractice(grade model.Grade, count int, category string, difficulty model.Difficulty) (*Session, bool) {
	if count <= 0 {
		count = e.Settings(grade).Questions
	}
	problems := e.bank.SampleRandom(grade, count, category, difficulty)
	if len(problems) == 0 {
		slog.Info("no problems to start practice", "grade", grade, "category", category, "difficulty", difficulty)
		return nil, false
	}
	s := e.newSession(grade, model.ModePractice, problems)
	slog.Info("practice started", "exam_id", s.id, "grade", grade, "problems", len(problems))
	return s, true
}

func (e *Engine) newSession(grade model.Grade, mode model.Mode, problems []model.Problem) *Session {
	start := e.now()
	return &Session{
		id:       model.NewSessionID(start),
		grade:    grade,
		mode:     mode,
		problems: problems,
		answers:  map[string]model.SubmittedAnswer{},
		start:    start,
		now:      e.now,
	}
}

// Finish grades the session, saves its progress record and returns the
// result. Finishing a nil session returns an empty result. Finishing a
// session twice returns the first result without saving again.
func (e *Engine) Finish(s *Session) (model.ExamResult, error) {
	if s == nil {
		return model.ExamResult{}, nil
	}
	if s.result != nil {
		return *s.result, nil
	}
	if !s.finished {
		s.end = e.now()
		s.finished = true
	}

	graded := s.score()
	rec := model.ProgressRecord{
		SessionID:       s.id,
		Grade:           s.grade,
		Mode:            s.mode,
		TotalQuestions:  len(s.problems),
		CorrectAnswers:  graded.CorrectCount,
		Accuracy:        graded.Accuracy,
		CategoryScores:  graded.CategoryScores,
		DetailedResults: graded.DetailedResults,
	}
	if s.mode == model.ModeExam {
		spent := s.end.Sub(s.start).Seconds()
		rec.TimeSpent = &spent
	}

	saved, err := e.progress.Save(rec)
	if err != nil {
		return model.ExamResult{}, fmt.Errorf("save session %s: %w", s.id, err)
	}
	slog.Info("session finished", "exam_id", s.id, "mode", s.mode,
		"correct", graded.CorrectCount, "total", len(s.problems))

	res := model.ExamResult{ExamID: s.id, Results: &graded, SessionData: &saved}
	s.result = &res
	return res, nil
}
