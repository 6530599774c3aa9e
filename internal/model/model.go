package model

import (
	"context"
	"time"
)

// Grade is a certification tier. Values are the tags used in bank
// directories, configuration and progress records.
type Grade string

const (
	// Grade2 is the introductory tier.
	Grade2 Grade = "2"
	// GradePre1 is the intermediate tier.
	GradePre1 Grade = "pre1"
	// Grade1 is the most advanced tier.
	Grade1 Grade = "1"
)

// Grades lists the known tiers from easiest to hardest.
var Grades = []Grade{Grade2, GradePre1, Grade1}

// Valid reports whether g is one of the known tiers.
func (g Grade) Valid() bool {
	switch g {
	case Grade2, GradePre1, Grade1:
		return true
	}
	return false
}

// DirName returns the bank directory name for the grade.
func (g Grade) DirName() string {
	switch g {
	case Grade2:
		return "grade2"
	case GradePre1:
		return "grade_pre1"
	case Grade1:
		return "grade1"
	}
	return "grade" + string(g)
}

// IDPrefix returns the prefix used when synthesizing problem IDs.
func (g Grade) IDPrefix() string {
	switch g {
	case Grade2:
		return "G2"
	case GradePre1:
		return "GP1"
	case Grade1:
		return "G1"
	}
	return "G"
}

// GradeFromDir maps a bank directory name back to its grade.
func GradeFromDir(dir string) Grade {
	for _, g := range Grades {
		if g.DirName() == dir {
			return g
		}
	}
	if len(dir) > len("grade") && dir[:len("grade")] == "grade" {
		return Grade(dir[len("grade"):])
	}
	return Grade(dir)
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuestionType selects both the answer widget and the grading rule.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeNumericInput   QuestionType = "numeric_input"
	TypeEssay          QuestionType = "essay"
)

// Mode distinguishes practice sessions from timed exams.
type Mode string

const (
	ModePractice Mode = "practice"
	ModeExam     Mode = "exam"
)

// SubmittedAnswer is the latest answer recorded for one problem.
type SubmittedAnswer struct {
	Value       any       `json:"answer"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// DetailResult is the graded outcome of one problem in a session.
type DetailResult struct {
	ProblemID     string `json:"problem_id"`
	IsCorrect     bool   `json:"is_correct"`
	UserAnswer    any    `json:"user_answer"`
	CorrectAnswer any    `json:"correct_answer"`
}

// GradingResult is the output of grading a whole session.
type GradingResult struct {
	CorrectCount    int                `json:"correct_count"`
	Accuracy        float64            `json:"accuracy"`
	CategoryScores  map[string]float64 `json:"category_scores"`
	DetailedResults []DetailResult     `json:"detailed_results"`
}

// ProgressRecord is the persisted summary of a completed session.
type ProgressRecord struct {
	SessionID       string             `json:"session_id"`
	Grade           Grade              `json:"grade"`
	Mode            Mode               `json:"mode"`
	TotalQuestions  int                `json:"total_questions"`
	CorrectAnswers  int                `json:"correct_answers"`
	Accuracy        float64            `json:"accuracy"`
	TimeSpent       *float64           `json:"time_spent,omitempty"` // seconds, exam mode only
	CategoryScores  map[string]float64 `json:"category_scores,omitempty"`
	DetailedResults []DetailResult     `json:"detailed_results,omitempty"`
	Date            string             `json:"date"`
	Timestamp       string             `json:"timestamp"`
}

// HistoryEntry is the compact summary kept in the history index.
type HistoryEntry struct {
	SessionID string  `json:"session_id"`
	Date      string  `json:"date"`
	Grade     Grade   `json:"grade"`
	Mode      Mode    `json:"mode"`
	Accuracy  float64 `json:"accuracy"`
}

// Statistics aggregates progress across sessions.
type Statistics struct {
	TotalSessions    int                `json:"total_sessions"`
	AverageAccuracy  float64            `json:"average_accuracy"`
	TotalQuestions   int                `json:"total_questions"`
	TotalCorrect     int                `json:"total_correct"`
	CategoryAverages map[string]float64 `json:"category_averages,omitempty"`
}

// ExamResult is returned when a session is finished.
type ExamResult struct {
	ExamID      string          `json:"exam_id,omitempty"`
	Results     *GradingResult  `json:"results,omitempty"`
	SessionData *ProgressRecord `json:"session_data,omitempty"`
}

// Empty reports whether the result came from finishing no session.
func (r ExamResult) Empty() bool {
	return r.ExamID == "" && r.Results == nil
}

// GradeSettings holds the exam parameters of one grade.
type GradeSettings struct {
	Questions   int `json:"questions" mapstructure:"questions"`
	TimeMinutes int `json:"time_minutes" mapstructure:"time_minutes"`
}

// TimeLimit returns the exam duration.
func (s GradeSettings) TimeLimit() time.Duration {
	return time.Duration(s.TimeMinutes) * time.Minute
}

// SessionView is the JSON shape of a running session.
type SessionView struct {
	ExamID           string                     `json:"exam_id"`
	Grade            Grade                      `json:"grade"`
	Mode             Mode                       `json:"mode"`
	Problems         []Problem                  `json:"problems"`
	Answers          map[string]SubmittedAnswer `json:"answers"`
	StartTime        time.Time                  `json:"start_time"`
	TimeLimitSeconds float64                    `json:"time_limit_seconds,omitempty"`
	EndTime          *time.Time                 `json:"end_time,omitempty"`
	IsFinished       bool                       `json:"is_finished"`
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}
