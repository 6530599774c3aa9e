package scoring

import (
	"encoding/json"
	"testing"

	"github.com/pavelanni/statexam/internal/model"
)

func ptr(f float64) *float64 { return &f }

func TestIsCorrectMultipleChoice(t *testing.T) {
	p := model.Problem{
		QuestionType:  model.TypeMultipleChoice,
		Options:       []string{"2/3", "1/3", "1/2", "1/6"},
		CorrectAnswer: float64(0),
	}

	tests := []struct {
		name   string
		answer any
		want   bool
	}{
		{"correct option text", "2/3", true},
		{"wrong option text", "1/2", false},
		{"index is not accepted", float64(0), false},
		{"nil answer", nil, false},
		{"whitespace differs", " 2/3", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCorrect(p, tt.answer); got != tt.want {
				t.Errorf("IsCorrect(%v) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestIsCorrectMultipleChoiceBadKey(t *testing.T) {
	tests := []struct {
		name    string
		correct any
	}{
		{"nil correct answer", nil},
		{"out of range", float64(7)},
		{"negative", float64(-1)},
		{"fractional", 0.5},
		{"text", "2/3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.Problem{
				Options:       []string{"2/3", "1/3"},
				CorrectAnswer: tt.correct,
			}
			if IsCorrect(p, "2/3") {
				t.Error("expected false")
			}
		})
	}
}

func TestIsCorrectDefaultsToMultipleChoice(t *testing.T) {
	p := model.Problem{Options: []string{"a", "b"}, CorrectAnswer: float64(1)}
	if !IsCorrect(p, "b") {
		t.Error("untyped problem should grade as multiple choice")
	}
}

func TestIsCorrectNumeric(t *testing.T) {
	tests := []struct {
		name      string
		correct   any
		tolerance *float64
		answer    any
		want      bool
	}{
		{"inside tolerance", 4.0, ptr(0.01), 4.009, true},
		{"outside tolerance", 4.0, ptr(0.01), 4.011, false},
		{"below inside", 4.0, ptr(0.01), 3.991, true},
		{"default tolerance", 4.0, nil, 4.009, true},
		{"default tolerance outside", 4.0, nil, 4.02, false},
		{"string answer", 4.0, nil, "4.005", true},
		{"padded string", 4.0, nil, "  4 ", true},
		{"json number", 4.0, nil, json.Number("4.0"), true},
		{"int answer", 4.0, nil, 4, true},
		{"string key", "2.5", nil, 2.5, true},
		{"wide tolerance", 10.0, ptr(1), 10.9, true},
		{"unparsable", 4.0, nil, "four", false},
		{"empty", 4.0, nil, "", false},
		{"nil answer", 4.0, nil, nil, false},
		{"nil key", nil, nil, 4.0, false},
		{"NaN", 4.0, nil, "NaN", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := model.Problem{
				QuestionType:  model.TypeNumericInput,
				CorrectAnswer: tt.correct,
				Tolerance:     tt.tolerance,
			}
			if got := IsCorrect(p, tt.answer); got != tt.want {
				t.Errorf("IsCorrect(%v) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func TestIsCorrectEssay(t *testing.T) {
	ref := "The sample mean is an unbiased estimator."
	p := model.Problem{QuestionType: model.TypeEssay, CorrectAnswer: ref}

	for _, answer := range []any{ref, "", nil, "anything"} {
		if IsCorrect(p, answer) {
			t.Errorf("essay graded true for %v", answer)
		}
	}
	if AutoGradable(p) {
		t.Error("essay should not be auto-gradable")
	}
}

func TestIsCorrectUnknownType(t *testing.T) {
	p := model.Problem{QuestionType: "matching", Options: []string{"a"}, CorrectAnswer: float64(0)}
	if IsCorrect(p, "a") {
		t.Error("unknown type should grade false")
	}
	if AutoGradable(p) {
		t.Error("unknown type should not be auto-gradable")
	}
}
