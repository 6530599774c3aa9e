// Package scoring decides whether a submitted answer matches a problem's
// canonical answer.
package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pavelanni/statexam/internal/model"
)

// IsCorrect grades a single answer. It never fails: anything that cannot
// be compared is simply incorrect.
//
// Multiple choice answers are compared by the chosen option text, not by
// index. Essays are never auto-graded and always report false.
func IsCorrect(p model.Problem, answer any) bool {
	switch p.Type() {
	case model.TypeMultipleChoice:
		return multipleChoice(p, answer)
	case model.TypeNumericInput:
		return numeric(p, answer)
	case model.TypeEssay:
		return false
	}
	return false
}

// AutoGradable reports whether IsCorrect can ever return true for p.
func AutoGradable(p model.Problem) bool {
	switch p.Type() {
	case model.TypeMultipleChoice, model.TypeNumericInput:
		return true
	}
	return false
}

// CorrectOption returns the display text of the correct option.
func CorrectOption(p model.Problem) (string, bool) {
	idx, ok := optionIndex(p.CorrectAnswer)
	if !ok || idx < 0 || idx >= len(p.Options) {
		return "", false
	}
	return p.Options[idx], true
}

func multipleChoice(p model.Problem, answer any) bool {
	want, ok := CorrectOption(p)
	if !ok {
		return false
	}
	got, ok := Text(answer)
	if !ok {
		return false
	}
	return got == want
}

func numeric(p model.Problem, answer any) bool {
	got, ok := Number(answer)
	if !ok {
		return false
	}
	want, ok := Number(p.CorrectAnswer)
	if !ok {
		return false
	}
	return math.Abs(got-want) <= p.EffectiveTolerance()
}

func optionIndex(v any) (int, bool) {
	f, ok := Number(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Number converts a submitted or stored value to float64.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Text renders a submitted value as the string a choice widget would send.
func Text(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	}
	return "", false
}
