package model

import (
	"encoding/json"
	"fmt"
)

// DefaultTolerance is the accepted absolute error for numeric answers
// when a problem does not set its own.
const DefaultTolerance = 0.01

// Problem is a single bank entry.
type Problem struct {
	ID            string       `json:"problem_id,omitempty"`
	Grade         Grade        `json:"grade,omitempty"`
	Category      string       `json:"category,omitempty"`
	Difficulty    Difficulty   `json:"difficulty,omitempty"`
	QuestionType  QuestionType `json:"question_type,omitempty"`
	Question      string       `json:"question"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer any          `json:"correct_answer"`
	Tolerance     *float64     `json:"tolerance,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	FormulasUsed  []string     `json:"formulas_used,omitempty"`

	// Extra carries presentation-only fields (has_chart, chart_type,
	// has_real_data, data, ...) that are written back untouched.
	Extra map[string]json.RawMessage `json:"-"`
}

// Type returns the question type, defaulting to multiple choice.
func (p Problem) Type() QuestionType {
	if p.QuestionType == "" {
		return TypeMultipleChoice
	}
	return p.QuestionType
}

// EffectiveTolerance returns the numeric tolerance, applying the default.
func (p Problem) EffectiveTolerance() float64 {
	if p.Tolerance == nil {
		return DefaultTolerance
	}
	return *p.Tolerance
}

// HasAnyTag reports whether the problem shares at least one tag with tags.
func (p Problem) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range p.Tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

type problemAlias Problem

var problemKeys = map[string]bool{
	"problem_id": true, "grade": true, "category": true, "difficulty": true,
	"question_type": true, "question": true, "options": true,
	"correct_answer": true, "tolerance": true, "explanation": true,
	"tags": true, "formulas_used": true,
}

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (p *Problem) UnmarshalJSON(data []byte) error {
	var a problemAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if problemKeys[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]json.RawMessage)
		}
		a.Extra[k] = v
	}
	*p = Problem(a)
	return nil
}

// MarshalJSON encodes the known fields merged with Extra.
func (p Problem) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(problemAlias(p))
	if err != nil {
		return nil, err
	}
	if len(p.Extra) == 0 {
		return known, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, fmt.Errorf("merge extra fields: %w", err)
	}
	for k, v := range p.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
