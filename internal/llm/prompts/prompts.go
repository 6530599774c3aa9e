package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/statexam/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

// MaxScore is the top of the essay review scale.
const MaxScore = 10

const maxAnswerRunes = 10000

var (
	candidateAnswerRegex    = regexp.MustCompile(`(?i)</?\s*candidate-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// Variant selects how strictly essays are reviewed.
type Variant string

const (
	Strict   Variant = "strict"
	Standard Variant = "standard"
	Lenient  Variant = "lenient"
)

// Variants lists the supported review variants.
var Variants = []Variant{Strict, Standard, Lenient}

// IsValidVariant checks if a variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range Variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

// ReviewData holds template data for essay review prompts.
type ReviewData struct {
	Category  string
	Question  string
	Reference string
	Formulas  string
	Answer    string
	MaxScore  int
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

func load() error {
	loadOnce.Do(func() {
		templates = make(map[Variant]*template.Template, len(Variants))
		for _, v := range Variants {
			name := "templates/review_" + string(v) + ".txt"
			tmpl, err := template.ParseFS(templateFS, name)
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// BuildReviewPrompt renders the review prompt for an essay answer.
func BuildReviewPrompt(variant Variant, p model.Problem, answer string) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", fmt.Errorf("invalid prompt variant: %q", variant)
	}

	reference, _ := p.CorrectAnswer.(string)
	data := ReviewData{
		Category:  p.Category,
		Question:  p.Question,
		Reference: reference,
		Formulas:  strings.Join(p.FormulasUsed, ", "),
		Answer:    SanitizeAnswer(answer),
		MaxScore:  MaxScore,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// SanitizeAnswer strips delimiter tags and truncates overly long answers.
func SanitizeAnswer(answer string) string {
	answer = candidateAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
