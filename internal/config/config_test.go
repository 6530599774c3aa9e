package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/pavelanni/statexam/internal/model"
)

func viperFromYAML(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(doc)); err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	return v
}

func TestDefault(t *testing.T) {
	g := Default()

	tests := []struct {
		grade     model.Grade
		questions int
		ok        bool
	}{
		{model.Grade2, 35, true},
		{model.GradePre1, 30, true},
		{model.Grade1, 3, true},
		{model.Grade("3"), Fallback.Questions, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.grade), func(t *testing.T) {
			s, ok := g.Settings(tt.grade)
			if ok != tt.ok {
				t.Errorf("Settings(%q) ok = %v, want %v", tt.grade, ok, tt.ok)
			}
			if s.Questions != tt.questions {
				t.Errorf("questions = %d, want %d", s.Questions, tt.questions)
			}
			if s.TimeLimit() != 90*time.Minute {
				t.Errorf("time limit = %v, want 90m", s.TimeLimit())
			}
		})
	}
}

func TestLoadOverlay(t *testing.T) {
	v := viperFromYAML(t, `
grades:
  "2":
    questions: 10
    time_minutes: 45
  pre1:
    time_minutes: 120
categories:
  grade2:
    - data_description
    - probability
`)
	g, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	s, _ := g.Settings(model.Grade2)
	if s.Questions != 10 || s.TimeMinutes != 45 {
		t.Errorf("grade 2 = %+v, want {10 45}", s)
	}

	// Missing questions falls back to the built-in default for the grade.
	s, _ = g.Settings(model.GradePre1)
	if s.Questions != 30 || s.TimeMinutes != 120 {
		t.Errorf("grade pre1 = %+v, want {30 120}", s)
	}

	// Untouched grade keeps its default.
	s, _ = g.Settings(model.Grade1)
	if s.Questions != 3 {
		t.Errorf("grade 1 questions = %d, want 3", s.Questions)
	}

	cats := g.Categories(model.Grade2)
	if len(cats) != 2 || cats[0] != "data_description" || cats[1] != "probability" {
		t.Errorf("categories = %v", cats)
	}
	if len(g.Categories(model.Grade1)) != 0 {
		t.Error("expected no categories for grade 1")
	}
}

func TestLoadEmpty(t *testing.T) {
	g, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, ok := g.Settings(model.Grade2)
	if !ok || s.Questions != 35 {
		t.Errorf("Settings(2) = %+v, %v", s, ok)
	}
}
