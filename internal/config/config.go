// Package config resolves per-grade exam parameters and category lists.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pavelanni/statexam/internal/model"
)

// Fallback applies to grades missing from the configuration.
var Fallback = model.GradeSettings{Questions: 30, TimeMinutes: 90}

// Grades is the read-only grade configuration consumed by the exam engine.
type Grades struct {
	settings   map[model.Grade]model.GradeSettings
	categories map[string][]string // keyed by grade directory name
}

// Default returns the built-in configuration.
func Default() Grades {
	return Grades{
		settings: map[model.Grade]model.GradeSettings{
			model.Grade2:    {Questions: 35, TimeMinutes: 90},
			model.GradePre1: {Questions: 30, TimeMinutes: 90},
			model.Grade1:    {Questions: 3, TimeMinutes: 90},
		},
		categories: map[string][]string{},
	}
}

// New builds a configuration from explicit values.
func New(settings map[model.Grade]model.GradeSettings, categories map[string][]string) Grades {
	g := Grades{
		settings:   make(map[model.Grade]model.GradeSettings, len(settings)),
		categories: make(map[string][]string, len(categories)),
	}
	for k, v := range settings {
		g.settings[k] = v
	}
	for k, v := range categories {
		g.categories[k] = append([]string(nil), v...)
	}
	return g
}

// Load overlays the "grades" and "categories" keys of v on top of Default.
// Zero fields in a configured grade fall back to the default values.
func Load(v *viper.Viper) (Grades, error) {
	g := Default()

	var raw map[string]model.GradeSettings
	if err := v.UnmarshalKey("grades", &raw); err != nil {
		return g, fmt.Errorf("parse grades: %w", err)
	}
	for key, s := range raw {
		grade := model.Grade(strings.TrimSpace(key))
		base, ok := g.settings[grade]
		if !ok {
			base = Fallback
		}
		if s.Questions <= 0 {
			s.Questions = base.Questions
		}
		if s.TimeMinutes <= 0 {
			s.TimeMinutes = base.TimeMinutes
		}
		g.settings[grade] = s
	}

	var cats map[string][]string
	if err := v.UnmarshalKey("categories", &cats); err != nil {
		return g, fmt.Errorf("parse categories: %w", err)
	}
	for dir, list := range cats {
		g.categories[dir] = list
	}
	return g, nil
}

// Settings returns the parameters for grade and whether it was configured.
// Unconfigured grades get Fallback.
func (g Grades) Settings(grade model.Grade) (model.GradeSettings, bool) {
	s, ok := g.settings[grade]
	if !ok {
		return Fallback, false
	}
	return s, true
}

// Categories returns the configured category tags for grade, in order.
func (g Grades) Categories(grade model.Grade) []string {
	return append([]string(nil), g.categories[grade.DirName()]...)
}
