package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/pavelanni/statexam/internal/model"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "StatExam" {
		t.Errorf("T(AppTitle) = %q, want 'StatExam'", got)
	}
	if got := T(ctx, "NotAutoGraded"); got != "Not auto-graded" {
		t.Errorf("T(NotAutoGraded) = %q", got)
	}
}

func TestTranslateJapanese(t *testing.T) {
	ctx := initLang(t, "ja")

	if got := T(ctx, "GradePre1"); got != "準1級" {
		t.Errorf("T(GradePre1) = %q, want '準1級'", got)
	}
	if got := Tp(ctx, "QuestionsAvailable", 3); got != "3問あります。" {
		t.Errorf("Tp(QuestionsAvailable, 3) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsAvailable", 1); got != "1 question available." {
		t.Errorf("Tp(QuestionsAvailable, 1) = %q, want '1 question available.'", got)
	}
	if got := Tp(ctx, "QuestionsAvailable", 5); got != "5 questions available." {
		t.Errorf("Tp(QuestionsAvailable, 5) = %q, want '5 questions available.'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "Score", map[string]any{"Correct": 7, "Total": 10})
	if got != "7 of 10 correct" {
		t.Errorf("Td(Score) = %q, want '7 of 10 correct'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestGradeAndModeLabels(t *testing.T) {
	ctx := initLang(t, "en")

	tests := []struct {
		grade model.Grade
		want  string
	}{
		{model.Grade2, "Grade 2"},
		{model.GradePre1, "Grade Pre-1"},
		{model.Grade1, "Grade 1"},
		{"3", "3"},
	}
	for _, tt := range tests {
		if got := GradeLabel(ctx, tt.grade); got != tt.want {
			t.Errorf("GradeLabel(%q) = %q, want %q", tt.grade, got, tt.want)
		}
	}
	if got := ModeLabel(ctx, model.ModePractice); got != "Practice" {
		t.Errorf("ModeLabel(practice) = %q", got)
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "en")
	langs := Languages()
	for _, want := range []string{"en", "ja"} {
		if !slices.Contains(langs, want) {
			t.Errorf("Languages() = %v, missing %s", langs, want)
		}
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "Grade1")
	}))

	tests := []struct {
		name   string
		target string
		accept string
		want   string
	}{
		{"default", "/", "", "Grade 1"},
		{"header", "/", "ja,en;q=0.8", "1級"},
		{"query wins", "/?lang=en", "ja", "Grade 1"},
		{"unsupported", "/", "fr", "Grade 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
