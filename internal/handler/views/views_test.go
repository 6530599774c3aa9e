package views

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pavelanni/statexam/internal/i18n"
	"github.com/pavelanni/statexam/internal/model"
)

func render(t *testing.T, ctx context.Context, c interface {
	Render(context.Context, io.Writer) error
}) string {
	t.Helper()
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return sb.String()
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	ctx := i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("en"))
	return model.ContextWithBasePath(ctx, "/statexam")
}

func resultData() ResultData {
	return ResultData{
		Record: model.ProgressRecord{
			SessionID:      "20260101_100000_000000",
			Grade:          model.Grade2,
			Mode:           model.ModeExam,
			TotalQuestions: 3,
			CorrectAnswers: 1,
			Accuracy:       1.0 / 3,
			CategoryScores: map[string]float64{"writing": 0, "probability": 0.5},
			DetailedResults: []model.DetailResult{
				{ProblemID: "G2_probability_001", IsCorrect: true, UserAnswer: "0.5", CorrectAnswer: 0},
				{ProblemID: "G2_writing_001", UserAnswer: "<script>x</script>", CorrectAnswer: "ref"},
				{ProblemID: "G2_gone_001", UserAnswer: nil, CorrectAnswer: 2},
			},
		},
		Problems: map[string]model.Problem{
			"G2_probability_001": {ID: "G2_probability_001", QuestionType: model.TypeMultipleChoice,
				Question: "P(heads)?", Options: []string{"0.5", "1"}, CorrectAnswer: 0},
			"G2_writing_001": {ID: "G2_writing_001", QuestionType: model.TypeEssay, Question: "Explain bias."},
		},
	}
}

func TestDetails(t *testing.T) {
	got := details(testContext(t), resultData())
	want := []struct {
		status, answer, correct string
	}{
		{"correct", "0.5", "0.5"},
		{"manual", "<script>x</script>", "ref"},
		{"incorrect", "No answer", "2"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d details, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].StatusKey != w.status || got[i].UserAnswer != w.answer || got[i].CorrectAnswer != w.correct {
			t.Errorf("detail %d = %+v, want %+v", i, got[i], w)
		}
	}
	if got[2].Question != "" {
		t.Error("deleted problem should have no question text")
	}
}

func TestResultPage(t *testing.T) {
	body := render(t, testContext(t), ResultPage(resultData()))

	if strings.Contains(body, "<script>x</script>") || !strings.Contains(body, "&lt;script&gt;") {
		t.Error("user answers must be escaped")
	}
	if strings.Index(body, "probability") > strings.Index(body, "writing") {
		t.Error("categories should be sorted")
	}
	if !strings.Contains(body, `href="/statexam/"`) {
		t.Error("layout should link home under the base path")
	}
}

func TestIndexPage(t *testing.T) {
	ctx := testContext(t)
	d := IndexData{
		Grades: []GradeInfo{{Grade: model.Grade2, Settings: model.GradeSettings{Questions: 35, TimeMinutes: 90}, Available: 12}},
		Recent: []model.HistoryEntry{{SessionID: "20260101_100000_000000", Date: "2026-01-01", Grade: model.Grade2, Mode: model.ModeExam}},
	}
	body := render(t, ctx, IndexPage(d))
	if !strings.Contains(body, `href="/statexam/result/20260101_100000_000000"`) {
		t.Errorf("index missing result link: %s", body)
	}

	d.Recent = nil
	if body := render(t, ctx, IndexPage(d)); strings.Contains(body, "/result/") {
		t.Error("empty history should not link results")
	}
}

func TestNotFoundPage(t *testing.T) {
	if body := render(t, testContext(t), NotFoundPage()); !strings.Contains(body, "<p>") {
		t.Errorf("unexpected body: %s", body)
	}
}
