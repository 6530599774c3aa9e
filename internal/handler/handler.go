package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/statexam/internal/config"
	"github.com/pavelanni/statexam/internal/exam"
	"github.com/pavelanni/statexam/internal/handler/views"
	"github.com/pavelanni/statexam/internal/i18n"
	"github.com/pavelanni/statexam/internal/metrics"
	"github.com/pavelanni/statexam/internal/model"
	"github.com/pavelanni/statexam/internal/scoring"
)

// ProblemBank is the problem storage used by the handlers.
type ProblemBank interface {
	exam.Sampler
	Load(grade model.Grade, category string) []model.Problem
	Categories(grade model.Grade) []string
	GetByID(id string) (*model.Problem, bool)
	Upsert(p model.Problem, grade model.Grade, category string) (model.Problem, error)
	Delete(id string) (bool, error)
	Filter(grade model.Grade, category string, difficulty model.Difficulty, tags []string) []model.Problem
}

// ProgressStore is the progress backend used by the handlers.
type ProgressStore interface {
	exam.Recorder
	Get(sessionID string) (*model.ProgressRecord, error)
	List(grade model.Grade, mode model.Mode) ([]model.ProgressRecord, error)
	HistoryList() ([]model.HistoryEntry, error)
	Statistics(grade model.Grade) (model.Statistics, error)
}

// Handler holds shared dependencies for HTTP handlers. It keeps at most
// one current session per mode; starting a new one discards the old.
type Handler struct {
	bank     ProblemBank
	progress ProgressStore
	grades   config.Grades
	engine   *exam.Engine
	metrics  *metrics.Metrics
	basePath string

	mu       sync.Mutex
	sessions map[model.Mode]*exam.Session
}

// New creates a new Handler.
func New(bank ProblemBank, progress ProgressStore, grades config.Grades, m *metrics.Metrics, basePath string, opts ...exam.Option) *Handler {
	return &Handler{
		bank:     bank,
		progress: progress,
		grades:   grades,
		engine:   exam.New(bank, progress, grades, opts...),
		metrics:  m,
		basePath: basePath,
		sessions: map[model.Mode]*exam.Session{},
	}
}

// BasePathMiddleware stores the configured URL prefix in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(model.ContextWithBasePath(r.Context(), h.basePath)))
	})
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(root chi.Router) {
	root.Group(func(r chi.Router) {
		r.Use(h.serialize)
		h.routes(r)
	})
}

// serialize runs one request at a time; the bank and sessions are not
// safe for concurrent use.
func (h *Handler) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Get("/result/{sessionID}", h.handleResultPage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/grades", h.handleGrades)

		r.Post("/exam/start", h.handleStart(model.ModeExam))
		r.Get("/exam", h.handleCurrent(model.ModeExam))
		r.Post("/exam/answer/{problemID}", h.handleAnswer(model.ModeExam))
		r.Get("/exam/remaining", h.handleRemaining)
		r.Post("/exam/finish", h.handleFinish(model.ModeExam))

		r.Post("/practice/start", h.handleStart(model.ModePractice))
		r.Get("/practice", h.handleCurrent(model.ModePractice))
		r.Post("/practice/answer/{problemID}", h.handleAnswer(model.ModePractice))
		r.Post("/practice/finish", h.handleFinish(model.ModePractice))

		h.problemRoutes(r)

		r.Get("/progress", h.handleProgressList)
		r.Get("/progress/history", h.handleHistory)
		r.Get("/progress/stats", h.handleStats)
		r.Get("/progress/{sessionID}", h.handleProgressGet)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// categories returns the configured categories for grade, or the ones
// present in the bank when none are configured.
func (h *Handler) categories(grade model.Grade) []string {
	if c := h.grades.Categories(grade); len(c) > 0 {
		return c
	}
	return h.bank.Categories(grade)
}

func (h *Handler) gradeInfos() []views.GradeInfo {
	infos := make([]views.GradeInfo, 0, len(model.Grades))
	for _, g := range model.Grades {
		infos = append(infos, views.GradeInfo{
			Grade:      g,
			Settings:   h.engine.Settings(g),
			Available:  len(h.bank.Load(g, "")),
			Categories: h.categories(g),
		})
	}
	return infos
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := h.progress.Statistics("")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	recent, err := h.progress.HistoryList()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(recent) > 10 {
		recent = recent[:10]
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := views.IndexData{Grades: h.gradeInfos(), Stats: stats, Recent: recent}
	if err := views.IndexPage(data).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleResultPage(w http.ResponseWriter, r *http.Request) {
	rec, err := h.progress.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if rec == nil {
		w.WriteHeader(http.StatusNotFound)
		if err := views.NotFoundPage().Render(r.Context(), w); err != nil {
			slog.Error("render error", "error", err)
		}
		return
	}

	problems := make(map[string]model.Problem, len(rec.DetailedResults))
	for _, p := range h.bank.Load(rec.Grade, "") {
		problems[p.ID] = p
	}
	data := views.ResultData{Record: *rec, Problems: problems}
	if err := views.ResultPage(data).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

type gradeResponse struct {
	Grade            model.Grade `json:"grade"`
	Label            string      `json:"label"`
	Questions        int         `json:"questions"`
	TimeLimitMinutes int         `json:"time_limit_minutes"`
	Available        int         `json:"available"`
	Categories       []string    `json:"categories"`
}

func (h *Handler) handleGrades(w http.ResponseWriter, r *http.Request) {
	var out []gradeResponse
	for _, g := range h.gradeInfos() {
		out = append(out, gradeResponse{
			Grade:            g.Grade,
			Label:            i18n.GradeLabel(r.Context(), g.Grade),
			Questions:        g.Settings.Questions,
			TimeLimitMinutes: g.Settings.TimeMinutes,
			Available:        g.Available,
			Categories:       g.Categories,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type startRequest struct {
	Grade      model.Grade      `json:"grade"`
	Count      int              `json:"count"`
	Category   string           `json:"category"`
	Difficulty model.Difficulty `json:"difficulty"`
}

func (h *Handler) handleStart(mode model.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Grade == "" {
			writeError(w, http.StatusBadRequest, "grade is required")
			return
		}

		var (
			s  *exam.Session
			ok bool
		)
		if mode == model.ModeExam {
			s, ok = h.engine.Start(req.Grade, req.Count)
		} else {
			s, ok = h.engine.StartPractice(req.Grade, req.Count, req.Category, req.Difficulty)
		}
		if !ok {
			writeError(w, http.StatusNotFound, "no problems available")
			return
		}

		if old := h.sessions[mode]; old != nil && !old.IsFinished() {
			slog.Info("discarding unfinished session", "exam_id", old.ID(), "mode", mode)
		}
		h.sessions[mode] = s

		h.metrics.SessionsStarted.WithLabelValues(string(req.Grade), string(mode)).Inc()
		writeJSON(w, http.StatusCreated, s.View())
	}
}

func (h *Handler) current(mode model.Mode) *exam.Session {
	return h.sessions[mode]
}

func (h *Handler) handleCurrent(mode model.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := h.current(mode)
		if s == nil {
			writeError(w, http.StatusNotFound, "no active session")
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

type answerRequest struct {
	Answer any `json:"answer"`
}

type answerResponse struct {
	Accepted      bool   `json:"accepted"`
	Correct       *bool  `json:"correct,omitempty"`
	AutoGraded    *bool  `json:"auto_graded,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
	CorrectAnswer any    `json:"correct_answer,omitempty"`
}

func (h *Handler) handleAnswer(mode model.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		problemID := chi.URLParam(r, "problemID")
		var req answerRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		s := h.current(mode)
		resp := answerResponse{Accepted: s.SubmitAnswer(problemID, req.Answer)}
		if !resp.Accepted {
			writeJSON(w, http.StatusConflict, resp)
			return
		}
		h.metrics.AnswersSubmitted.WithLabelValues(string(mode)).Inc()

		// Practice answers get immediate feedback.
		if mode == model.ModePractice {
			problems := s.Problems()
			if i := slices.IndexFunc(problems, func(p model.Problem) bool { return p.ID == problemID }); i >= 0 {
				p := problems[i]
				auto := scoring.AutoGradable(p)
				correct, _ := s.Check(problemID)
				resp.Correct = &correct
				resp.AutoGraded = &auto
				resp.Explanation = p.Explanation
				resp.CorrectAnswer = p.CorrectAnswer
				if opt, ok := scoring.CorrectOption(p); ok && p.Type() == model.TypeMultipleChoice {
					resp.CorrectAnswer = opt
				}
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type remainingResponse struct {
	Active           bool    `json:"active"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

func (h *Handler) handleRemaining(w http.ResponseWriter, r *http.Request) {
	remaining, ok := h.current(model.ModeExam).RemainingTime()
	writeJSON(w, http.StatusOK, remainingResponse{
		Active:           ok,
		RemainingSeconds: remaining.Round(time.Second).Seconds(),
	})
}

func (h *Handler) handleFinish(mode model.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := h.current(mode)
		alreadyFinished := s.IsFinished()
		res, err := h.engine.Finish(s)
		if err != nil {
			slog.Error("finish session", "exam_id", s.ID(), "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !res.Empty() && !alreadyFinished {
			h.metrics.SessionsFinished.WithLabelValues(string(s.Grade()), string(mode)).Inc()
			h.metrics.SessionAccuracy.WithLabelValues(string(s.Grade()), string(mode)).Observe(res.Results.Accuracy)
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) handleProgressList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := h.progress.List(model.Grade(q.Get("grade")), model.Mode(q.Get("mode")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []model.ProgressRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.progress.HistoryList()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.progress.Statistics(model.Grade(r.URL.Query().Get("grade")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleProgressGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.progress.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
