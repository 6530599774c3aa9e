package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/problems/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})

	for _, target := range []string{"/problems/a", "/problems/b", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/problems/{id}", "404")); got != 2 {
		t.Errorf("problems counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/ok", "200")); got != 1 {
		t.Errorf("ok counter = %v, want 1", got)
	}
}

func TestHandlerExposesSessionCounters(t *testing.T) {
	m := New()
	m.SessionsStarted.WithLabelValues("2", "exam").Inc()
	m.SessionAccuracy.WithLabelValues("2", "exam").Observe(0.75)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`statexam_sessions_started_total{grade="2",mode="exam"} 1`,
		`statexam_session_accuracy_count{grade="2",mode="exam"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
