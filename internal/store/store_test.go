package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pavelanni/statexam/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreSessionCount(t *testing.T) {
	s := newTestStore(t)

	count, err := s.SessionCount()
	if err != nil {
		t.Fatalf("SessionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 sessions, got %d", count)
	}

	for i := 0; i < 3; i++ {
		rec := model.ProgressRecord{SessionID: fmt.Sprintf("session-%d", i), Grade: model.Grade2, Mode: model.ModeExam}
		if _, err := s.Save(rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	count, err = s.SessionCount()
	if err != nil {
		t.Fatalf("SessionCount: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 sessions, got %d", count)
	}
}

func TestStorePracticeHasNoTimeSpent(t *testing.T) {
	s := newTestStore(t)
	saved, err := s.Save(model.ProgressRecord{Grade: model.Grade1, Mode: model.ModePractice, TotalQuestions: 1})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Get(saved.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TimeSpent != nil {
		t.Errorf("expected nil time spent, got %v", *got.TimeSpent)
	}
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statexam.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	saved, err := s.Save(model.ProgressRecord{Grade: model.GradePre1, Mode: model.ModeExam, TotalQuestions: 2, CorrectAnswers: 2, Accuracy: 1})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Close()

	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Get(saved.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Accuracy != 1 || got.Grade != model.GradePre1 {
		t.Errorf("Get after reopen = %+v", got)
	}
}
