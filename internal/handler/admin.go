package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/statexam/internal/importer"
	"github.com/pavelanni/statexam/internal/model"
)

const maxUploadSize = 10 << 20

func (h *Handler) problemRoutes(r chi.Router) {
	r.Get("/problems", h.handleListProblems)
	r.Get("/problems/{id}", h.handleGetProblem)
	r.Put("/problems/{grade}/{category}", h.handleUpsertProblem)
	r.Delete("/problems/{id}", h.handleDeleteProblem)
	r.Post("/problems/{grade}/{category}/import", h.handleUploadProblems)
}

func (h *Handler) handleListProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	grade := model.Grade(q.Get("grade"))
	if grade == "" {
		writeError(w, http.StatusBadRequest, "grade is required")
		return
	}
	problems := h.bank.Filter(grade, q.Get("category"), model.Difficulty(q.Get("difficulty")), q["tag"])
	if problems == nil {
		problems = []model.Problem{}
	}
	writeJSON(w, http.StatusOK, problems)
}

func (h *Handler) handleGetProblem(w http.ResponseWriter, r *http.Request) {
	p, ok := h.bank.GetByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "problem not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpsertProblem(w http.ResponseWriter, r *http.Request) {
	grade := model.Grade(chi.URLParam(r, "grade"))
	category := chi.URLParam(r, "category")

	var p model.Problem
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid problem: "+err.Error())
		return
	}
	if strings.TrimSpace(p.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	p.Grade = grade
	p.Category = category

	saved, err := h.bank.Upsert(p, grade, category)
	if err != nil {
		slog.Error("upsert problem", "grade", grade, "category", category, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleDeleteProblem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.bank.Delete(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "problem not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadProblems imports an uploaded xlsx or csv file into the bank.
func (h *Handler) handleUploadProblems(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}
	file, header, err := r.FormFile("problems_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	tmp, err := os.CreateTemp("", "statexam-upload-*"+ext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	cfg := importer.DefaultConfig()
	cfg.FilePath = tmp.Name()
	cfg.Grade = model.Grade(chi.URLParam(r, "grade"))
	cfg.Category = chi.URLParam(r, "category")
	cfg.DryRun = r.FormValue("dry_run") == "true"

	res, err := importer.Import(h.bank, cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("import %s: %v", header.Filename, err))
		return
	}
	slog.Info("uploaded problems", "filename", header.Filename, "created", res.Created, "updated", res.Updated)
	writeJSON(w, http.StatusOK, res)
}
