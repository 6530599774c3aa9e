// Package importer loads problems from spreadsheets into the bank.
//
// One row is one problem. Columns, from A:
//
//	A question   B question_type   C options (separated by "|")
//	D correct_answer   E tolerance   F explanation
//	G difficulty   H tags (comma separated)   I problem_id
//
// A multiple-choice correct_answer may be the zero-based option index or
// the option text. Rows with a problem_id replace the existing problem.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/statexam/internal/model"
)

// Bank is the subset of the problem bank the importer writes to.
type Bank interface {
	GetByID(id string) (*model.Problem, bool)
	Upsert(p model.Problem, grade model.Grade, category string) (model.Problem, error)
}

// Config describes one import run.
type Config struct {
	FilePath  string
	Grade     model.Grade
	Category  string
	SheetName string // xlsx only; empty selects the first sheet
	StartRow  int    // 1-based; rows before it are headers
	DryRun    bool
}

// DefaultConfig returns a configuration that skips one header row.
func DefaultConfig() Config {
	return Config{StartRow: 2}
}

// Result summarizes an import run.
type Result struct {
	TotalProcessed int      `json:"total_processed"`
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors"`
}

const (
	colQuestion = iota
	colType
	colOptions
	colAnswer
	colTolerance
	colExplanation
	colDifficulty
	colTags
	colID
)

var errBlankRow = errors.New("blank row")

// Import reads cfg.FilePath (.xlsx or .csv) and upserts every valid row
// into bank. Row-level problems are collected in Result.Errors.
func Import(bank Bank, cfg Config) (*Result, error) {
	if cfg.Category == "" {
		return nil, errors.New("category is required")
	}
	if cfg.Grade == "" {
		return nil, errors.New("grade is required")
	}
	if cfg.StartRow < 1 {
		cfg.StartRow = 1
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(cfg.FilePath)) {
	case ".csv":
		rows, err = readCSV(cfg.FilePath)
	case ".xlsx", ".xlsm":
		rows, err = readExcel(cfg.FilePath, cfg.SheetName)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(cfg.FilePath))
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Errors: []string{}}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < cfg.StartRow {
			continue
		}
		p, err := ParseRow(row)
		if errors.Is(err, errBlankRow) {
			continue
		}
		result.TotalProcessed++
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}

		_, exists := bank.GetByID(p.ID)
		if p.ID == "" {
			exists = false
		}
		if cfg.DryRun {
			countUpsert(result, exists)
			continue
		}
		p.Grade = cfg.Grade
		p.Category = cfg.Category
		if _, err := bank.Upsert(p, cfg.Grade, cfg.Category); err != nil {
			return result, fmt.Errorf("row %d: %w", rowNum, err)
		}
		countUpsert(result, exists)
	}

	slog.Info("import finished", "file", cfg.FilePath, "grade", cfg.Grade, "category", cfg.Category,
		"created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
	return result, nil
}

func countUpsert(r *Result, exists bool) {
	if exists {
		r.Updated++
	} else {
		r.Created++
	}
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(row []string, col int) string {
	if col < len(row) {
		return strings.TrimSpace(row[col])
	}
	return ""
}

// ParseRow converts one spreadsheet row into a problem. Grade and category
// are left for the caller to set.
func ParseRow(row []string) (model.Problem, error) {
	if !slices.ContainsFunc(row, func(c string) bool { return strings.TrimSpace(c) != "" }) {
		return model.Problem{}, errBlankRow
	}

	p := model.Problem{
		ID:          cell(row, colID),
		Question:    cell(row, colQuestion),
		Explanation: cell(row, colExplanation),
	}
	if p.Question == "" {
		return p, errors.New("question is empty")
	}

	p.QuestionType = model.QuestionType(strings.ToLower(cell(row, colType)))
	if p.QuestionType == "" {
		p.QuestionType = model.TypeMultipleChoice
	}

	switch d := model.Difficulty(strings.ToLower(cell(row, colDifficulty))); d {
	case "":
		p.Difficulty = model.DifficultyMedium
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
		p.Difficulty = d
	default:
		return p, fmt.Errorf("unknown difficulty %q", d)
	}

	for _, tag := range strings.Split(cell(row, colTags), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			p.Tags = append(p.Tags, tag)
		}
	}

	answer := cell(row, colAnswer)
	switch p.QuestionType {
	case model.TypeMultipleChoice:
		for _, opt := range strings.Split(cell(row, colOptions), "|") {
			if opt = strings.TrimSpace(opt); opt != "" {
				p.Options = append(p.Options, opt)
			}
		}
		if len(p.Options) < 2 {
			return p, errors.New("multiple choice needs at least two options")
		}
		idx, err := optionIndex(p.Options, answer)
		if err != nil {
			return p, err
		}
		p.CorrectAnswer = float64(idx)
	case model.TypeNumericInput:
		v, err := strconv.ParseFloat(answer, 64)
		if err != nil {
			return p, fmt.Errorf("correct answer %q is not a number", answer)
		}
		p.CorrectAnswer = v
		if tol := cell(row, colTolerance); tol != "" {
			t, err := strconv.ParseFloat(tol, 64)
			if err != nil || t < 0 {
				return p, fmt.Errorf("invalid tolerance %q", tol)
			}
			p.Tolerance = &t
		}
	case model.TypeEssay:
		if answer != "" {
			p.CorrectAnswer = answer
		}
	default:
		return p, fmt.Errorf("unknown question type %q", p.QuestionType)
	}
	return p, nil
}

func optionIndex(options []string, answer string) (int, error) {
	if answer == "" {
		return 0, errors.New("correct answer is empty")
	}
	if i := slices.Index(options, answer); i >= 0 {
		return i, nil
	}
	i, err := strconv.Atoi(answer)
	if err != nil || i < 0 || i >= len(options) {
		return 0, fmt.Errorf("correct answer %q matches no option", answer)
	}
	return i, nil
}
