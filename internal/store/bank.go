package store

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pavelanni/statexam/internal/model"
)

const allCategories = "all"

// Bank stores problems as one JSON array per (grade, category) file under
// root/<grade dir>/<category>.json.
//
// Every write is a whole-file read-modify-write without locking; two
// writers racing on the same file can lose an update. The cache is not
// safe for concurrent use.
type Bank struct {
	root  string
	cache map[string][]model.Problem
}

// NewBank returns a bank rooted at dir. The directory need not exist.
func NewBank(dir string) *Bank {
	return &Bank{root: dir, cache: make(map[string][]model.Problem)}
}

// Root returns the problems directory.
func (b *Bank) Root() string {
	return b.root
}

func cacheKey(grade model.Grade, category string) string {
	if category == "" {
		category = allCategories
	}
	return string(grade) + "_" + category
}

func (b *Bank) gradeDir(grade model.Grade) string {
	return filepath.Join(b.root, grade.DirName())
}

func (b *Bank) filePath(grade model.Grade, category string) string {
	return filepath.Join(b.gradeDir(grade), category+".json")
}

// Load returns the problems of one category, or of every category in the
// grade when category is empty. Missing directories and files yield an
// empty result.
func (b *Bank) Load(grade model.Grade, category string) []model.Problem {
	key := cacheKey(grade, category)
	if cached, ok := b.cache[key]; ok {
		return slices.Clone(cached)
	}

	var problems []model.Problem
	if category != "" {
		problems = readProblems(b.filePath(grade, category))
	} else {
		for _, path := range b.categoryFiles(grade) {
			problems = append(problems, readProblems(path)...)
		}
	}
	if problems == nil {
		problems = []model.Problem{}
	}

	b.cache[key] = problems
	return slices.Clone(problems)
}

// Categories lists the category files present for grade, sorted by name.
func (b *Bank) Categories(grade model.Grade) []string {
	var cats []string
	for _, path := range b.categoryFiles(grade) {
		cats = append(cats, strings.TrimSuffix(filepath.Base(path), ".json"))
	}
	return cats
}

func (b *Bank) categoryFiles(grade model.Grade) []string {
	matches, err := filepath.Glob(filepath.Join(b.gradeDir(grade), "*.json"))
	if err != nil {
		return nil
	}
	return matches
}

func readProblems(path string) []model.Problem {
	var problems []model.Problem
	readJSON(path, &problems)
	return problems
}

// GetByID scans every known grade's files for the problem. The scan reads
// the files directly and returns the first match.
func (b *Bank) GetByID(id string) (*model.Problem, bool) {
	for _, grade := range model.Grades {
		for _, path := range b.categoryFiles(grade) {
			for _, p := range readProblems(path) {
				if p.ID == id {
					return &p, true
				}
			}
		}
	}
	return nil, false
}

// Upsert writes p into the (grade, category) file. A problem whose ID
// matches an existing record replaces it in place; otherwise it is
// appended. An empty ID is synthesized from the grade prefix, the category
// and the record count, skipping ordinals already in use.
func (b *Bank) Upsert(p model.Problem, grade model.Grade, category string) (model.Problem, error) {
	if category == "" || category == ".." || strings.ContainsAny(category, `/\`) {
		return p, fmt.Errorf("upsert problem: invalid category %q", category)
	}
	path := b.filePath(grade, category)
	problems := readProblems(path)

	replaced := false
	if p.ID != "" {
		for i := range problems {
			if problems[i].ID == p.ID {
				problems[i] = p
				replaced = true
				break
			}
		}
	} else {
		// Ordinals can collide after a delete; step past taken ids.
		for n := len(problems) + 1; ; n++ {
			p.ID = fmt.Sprintf("%s_%s_%03d", grade.IDPrefix(), category, n)
			if !slices.ContainsFunc(problems, func(q model.Problem) bool { return q.ID == p.ID }) {
				break
			}
		}
	}
	if !replaced {
		problems = append(problems, p)
	}

	if err := writeJSON(path, problems); err != nil {
		return p, fmt.Errorf("save problems: %w", err)
	}
	delete(b.cache, cacheKey(grade, category))
	delete(b.cache, cacheKey(grade, ""))

	slog.Debug("upserted problem", "id", p.ID, "grade", grade, "category", category, "replaced", replaced)
	return p, nil
}

// Delete removes the first problem with the given ID from whichever file
// holds it. It reports whether anything was removed.
func (b *Bank) Delete(id string) (bool, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return false, nil
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		matches, _ := filepath.Glob(filepath.Join(b.root, e.Name(), "*.json"))
		for _, path := range matches {
			problems := readProblems(path)
			idx := slices.IndexFunc(problems, func(p model.Problem) bool { return p.ID == id })
			if idx < 0 {
				continue
			}
			problems = slices.Delete(problems, idx, idx+1)
			if err := writeJSON(path, problems); err != nil {
				return false, fmt.Errorf("save problems: %w", err)
			}
			b.invalidateGrade(model.GradeFromDir(e.Name()))
			slog.Debug("deleted problem", "id", id, "path", path)
			return true, nil
		}
	}
	return false, nil
}

func (b *Bank) invalidateGrade(grade model.Grade) {
	prefix := string(grade) + "_"
	for k := range b.cache {
		if strings.HasPrefix(k, prefix) {
			delete(b.cache, k)
		}
	}
}

// Filter returns the problems of grade matching every non-empty criterion.
// Tags match when at least one requested tag is present on the problem.
func (b *Bank) Filter(grade model.Grade, category string, difficulty model.Difficulty, tags []string) []model.Problem {
	problems := b.pool(grade, category, difficulty)
	if len(tags) == 0 {
		return problems
	}
	filtered := problems[:0]
	for _, p := range problems {
		if p.HasAnyTag(tags) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// SampleRandom draws up to n distinct problems from the filtered pool.
// When the pool holds n problems or fewer, the whole pool is returned.
func (b *Bank) SampleRandom(grade model.Grade, n int, category string, difficulty model.Difficulty) []model.Problem {
	problems := b.pool(grade, category, difficulty)
	if n <= 0 {
		return []model.Problem{}
	}
	if len(problems) <= n {
		return problems
	}
	rand.Shuffle(len(problems), func(i, j int) {
		problems[i], problems[j] = problems[j], problems[i]
	})
	return problems[:n]
}

func (b *Bank) pool(grade model.Grade, category string, difficulty model.Difficulty) []model.Problem {
	problems := b.Load(grade, category)
	if difficulty == "" {
		return problems
	}
	filtered := problems[:0]
	for _, p := range problems {
		if p.Difficulty == difficulty {
			filtered = append(filtered, p)
		}
	}
	return filtered
}
