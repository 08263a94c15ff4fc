// Package library maps a study folder tree onto sections: every top-level
// directory under the root is a section and every supported file below it is
// a material.
package library

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"studyrag/internal/storage"
)

// DefaultExtensions are the file types the extractor understands.
var DefaultExtensions = []string{".pdf", ".docx", ".doc", ".xlsx", ".rtf", ".txt", ".md", ".markdown", ".tex", ".mp3", ".wav", ".m4a", ".mp4"}

// Library resolves section names to ids and caches them for the lifetime of a scan.
type Library struct {
	root       string
	extensions map[string]bool
	sections   storage.SectionStore

	mu    sync.Mutex
	cache map[string]storage.Section // by name
}

// New creates a Library rooted at root. extensions defaults to DefaultExtensions.
func New(root string, sections storage.SectionStore, extensions []string) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library root %s: %w", root, err)
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &Library{
		root:       abs,
		extensions: exts,
		sections:   sections,
		cache:      make(map[string]storage.Section),
	}, nil
}

// Root returns the absolute library root.
func (l *Library) Root() string {
	return l.root
}

// SectionID returns the id of the named section, creating it on first use.
func (l *Library) SectionID(ctx context.Context, name string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.cache[name]; ok {
		return s.ID, nil
	}
	s, err := l.sections.GetOrCreateByName(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create section %s: %w", name, err)
	}
	l.cache[name] = s
	return s.ID, nil
}

// AbsPath returns the absolute path of a file relative to the root.
func (l *Library) AbsPath(relPath string) string {
	return filepath.Join(l.root, filepath.FromSlash(relPath))
}

// InferType guesses the material type from a file path.
func InferType(path string) storage.MaterialType {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(name, "syllabus"):
		return storage.MaterialSyllabus
	case strings.Contains(name, "lecture"), strings.Contains(name, "notes"):
		return storage.MaterialLectureNotes
	case strings.Contains(name, "practice"), strings.Contains(name, "exam"),
		strings.Contains(name, "questions"), strings.Contains(name, "problem"):
		return storage.MaterialPracticeQuestions
	case strings.Contains(name, "textbook"), strings.Contains(name, "chapter"), strings.Contains(name, "book"):
		return storage.MaterialTextbook
	}
	return storage.MaterialCustom
}
