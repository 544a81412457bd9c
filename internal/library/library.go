// Package library finds the chapters of a book on disk and turns them into
// plain text for narration.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"github.com/sahilm/fuzzy"
)

// ErrChapterNotFound is returned for an unknown chapter ID.
var ErrChapterNotFound = errors.New("chapter not found")

// ErrEmptyLibrary is returned when a directory holds no chapters.
var ErrEmptyLibrary = errors.New("no markdown or text files found")

var extensions = []string{".md", ".markdown", ".txt"}

// Chapter is one readable file.
type Chapter struct {
	ID    string // Slash-separated path relative to the library root
	Title string
	Path  string
	Index int
}

// Library is an ordered set of chapters rooted at a file or directory.
type Library struct {
	mu       sync.RWMutex
	root     string
	single   bool
	chapters []Chapter
	current  string
	logger   *log.Logger
}

// Open loads the chapters under path. A directory yields every markdown and
// text file in natural name order; a file yields a single chapter.
func Open(path string) (*Library, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand path: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	l := &Library{
		root:   abs,
		single: !info.IsDir(),
		logger: log.Default().WithPrefix("library"),
	}
	if err := l.Rescan(); err != nil {
		return nil, err
	}
	return l, nil
}

// Root returns the absolute path the library was opened with.
func (l *Library) Root() string {
	return l.root
}

// Rescan reloads the chapter list. The current chapter is kept if it still
// exists.
func (l *Library) Rescan() error {
	var paths []string
	if l.single {
		paths = []string{l.root}
	} else {
		err := filepath.WalkDir(l.root, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != l.root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if supported(p) {
				paths = append(paths, p)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", l.root, err)
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w in %s", ErrEmptyLibrary, l.root)
	}

	slices.SortFunc(paths, func(a, b string) int {
		if naturalLess(a, b) {
			return -1
		}
		if naturalLess(b, a) {
			return 1
		}
		return 0
	})

	chapters := make([]Chapter, 0, len(paths))
	for i, p := range paths {
		chapters = append(chapters, Chapter{
			ID:    l.id(p),
			Title: title(p),
			Path:  p,
			Index: i,
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.chapters = chapters
	if _, ok := l.lookup(l.current); !ok {
		l.current = chapters[0].ID
	}
	l.logger.Debug("Scanned library", "root", l.root, "chapters", len(chapters))
	return nil
}

// Chapters returns all chapters in order.
func (l *Library) Chapters() []Chapter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.chapters)
}

// Current returns the selected chapter.
func (l *Library) Current() (Chapter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lookup(l.current)
}

// Select makes id the current chapter.
func (l *Library) Select(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.lookup(id); !ok {
		return fmt.Errorf("%w: %s", ErrChapterNotFound, id)
	}
	l.current = id
	return nil
}

// Next returns the chapter after the given one.
func (l *Library) Next(after string) (Chapter, bool) {
	return l.step(after, 1)
}

// Prev returns the chapter before the given one.
func (l *Library) Prev(before string) (Chapter, bool) {
	return l.step(before, -1)
}

func (l *Library) step(from string, delta int) (Chapter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ch, ok := l.lookup(from)
	if !ok {
		return Chapter{}, false
	}
	i := ch.Index + delta
	if i < 0 || i >= len(l.chapters) {
		return Chapter{}, false
	}
	return l.chapters[i], true
}

// Text returns the chapter as plain text. Markdown is flattened to
// paragraphs separated by blank lines.
func (l *Library) Text(id string) (string, error) {
	l.mu.RLock()
	ch, ok := l.lookup(id)
	l.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrChapterNotFound, id)
	}

	data, err := os.ReadFile(ch.Path)
	if err != nil {
		return "", err
	}
	if isMarkdown(ch.Path) {
		return PlainText(data), nil
	}
	return string(data), nil
}

// Find returns the chapters whose title fuzzily matches query, best match
// first. An empty query returns every chapter.
func (l *Library) Find(query string) []Chapter {
	chapters := l.Chapters()
	if strings.TrimSpace(query) == "" {
		return chapters
	}

	titles := make([]string, len(chapters))
	for i, ch := range chapters {
		titles[i] = ch.Title
	}
	matches := fuzzy.Find(query, titles)
	out := make([]Chapter, 0, len(matches))
	for _, m := range matches {
		out = append(out, chapters[m.Index])
	}
	return out
}

func (l *Library) lookup(id string) (Chapter, bool) {
	for _, ch := range l.chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return Chapter{}, false
}

func (l *Library) id(path string) string {
	if l.single {
		return filepath.Base(path)
	}
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func supported(path string) bool {
	return slices.Contains(extensions, strings.ToLower(filepath.Ext(path)))
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// title returns the first markdown heading, or a cleaned-up file name.
func title(path string) string {
	if isMarkdown(path) {
		if data, err := os.ReadFile(path); err == nil {
			if h := FirstHeading(data); h != "" {
				return h
			}
		}
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.TrimSpace(name)
}

// naturalLess compares strings so that embedded numbers sort numerically:
// "ch2" before "ch10".
func naturalLess(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ra) && j < len(rb) {
		ca, cb := ra[i], rb[j]
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			si := i
			for i < len(ra) && unicode.IsDigit(ra[i]) {
				i++
			}
			sj := j
			for j < len(rb) && unicode.IsDigit(rb[j]) {
				j++
			}
			na := strings.TrimLeft(string(ra[si:i]), "0")
			nb := strings.TrimLeft(string(rb[sj:j]), "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		la, lb := unicode.ToLower(ca), unicode.ToLower(cb)
		if la != lb {
			return la < lb
		}
		i++
		j++
	}
	return len(ra)-i < len(rb)-j
}
