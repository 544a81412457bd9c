package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ids(chapters []Chapter) []string {
	out := make([]string, len(chapters))
	for i, ch := range chapters {
		out[i] = ch.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOpenDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ch10.md", "# Ten\n")
	writeFile(t, dir, "ch2.md", "# Two\n")
	writeFile(t, dir, "ch1.txt", "One.\n")
	writeFile(t, dir, "notes.pdf", "ignored")
	writeFile(t, dir, ".git/HEAD.md", "ignored")
	writeFile(t, dir, "part2/ch1.md", "Body only.\n")

	lib, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	want := []string{"ch1.txt", "ch2.md", "ch10.md", "part2/ch1.md"}
	if got := ids(lib.Chapters()); !equal(got, want) {
		t.Errorf("Chapters() = %v, want %v", got, want)
	}

	cur, ok := lib.Current()
	if !ok || cur.ID != "ch1.txt" {
		t.Errorf("Current() = %v, %v, want ch1.txt", cur.ID, ok)
	}

	titles := map[string]string{
		"ch1.txt":      "ch1",
		"ch2.md":       "Two",
		"ch10.md":      "Ten",
		"part2/ch1.md": "ch1",
	}
	for _, ch := range lib.Chapters() {
		if ch.Title != titles[ch.ID] {
			t.Errorf("Title(%s) = %q, want %q", ch.ID, ch.Title, titles[ch.ID])
		}
	}
}

func TestOpenSingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "my_story.txt", "Once upon a time.")

	lib, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	chapters := lib.Chapters()
	if len(chapters) != 1 {
		t.Fatalf("got %d chapters, want 1", len(chapters))
	}
	if chapters[0].ID != "my_story.txt" || chapters[0].Title != "my story" {
		t.Errorf("chapter = %+v", chapters[0])
	}
	text, err := lib.Text(chapters[0].ID)
	if err != nil || text != "Once upon a time." {
		t.Errorf("Text() = %q, %v", text, err)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing path")
	}

	dir := t.TempDir()
	writeFile(t, dir, "image.png", "")
	if _, err := Open(dir); !errors.Is(err, ErrEmptyLibrary) {
		t.Errorf("Open() error = %v, want ErrEmptyLibrary", err)
	}
}

func TestNavigation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "A")
	writeFile(t, dir, "b.md", "B")
	writeFile(t, dir, "c.md", "C")

	lib, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	if next, ok := lib.Next("a.md"); !ok || next.ID != "b.md" {
		t.Errorf("Next(a) = %v, %v", next.ID, ok)
	}
	if _, ok := lib.Next("c.md"); ok {
		t.Error("Next(c) should be false")
	}
	if prev, ok := lib.Prev("b.md"); !ok || prev.ID != "a.md" {
		t.Errorf("Prev(b) = %v, %v", prev.ID, ok)
	}
	if _, ok := lib.Prev("a.md"); ok {
		t.Error("Prev(a) should be false")
	}
	if _, ok := lib.Next("zzz.md"); ok {
		t.Error("Next(unknown) should be false")
	}

	if err := lib.Select("c.md"); err != nil {
		t.Fatal(err)
	}
	if cur, _ := lib.Current(); cur.ID != "c.md" {
		t.Errorf("Current() = %s, want c.md", cur.ID)
	}
	if err := lib.Select("nope.md"); !errors.Is(err, ErrChapterNotFound) {
		t.Errorf("Select() error = %v, want ErrChapterNotFound", err)
	}
	if _, err := lib.Text("nope.md"); !errors.Is(err, ErrChapterNotFound) {
		t.Errorf("Text() error = %v, want ErrChapterNotFound", err)
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "01.md", "# The Beginning\n")
	writeFile(t, dir, "02.md", "# Middle Ground\n")
	writeFile(t, dir, "03.md", "# The End\n")

	lib, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	got := lib.Find("mid")
	if len(got) != 1 || got[0].ID != "02.md" {
		t.Errorf("Find(mid) = %v", ids(got))
	}
	if got := lib.Find(""); len(got) != 3 {
		t.Errorf("Find(\"\") returned %d chapters, want 3", len(got))
	}
	if got := lib.Find("xyzzy"); len(got) != 0 {
		t.Errorf("Find(xyzzy) = %v, want none", ids(got))
	}
}

func TestRescanKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "A")
	writeFile(t, dir, "b.md", "B")

	lib, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := lib.Select("b.md"); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "0.md", "Zero")
	if err := lib.Rescan(); err != nil {
		t.Fatal(err)
	}
	if cur, _ := lib.Current(); cur.ID != "b.md" || cur.Index != 2 {
		t.Errorf("Current() = %+v, want b.md at 2", cur)
	}

	if err := os.Remove(filepath.Join(dir, "b.md")); err != nil {
		t.Fatal(err)
	}
	if err := lib.Rescan(); err != nil {
		t.Fatal(err)
	}
	if cur, _ := lib.Current(); cur.ID != "0.md" {
		t.Errorf("Current() = %s, want fallback to first chapter", cur.ID)
	}
}

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"ch2", "ch10", true},
		{"ch10", "ch2", false},
		{"ch02", "ch2", false},
		{"a", "B", true},
		{"ch1", "ch1a", true},
		{"x", "x", false},
		{"2", "10", true},
	}
	for _, tt := range tests {
		t.Run(tt.a+"<"+tt.b, func(t *testing.T) {
			if got := naturalLess(tt.a, tt.b); got != tt.want {
				t.Errorf("naturalLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "paragraphs",
			src:  "First line\ncontinues here.\n\nSecond paragraph.",
			want: "First line continues here.\n\nSecond paragraph.",
		},
		{
			name: "heading and emphasis",
			src:  "# Title\n\nSome *bold* and `code` text.",
			want: "Title\n\nSome bold and code text.",
		},
		{
			name: "code block skipped",
			src:  "Before.\n\n```go\nfmt.Println()\n```\n\nAfter.",
			want: "Before.\n\nAfter.",
		},
		{
			name: "links keep label",
			src:  "Read [the docs](https://example.com) now.",
			want: "Read the docs now.",
		},
		{
			name: "images dropped",
			src:  "Look ![alt text](img.png) here.",
			want: "Look here.",
		},
		{
			name: "list items",
			src:  "- one\n- two",
			want: "one\n\ntwo",
		},
		{
			name: "html dropped",
			src:  "<div>\nhidden\n</div>\n\nShown.",
			want: "Shown.",
		},
		{
			name: "empty",
			src:  "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText([]byte(tt.src)); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFirstHeading(t *testing.T) {
	if got := FirstHeading([]byte("intro\n\n## Chapter *One*\n\n# Later")); got != "Chapter One" {
		t.Errorf("FirstHeading() = %q", got)
	}
	if got := FirstHeading([]byte("no headings")); got != "" {
		t.Errorf("FirstHeading() = %q, want empty", got)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "A")

	lib, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var events []Event
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := lib.Watch(ctx, func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	seen := func(kind EventKind) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e.Kind == kind {
				return true
			}
		}
		return false
	}
	waitFor := func(kind EventKind) {
		t.Helper()
		deadline := time.Now().Add(3 * time.Second)
		for !seen(kind) {
			if time.Now().After(deadline) {
				t.Fatalf("no event of kind %d", kind)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	writeFile(t, dir, "b.md", "B")
	waitFor(ChaptersChanged)
	if n := len(lib.Chapters()); n != 2 {
		t.Errorf("got %d chapters after create, want 2", n)
	}

	writeFile(t, dir, "a.md", "A changed")
	waitFor(CurrentChanged)
}
