package chapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines/mock"
	"github.com/dgnsrekt/lector/tts/sentence"
)

var longText = strings.Repeat("This chapter has enough words to be read aloud. ", 3)

// fakeBook is an ordered list of chapters.
type fakeBook struct {
	mu      sync.Mutex
	ids     []string
	texts   map[string]string
	current string
	broken  map[string]bool
}

func (b *fakeBook) Current() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.current != ""
}

func (b *fakeBook) Next(after string) (string, bool) {
	for i, id := range b.ids {
		if id == after && i+1 < len(b.ids) {
			return b.ids[i+1], true
		}
	}
	return "", false
}

func (b *fakeBook) Text(id string) (string, error) {
	if b.broken[id] {
		return "", errors.New("permission denied")
	}
	return b.texts[id], nil
}

func (b *fakeBook) Select(id string, intentional bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !intentional {
		return errors.New("coordinator navigation must be intentional")
	}
	b.current = id
	return nil
}

type flags struct{ auto, presenting bool }

func (f flags) AutoAdvance() bool { return f.auto }
func (f flags) Presenting() bool  { return f.presenting }

type fakePlayer struct {
	loaded  []string
	started int
}

func (p *fakePlayer) Load(text string) { p.loaded = append(p.loaded, text) }
func (p *fakePlayer) Start() error      { p.started++; return nil }

func notices(bus *tts.Bus) (*[]tts.NoticeKind, *sync.Mutex) {
	var mu sync.Mutex
	var got []tts.NoticeKind
	bus.Subscribe(func(m tts.Msg) {
		if n, ok := m.(tts.NoticeMsg); ok {
			mu.Lock()
			got = append(got, n.Kind)
			mu.Unlock()
		}
	})
	return &got, &mu
}

func newBook() *fakeBook {
	return &fakeBook{
		ids: []string{"intro", "blank", "one", "two"},
		texts: map[string]string{
			"intro": longText,
			"blank": "   \n\n  Short.  ",
			"one":   longText + "One.",
			"two":   longText + "Two.",
		},
		current: "intro",
	}
}

func TestOnChapterExhausted(t *testing.T) {
	tests := []struct {
		name       string
		flags      flags
		current    string
		wantNotice []tts.NoticeKind
		wantLoaded string
		wantAt     string
	}{
		{
			name:       "auto-advance off",
			flags:      flags{auto: false, presenting: true},
			current:    "intro",
			wantNotice: []tts.NoticeKind{tts.NoticeChapterFinished},
			wantAt:     "intro",
		},
		{
			name:       "not presenting",
			flags:      flags{auto: true, presenting: false},
			current:    "intro",
			wantNotice: []tts.NoticeKind{tts.NoticeChapterFinished},
			wantAt:     "intro",
		},
		{
			name:       "advances past a short chapter",
			flags:      flags{auto: true, presenting: true},
			current:    "intro",
			wantNotice: []tts.NoticeKind{tts.NoticeLoadingNextChapter},
			wantLoaded: longText + "One.",
			wantAt:     "one",
		},
		{
			name:       "last chapter",
			flags:      flags{auto: true, presenting: true},
			current:    "two",
			wantNotice: []tts.NoticeKind{tts.NoticeReadingCompleted},
			wantAt:     "two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := newBook()
			book.current = tt.current
			player := &fakePlayer{}
			bus := tts.NewBus()
			got, mu := notices(bus)

			c := New(book, book, tt.flags, player, bus)
			c.OnChapterExhausted(context.Background())

			mu.Lock()
			defer mu.Unlock()
			if len(*got) != len(tt.wantNotice) {
				t.Fatalf("notices = %v, want %v", *got, tt.wantNotice)
			}
			for i := range tt.wantNotice {
				if (*got)[i] != tt.wantNotice[i] {
					t.Errorf("notice %d = %v, want %v", i, (*got)[i], tt.wantNotice[i])
				}
			}

			if tt.wantLoaded == "" {
				if player.started != 0 {
					t.Error("player should not start")
				}
			} else if len(player.loaded) != 1 || player.loaded[0] != tt.wantLoaded || player.started != 1 {
				t.Errorf("loaded=%d started=%d", len(player.loaded), player.started)
			}
			if cur, _ := book.Current(); cur != tt.wantAt {
				t.Errorf("current = %q, want %q", cur, tt.wantAt)
			}
		})
	}
}

func TestResolveSkipsUnreadable(t *testing.T) {
	book := newBook()
	book.broken = map[string]bool{"one": true}

	c := New(book, book, flags{}, &fakePlayer{}, tts.NewBus())
	id, _, err := c.Resolve("intro")
	if err != nil {
		t.Fatal(err)
	}
	if id != "two" {
		t.Errorf("Resolve() = %q, want two", id)
	}
}

func TestResolveMinChars(t *testing.T) {
	book := newBook()
	c := New(book, book, flags{}, &fakePlayer{}, tts.NewBus(), WithMinChars(0))

	id, _, err := c.Resolve("intro")
	if err != nil || id != "blank" {
		t.Errorf("Resolve() = %q, %v; want blank", id, err)
	}

	if _, _, err := c.Resolve("two"); !errors.Is(err, tts.ErrNoNextChapter) {
		t.Errorf("Resolve(last) error = %v", err)
	}
}

func TestCancelledContextDoesNothing(t *testing.T) {
	book := newBook()
	player := &fakePlayer{}
	bus := tts.NewBus()
	got, _ := notices(bus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	New(book, book, flags{auto: true, presenting: true}, player, bus).OnChapterExhausted(ctx)

	if len(*got) != 0 || player.started != 0 {
		t.Error("a cancelled context should not advance")
	}
}

func TestAdvancesWithController(t *testing.T) {
	book := newBook()
	onDevice := mock.NewAuto(tts.BackendOnDevice, time.Millisecond)
	ctrl := tts.NewController(sentence.Segment, onDevice)
	defer ctrl.Close()

	got, mu := notices(ctrl.Bus())
	New(book, book, flags{auto: true, presenting: true}, ctrl, ctrl.Bus()).Attach(ctrl)

	text, _ := book.Text("intro")
	ctrl.Load(text)
	if err := ctrl.Start(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := len(*got) > 0 && (*got)[len(*got)-1] == tts.NoticeReadingCompleted
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []tts.NoticeKind{
		tts.NoticeLoadingNextChapter, // intro -> one
		tts.NoticeLoadingNextChapter, // one -> two
		tts.NoticeReadingCompleted,
	}
	if len(*got) != len(want) {
		t.Fatalf("notices = %v, want %v", *got, want)
	}
	for i := range want {
		if (*got)[i] != want[i] {
			t.Errorf("notice %d = %v, want %v", i, (*got)[i], want[i])
		}
	}
	if cur, _ := book.Current(); cur != "two" {
		t.Errorf("current = %q, want two", cur)
	}
}
