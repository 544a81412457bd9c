package sentence

import (
	"reflect"
	"strings"
	"testing"
)

func texts(t *testing.T, input string) []string {
	t.Helper()
	var out []string
	for _, s := range Segment(input) {
		out = append(out, s.Text)
	}
	return out
}

func TestSegment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "two paragraphs",
			input:    "Hello world. How are you?\n\nI am fine.",
			expected: []string{"Hello world.", "How are you?", "I am fine."},
		},
		{
			name:     "trailing remainder",
			input:    "First sentence. And no ending",
			expected: []string{"First sentence.", "And no ending"},
		},
		{
			name:     "repeated terminal punctuation",
			input:    "Wait... what?! Really.",
			expected: []string{"Wait...", "what?!", "Really."},
		},
		{
			name:     "quotes are trimmed",
			input:    `"Hello?" she said. 'Fine.'`,
			expected: []string{"Hello?", "she said.", "Fine."},
		},
		{
			name:     "dialogue dash is kept",
			input:    "—Hola —dijo él.\n\n–Sí.",
			expected: []string{"—Hola —dijo él.", "–Sí."},
		},
		{
			name:     "detached dashes are trimmed",
			input:    "— Hola, dijo.\n\n- item one.",
			expected: []string{"Hola, dijo.", "item one."},
		},
		{
			name:     "crlf paragraphs",
			input:    "Line one.\r\n\r\nLine two.",
			expected: []string{"Line one.", "Line two."},
		},
		{
			name:     "blank line with spaces",
			input:    "A.\n \t\nB.",
			expected: []string{"A.", "B."},
		},
		{
			name:     "single newline stays in paragraph",
			input:    "Split\nacross lines. Next.",
			expected: []string{"Split\nacross lines.", "Next."},
		},
		{
			name:     "unicode text",
			input:    "¿Dónde está? ¡Aquí! 日本語です。",
			expected: []string{"¿Dónde está?", "¡Aquí!", "日本語です。"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := texts(t, tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Segment(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSegmentEmpty(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n\n", "\t \r\n \n", `"'`} {
		if got := Segment(input); len(got) != 0 {
			t.Errorf("Segment(%q) = %v, want no sentences", input, got)
		}
	}
}

func TestSegmentOffsets(t *testing.T) {
	input := "  “Quoted start.” Then more!\n\nRepeat. Repeat. Repeat.\n\n—Dialogue here"
	sentences := Segment(input)
	if len(sentences) == 0 {
		t.Fatal("expected sentences")
	}

	prevEnd := 0
	for i, s := range sentences {
		if s.Index != i {
			t.Errorf("sentence %d has index %d", i, s.Index)
		}
		if input[s.Start:s.End] != s.Text {
			t.Errorf("sentence %d: text[%d:%d] = %q, want %q", i, s.Start, s.End, input[s.Start:s.End], s.Text)
		}
		if s.Start < prevEnd {
			t.Errorf("sentence %d starts at %d before previous end %d", i, s.Start, prevEnd)
		}
		if strings.TrimSpace(s.Text) == "" {
			t.Errorf("sentence %d is empty", i)
		}
		prevEnd = s.End
	}
}

func TestSegmentNeverCrossesParagraphs(t *testing.T) {
	input := "No ending here\n\nSecond paragraph. Also here"
	got := Segment(input)
	want := []struct {
		text      string
		paragraph int
	}{
		{"No ending here", 0},
		{"Second paragraph.", 1},
		{"Also here", 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Text != w.text || got[i].Paragraph != w.paragraph {
			t.Errorf("sentence %d = (%q, %d), want (%q, %d)", i, got[i].Text, got[i].Paragraph, w.text, w.paragraph)
		}
	}
}

func TestSegmentReconstructsParagraphs(t *testing.T) {
	inputs := []string{
		"One. Two! Three?",
		"Alpha beta gamma.  Delta epsilon",
		"A. B.\n\nC. D.",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			paras := Paragraphs(input)
			sentences := Segment(input)
			for p, span := range paras {
				var parts []string
				for _, s := range sentences {
					if s.Paragraph == p {
						parts = append(parts, s.Text)
					}
				}
				got := strings.Join(parts, " ")
				want := strings.Join(strings.Fields(input[span.Start:span.End]), " ")
				if got != want {
					t.Errorf("paragraph %d = %q, want %q", p, got, want)
				}
			}
		})
	}
}

func TestSegmentIsDeterministic(t *testing.T) {
	input := "It was late. \"Who's there?\" she asked...\n\n—Nobody —he said."
	first := Segment(input)
	second := Segment(input)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Segment is not deterministic:\n%v\n%v", first, second)
	}
	if Count(input) != len(first) {
		t.Errorf("Count = %d, want %d", Count(input), len(first))
	}
}
