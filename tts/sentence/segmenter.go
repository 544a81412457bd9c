// Package sentence splits chapter text into narrable sentences.
package sentence

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/dgnsrekt/lector/tts"
)

// paragraphBreak matches one or more blank lines.
var paragraphBreak = regexp.MustCompile(`(?:\r?\n[ \t]*){2,}`)

// Span is a half-open byte range of a text.
type Span struct {
	Start int
	End   int
}

// Segment splits text into sentences.
//
// Paragraphs are separated by blank lines and a sentence never crosses a
// paragraph boundary. Within a paragraph a sentence is a run of text ending
// in one or more of '.', '!' or '?'; trailing text without terminal
// punctuation becomes the last sentence of its paragraph. Leading
// whitespace, quotes and dashes are trimmed, except an em or en dash that
// opens dialogue. Sentences that are empty after trimming are dropped.
//
// Segment is deterministic and never fails.
func Segment(text string) []tts.Sentence {
	var sentences []tts.Sentence
	for p, para := range Paragraphs(text) {
		for _, frag := range fragments(text, para) {
			lo, hi := trim(text, frag)
			if lo >= hi {
				continue
			}
			sentences = append(sentences, tts.Sentence{
				Index:     len(sentences),
				Text:      text[lo:hi],
				Paragraph: p,
				Start:     lo,
				End:       hi,
			})
		}
	}
	return sentences
}

// Count returns the number of sentences in text.
func Count(text string) int {
	return len(Segment(text))
}

// Paragraphs returns the spans of text separated by blank lines.
// Spans containing only whitespace are omitted.
func Paragraphs(text string) []Span {
	var spans []Span
	start := 0
	add := func(end int) {
		if hasContent(text[start:end]) {
			spans = append(spans, Span{Start: start, End: end})
		}
	}
	for _, loc := range paragraphBreak.FindAllStringIndex(text, -1) {
		add(loc[0])
		start = loc[1]
	}
	add(len(text))
	return spans
}

// fragments splits a paragraph at runs of terminal punctuation.
func fragments(text string, para Span) []Span {
	var out []Span
	start := para.Start
	i := para.Start
	for i < para.End {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminal(r) {
			i += size
			continue
		}
		for i < para.End {
			r, size = utf8.DecodeRuneInString(text[i:])
			if !isTerminal(r) {
				break
			}
			i += size
		}
		out = append(out, Span{Start: start, End: i})
		start = i
	}
	if start < para.End {
		out = append(out, Span{Start: start, End: para.End})
	}
	return out
}

// trim narrows a fragment to its narrable text.
func trim(text string, frag Span) (int, int) {
	lo, hi := frag.Start, frag.End

	for lo < hi {
		r, size := utf8.DecodeRuneInString(text[lo:hi])
		if isDialogueDash(r) {
			next, _ := utf8.DecodeRuneInString(text[lo+size : hi])
			if lo+size < hi && (unicode.IsLetter(next) || unicode.IsDigit(next)) {
				break
			}
			lo += size
			continue
		}
		if !unicode.IsSpace(r) && !isDecoration(r) {
			break
		}
		lo += size
	}

	for hi > lo {
		r, size := utf8.DecodeLastRuneInString(text[lo:hi])
		if !unicode.IsSpace(r) {
			break
		}
		hi -= size
	}

	return lo, hi
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isDialogueDash(r rune) bool {
	return r == '—' || r == '–'
}

func isDecoration(r rune) bool {
	switch r {
	case '"', '\'', '“', '”', '‘', '’', '«', '»', '-':
		return true
	}
	return false
}

func hasContent(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
