package subtitles

import (
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// splitDelimiters are the characters a subtitle may be split after.
var splitDelimiters = []rune{' ', ',', '.', '，', '。'}

// Part is one half of a split subtitle.
type Part struct {
	StartMS uint64 `json:"start_ms"`
	EndMS   uint64 `json:"end_ms"`
	Text    string `json:"text"`
}

// SplitIntoTwo divides a cue near the middle of its text. It prefers the
// delimiter boundary closest to the middle byte, earliest on ties, and falls
// back to half the grapheme clusters. The split time is proportional to the
// character count of the first half over the character count of the whole
// text, so first.EndMS == second.StartMS.
func SplitIntoTwo(startMS, endMS uint64, text string) (Part, Part, bool) {
	if text == "" || utf8.RuneCountInString(strings.TrimSpace(text)) <= 1 || endMS < startMS {
		return Part{}, Part{}, false
	}

	var first, second string
	if pos, ok := delimiterSplit(text); ok {
		first = strings.TrimSpace(text[:pos])
		second = strings.TrimSpace(text[pos:])
	} else {
		first, second = graphemeSplit(text)
	}
	if first == "" || second == "" {
		return Part{}, Part{}, false
	}

	total := uint64(utf8.RuneCountInString(text))
	head := uint64(utf8.RuneCountInString(first))
	split := startMS + (endMS-startMS)*head/total
	return Part{StartMS: startMS, EndMS: split, Text: first},
		Part{StartMS: split, EndMS: endMS, Text: second},
		true
}

func delimiterSplit(text string) (int, bool) {
	target := len(text) / 2
	best, bestDist := -1, 0
	for i, r := range text {
		if !isSplitDelimiter(r) {
			continue
		}
		pos := i + utf8.RuneLen(r)
		dist := pos - target
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = pos, dist
		}
	}
	return best, best >= 0
}

func isSplitDelimiter(r rune) bool {
	for _, d := range splitDelimiters {
		if r == d {
			return true
		}
	}
	return false
}

func graphemeSplit(text string) (string, string) {
	mid := uniseg.GraphemeClusterCount(text) / 2
	gr := uniseg.NewGraphemes(text)
	for n := 0; gr.Next(); n++ {
		if n == mid {
			start, _ := gr.Positions()
			return text[:start], text[start:]
		}
	}
	return text, ""
}

// Split replaces subtitle i with its two halves and renumbers the list.
// ok is false when the cue cannot be split.
func (l List) Split(i int) (List, bool, error) {
	if err := l.check(i); err != nil {
		return l, false, err
	}
	first, second, ok := SplitIntoTwo(l[i].StartMS, l[i].EndMS, l[i].Text)
	if !ok {
		return l, false, nil
	}
	out := make(List, 0, len(l)+1)
	out = append(out, l[:i]...)
	out = append(out,
		Subtitle{StartMS: first.StartMS, EndMS: first.EndMS, Text: first.Text},
		Subtitle{StartMS: second.StartMS, EndMS: second.EndMS, Text: second.Text},
	)
	out = append(out, l[i+1:]...)
	return out.Renumber(), true, nil
}
