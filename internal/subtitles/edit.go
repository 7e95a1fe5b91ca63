package subtitles

import "strings"

// PlaceholderText fills cues created by InsertBefore and InsertAfter.
const PlaceholderText = "..."

// separatorReplacer maps sentence separators left by the model to spaces.
var separatorReplacer = strings.NewReplacer(",", " ", "，", " ", "。", " ")

// MergeWithPrevious folds subtitle i into i-1: the previous cue takes i's end
// time and the texts are joined with a space.
func (l List) MergeWithPrevious(i int) (List, error) {
	if err := l.check(i); err != nil {
		return l, err
	}
	if i == 0 {
		return l, nil
	}
	out := l.clone()
	prev := &out[i-1]
	prev.EndMS = out[i].EndMS
	prev.Text = joinText(prev.Text, out[i].Text)
	out = append(out[:i], out[i+1:]...)
	return out.Renumber(), nil
}

// InsertBefore adds a placeholder cue spanning the gap before subtitle i.
func (l List) InsertBefore(i int) (List, error) {
	if err := l.check(i); err != nil {
		return l, err
	}
	var start uint64
	if i > 0 {
		start = l[i-1].EndMS
	}
	return l.insertAt(i, gapCue(start, l[i].StartMS)), nil
}

// InsertAfter adds a placeholder cue spanning the gap after subtitle i. After
// the last cue the placeholder is zero length at its end time.
func (l List) InsertAfter(i int) (List, error) {
	if err := l.check(i); err != nil {
		return l, err
	}
	end := l[i].EndMS
	if i+1 < len(l) {
		end = l[i+1].StartMS
	}
	return l.insertAt(i+1, gapCue(l[i].EndMS, end)), nil
}

// Remove deletes subtitle i.
func (l List) Remove(i int) (List, error) {
	if err := l.check(i); err != nil {
		return l, err
	}
	out := l.clone()
	out = append(out[:i], out[i+1:]...)
	return out.Renumber(), nil
}

// ReplaceText substitutes every occurrence of old in every cue.
func (l List) ReplaceText(old, replacement string) List {
	out := l.clone()
	if old == "" {
		return out
	}
	for i := range out {
		out[i].Text = strings.ReplaceAll(out[i].Text, old, replacement)
	}
	return out
}

// ReplaceSeparators turns commas and CJK separators into spaces.
func (l List) ReplaceSeparators() List {
	out := l.clone()
	for i := range out {
		out[i].Text = separatorReplacer.Replace(out[i].Text)
	}
	return out
}

func (l List) insertAt(i int, sub Subtitle) List {
	out := make(List, 0, len(l)+1)
	out = append(out, l[:i]...)
	out = append(out, sub)
	out = append(out, l[i:]...)
	return out.Renumber()
}

func gapCue(start, end uint64) Subtitle {
	if end < start {
		end = start
	}
	return Subtitle{StartMS: start, EndMS: end, Text: PlaceholderText}
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
