package whisperx

import (
	"bytes"
	"regexp"
	"strconv"
)

var progressPattern = regexp.MustCompile(`Progress:\s*([0-9]+(?:\.[0-9]+)?)%`)

// progressWriter scans whisperx output for progress lines and reports
// increasing whole percentages.
type progressWriter struct {
	report func(int)
	buf    []byte
	last   int
}

func newProgressWriter(report func(int)) *progressWriter {
	return &progressWriter{report: report, last: -1}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexAny(w.buf, "\r\n")
		if idx < 0 {
			break
		}
		w.line(w.buf[:idx])
		w.buf = w.buf[idx+1:]
	}
	return len(p), nil
}

// Flush processes any trailing partial line.
func (w *progressWriter) Flush() {
	if len(w.buf) > 0 {
		w.line(w.buf)
		w.buf = nil
	}
}

func (w *progressWriter) line(line []byte) {
	if w.report == nil {
		return
	}
	match := progressPattern.FindSubmatch(line)
	if match == nil {
		return
	}
	value, err := strconv.ParseFloat(string(match[1]), 64)
	if err != nil {
		return
	}
	percent := int(value)
	if percent > 100 {
		percent = 100
	}
	if percent <= w.last {
		return
	}
	w.last = percent
	w.report(percent)
}
