package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const shortJobIDLength = 8

// prettyHandler writes a one-line header per record followed by bullet
// fields. Info-level bullets already printed for the same component and job
// are suppressed until their value changes.
type prettyHandler struct {
	shared    *prettyState
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

// prettyState is shared by every handler derived through WithAttrs/WithGroup.
type prettyState struct {
	mu     sync.Mutex
	w      io.Writer
	recent map[string]map[string]string
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{
		shared:    &prettyState{w: w, recent: make(map[string]map[string]string)},
		level:     lvl,
		addSource: addSource,
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// header holds the parts of a record promoted out of the bullet list.
type header struct {
	ts        time.Time
	level     slog.Level
	component string
	jobID     string
	stage     string
	message   string
	source    *slog.Source
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	all := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	flattenAttrs(&all, h.groups, h.attrs)
	record.Attrs(func(attr slog.Attr) bool {
		flattenAttr(&all, h.groups, attr)
		return true
	})

	hdr := header{
		ts:      record.Time,
		level:   record.Level,
		message: strings.TrimSpace(record.Message),
		source:  record.Source(),
	}
	if hdr.ts.IsZero() {
		hdr.ts = time.Now()
	}
	if hdr.message == "" {
		hdr.message = "(no message)"
	}
	fields := make([]kv, 0, len(all))
	for _, attr := range all {
		switch attr.key {
		case FieldComponent:
			if hdr.component == "" {
				hdr.component = attrString(attr.value)
			}
			continue
		case FieldJobID:
			if hdr.jobID == "" {
				hdr.jobID = attrString(attr.value)
			}
		case FieldStage:
			if hdr.stage == "" {
				hdr.stage = attrString(attr.value)
			}
		}
		fields = append(fields, attr)
	}

	var b strings.Builder
	b.Grow(256 + len(fields)*32)

	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()
	h.writeHeader(&b, hdr)
	if record.Level < slog.LevelInfo {
		writeDebugFields(&b, dedupeKVsByKey(all))
	} else {
		h.writeInfoFields(&b, hdr, dedupeKVsByKey(fields))
	}
	_, err := io.WriteString(h.shared.w, b.String())
	return err
}

func (h *prettyHandler) writeHeader(b *strings.Builder, hdr header) {
	b.WriteString(formatTimestamp(hdr.ts))
	b.WriteByte(' ')
	b.WriteString(levelLabel(hdr.level))
	if hdr.component != "" {
		b.WriteString(" [" + hdr.component + "]")
	}
	if subject := FormatSubject(hdr.jobID, hdr.stage); subject != "" {
		b.WriteString(" " + subject)
	}
	b.WriteString(" - " + hdr.message)
	if h.addSource && hdr.source != nil {
		b.WriteString(" [" + filepath.Base(hdr.source.File) + ":" + strconv.Itoa(hdr.source.Line) + "]")
	}
	b.WriteByte('\n')
}

func writeDebugFields(b *strings.Builder, attrs []kv) {
	for _, attr := range attrs {
		b.WriteString("    " + attr.key + ": " + formatValue(attr.value) + "\n")
	}
}

func (h *prettyHandler) writeInfoFields(b *strings.Builder, hdr header, attrs []kv) {
	fields, hidden := selectInfoFields(attrs, 0, true)
	fields = h.suppressRepeats(infoSummaryKey(hdr.component, hdr.jobID), fields, hdr.level)
	for _, field := range fields {
		b.WriteString("    - " + field.label + ": " + field.value + "\n")
	}
	switch {
	case hidden == 1:
		b.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		b.WriteString("    + " + strconv.Itoa(hidden) + " more fields hidden\n")
	}
}

// suppressRepeats drops info bullets whose value matches the last one printed
// under key. Warnings and errors always print every field and refresh the cache.
func (h *prettyHandler) suppressRepeats(key string, fields []infoField, level slog.Level) []infoField {
	if key == "" || len(fields) == 0 {
		return fields
	}
	seen, ok := h.shared.recent[key]
	if !ok {
		seen = make(map[string]string)
		h.shared.recent[key] = seen
	}
	if level > slog.LevelInfo {
		for _, field := range fields {
			seen[field.label] = field.value
		}
		return fields
	}
	kept := fields[:0:0]
	for _, field := range fields {
		if prev, ok := seen[field.label]; ok && prev == field.value {
			continue
		}
		seen[field.label] = field.value
		kept = append(kept, field)
	}
	return kept
}

// FormatSubject renders "Job <id> (<stage>)" with the id cut to eight
// characters. Either part may be empty.
func FormatSubject(jobID, stage string) string {
	jobID = strings.TrimSpace(jobID)
	stage = strings.TrimSpace(stage)
	if len(jobID) > shortJobIDLength {
		jobID = jobID[:shortJobIDLength]
	}
	switch {
	case jobID == "":
		return stage
	case stage == "":
		return "Job " + jobID
	default:
		return "Job " + jobID + " (" + stage + ")"
	}
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeKVsByKey keeps the first position of each key with its last value.
func dedupeKVsByKey(attrs []kv) []kv {
	index := make(map[string]int, len(attrs))
	out := make([]kv, 0, len(attrs))
	for _, attr := range attrs {
		if attr.key == "" {
			continue
		}
		if i, ok := index[attr.key]; ok {
			out[i].value = attr.value
			continue
		}
		index[attr.key] = len(out)
		out = append(out, attr)
	}
	return out
}

func flattenAttrs(dst *[]kv, prefix []string, attrs []slog.Attr) {
	for _, attr := range attrs {
		flattenAttr(dst, prefix, attr)
	}
}

// flattenAttr expands groups into dotted keys.
func flattenAttr(dst *[]kv, prefix []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key != "" {
			prefix = append(prefix[:len(prefix):len(prefix)], attr.Key)
		}
		flattenAttrs(dst, prefix, attr.Value.Group())
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".")
		if attr.Key != "" {
			key += "." + attr.Key
		}
	}
	*dst = append(*dst, kv{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
