package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// prettyHandler renders human-oriented log lines:
//
//	2026-01-02 15:04:05 INFO [transfer] Worker 2 · 42 (uploading) - part uploaded
//	    - Size: 3.0 MiB
//
// Info lines show a curated field list and drop fields whose value did not
// change since the previous line about the same artifact. Debug lines dump
// every attribute.
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	addSource bool
	attrs     []slog.Attr
	groups    []string
	// lastFields remembers the rendered info fields per artifact.
	lastFields map[string]map[string]string
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{
		mu:         &sync.Mutex{},
		writer:     w,
		level:      lvl,
		addSource:  addSource,
		lastFields: make(map[string]map[string]string),
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// consoleLine is a record with the subject fields pulled out.
type consoleLine struct {
	ts         time.Time
	level      slog.Level
	component  string
	artifactID string
	subject    string
	message    string
	source     *slog.Source
	fields     []kv // without component
	all        []kv
}

func (h *prettyHandler) collect(record slog.Record) consoleLine {
	line := consoleLine{
		ts:      record.Time,
		level:   record.Level,
		message: strings.TrimSpace(record.Message),
		source:  record.Source(),
	}
	if line.ts.IsZero() {
		line.ts = time.Now()
	}
	if line.message == "" {
		line.message = "(no message)"
	}

	var kvs []kv
	prefix := strings.Join(h.groups, ".")
	for _, attr := range h.attrs {
		kvs = appendFlattened(kvs, prefix, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		kvs = appendFlattened(kvs, prefix, attr)
		return true
	})
	kvs = dedupeKVsByKey(kvs)

	var worker, stage string
	first := func(dst *string, v slog.Value) {
		if *dst == "" {
			*dst = attrString(v)
		}
	}
	for _, field := range kvs {
		switch field.key {
		case FieldComponent:
			first(&line.component, field.value)
			continue
		case FieldArtifactID:
			first(&line.artifactID, field.value)
		case FieldStage:
			first(&stage, field.value)
		case FieldWorker:
			first(&worker, field.value)
		}
		line.fields = append(line.fields, field)
	}
	line.all = kvs
	line.subject = composeSubject(worker, line.artifactID, stage)
	return line
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}
	line := h.collect(record)

	var buf bytes.Buffer
	h.writeHeader(&buf, line)

	h.mu.Lock()
	defer h.mu.Unlock()
	if line.level < slog.LevelInfo {
		for _, field := range line.all {
			fmt.Fprintf(&buf, "    %s: %s\n", field.key, formatValue(field.value))
		}
	} else {
		h.writeInfoFields(&buf, line)
	}
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) writeHeader(buf *bytes.Buffer, line consoleLine) {
	buf.WriteString(formatTimestamp(line.ts))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(line.level))
	if line.component != "" {
		fmt.Fprintf(buf, " [%s]", line.component)
	}
	if line.subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(line.subject)
	}
	buf.WriteString(" - ")
	buf.WriteString(line.message)
	if h.addSource && line.source != nil && line.source.File != "" {
		fmt.Fprintf(buf, " [%s:%d]", filepath.Base(line.source.File), line.source.Line)
	}
	buf.WriteByte('\n')
}

// writeInfoFields must be called with h.mu held.
func (h *prettyHandler) writeInfoFields(buf *bytes.Buffer, line consoleLine) {
	fields, hidden := selectInfoFields(line.fields, 0, true)
	if key := infoSummaryKey(line.component, line.artifactID); key != "" {
		fields = h.dropUnchanged(key, fields, line.level)
	}
	for _, field := range fields {
		fmt.Fprintf(buf, "    - %s: %s\n", field.label, field.value)
	}
	switch {
	case hidden == 1:
		buf.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		fmt.Fprintf(buf, "    + %d more fields hidden\n", hidden)
	}
}

// dropUnchanged filters fields already shown with the same value for key.
// Warnings and errors always show every field but still refresh the memory.
func (h *prettyHandler) dropUnchanged(key string, fields []infoField, level slog.Level) []infoField {
	seen, ok := h.lastFields[key]
	if !ok {
		seen = make(map[string]string)
		h.lastFields[key] = seen
	}
	kept := fields[:0:0]
	for _, field := range fields {
		prev, shown := seen[field.label]
		seen[field.label] = field.value
		if level <= slog.LevelInfo && shown && prev == field.value {
			continue
		}
		kept = append(kept, field)
	}
	return kept
}

// composeSubject renders "Worker 2 · <artifact> (uploading)" style subjects.
func composeSubject(worker, artifactID, stage string) string {
	worker = strings.TrimSpace(worker)
	artifactID = strings.TrimSpace(artifactID)
	stage = strings.TrimSpace(stage)

	item := artifactID
	switch {
	case item != "" && stage != "":
		item += " (" + stage + ")"
	case item == "":
		item = stage
	}
	switch {
	case worker == "":
		return item
	case item == "":
		return "Worker " + worker
	default:
		return "Worker " + worker + " · " + item
	}
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

type kv struct {
	key   string
	value slog.Value
}

// dedupeKVsByKey keeps the first position of every key with its last value.
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

// appendFlattened expands groups into dotted keys.
func appendFlattened(dst []kv, prefix string, attr slog.Attr) []kv {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	attr.Value = attr.Value.Resolve()
	key := attr.Key
	if prefix != "" {
		key = strings.TrimSuffix(prefix+"."+attr.Key, ".")
	}
	if attr.Value.Kind() != slog.KindGroup {
		return append(dst, kv{key: key, value: attr.Value})
	}
	for _, member := range attr.Value.Group() {
		dst = appendFlattened(dst, key, member)
	}
	return dst
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
