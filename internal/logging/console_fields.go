package logging

import (
	"log/slog"
	"strings"
)

type infoField struct {
	label string
	value string
}

const (
	infoAttrLimit    = 8
	infoValueMaxLen  = 160
	errorValueMaxLen = 240
)

// infoHighlightKeys are rendered first, in this order, when present.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldErrorKind,
	"display_name",
	"folder",
	"kind",
	"outcome",
	"quality",
	"rendition",
	"part",
	"parts",
	FieldProgressPercent,
	"size_bytes",
	"total_bytes",
	"remote_ref",
	"error",
	FieldErrorHint,
	FieldImpact,
	"elapsed",
	"reason",
}

var fieldLabels = map[string]string{
	FieldAlert:           "Alert",
	FieldEventType:       "Event",
	FieldErrorKind:       "Error Kind",
	FieldErrorHint:       "Hint",
	FieldProgressPercent: "Progress",
	"display_name":       "Name",
	"size_bytes":         "Size",
	"total_bytes":        "Total",
	"remote_ref":         "Remote",
}

type keyVisibility int

const (
	keyShown keyVisibility = iota
	keyDebugOnly
	keyInHeader
)

// visibility reports where an attribute belongs in console output. Header
// keys are already part of the subject line.
func visibility(key string) keyVisibility {
	switch key {
	case "", FieldArtifactID, FieldStage, FieldWorker, FieldComponent:
		return keyInHeader
	case FieldRunID, "url", "manifest_url", "source_ref", "status_code":
		return keyDebugOnly
	}
	if strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir") {
		return keyDebugOnly
	}
	return keyShown
}

// selectInfoFields returns formatted info-level fields and a count of hidden
// entries. A limit of zero or less means no limit.
func selectInfoFields(attrs []kv, limit int, includeDebug bool) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	order := make([]int, 0, len(attrs))
	taken := make([]bool, len(attrs))
	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if !taken[idx] && attr.key == key {
				taken[idx] = true
				order = append(order, idx)
				break
			}
		}
	}
	for idx := range attrs {
		if !taken[idx] {
			order = append(order, idx)
		}
	}

	fields := make([]infoField, 0, infoAttrLimit)
	hidden := 0
	for _, idx := range order {
		attr := attrs[idx]
		switch visibility(attr.key) {
		case keyInHeader:
			continue
		case keyDebugOnly:
			if !includeDebug {
				hidden++
				continue
			}
		}
		value := formatValueForKey(attr.key, attr.value)
		overlong := attr.key != "error" && len(value) > infoValueMaxLen
		if (overlong && !includeDebug) || (limit > 0 && len(fields) >= limit) {
			hidden++
			continue
		}
		fields = append(fields, infoField{label: displayLabel(attr.key), value: value})
	}
	return fields, hidden
}

// formatValueForKey picks byte, duration or percentage rendering from the key
// name, and shows booleans as yes/no.
func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindInt64:
		if isByteSizeKey(key) {
			return formatBytes(v.Int64())
		}
	case slog.KindUint64:
		if isByteSizeKey(key) {
			return formatBytes(int64(v.Uint64()))
		}
	case slog.KindDuration:
		if isDurationKey(key) {
			return formatDurationHuman(v.Duration())
		}
	case slog.KindFloat64:
		if strings.HasSuffix(key, "_percent") {
			return formatPercent(v.Float64())
		}
	case slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	}
	value := formatValue(v)
	if key == "error" {
		value = strings.TrimSpace(value)
		if len(value) > errorValueMaxLen {
			value = value[:errorValueMaxLen] + "…"
		}
	}
	return value
}

func isByteSizeKey(key string) bool {
	return key == "size" || key == "ceiling" || strings.HasSuffix(key, "_bytes")
}

func isDurationKey(key string) bool {
	switch key {
	case "elapsed", "duration", "delay":
		return true
	}
	return strings.HasSuffix(key, "_duration") || strings.HasSuffix(key, "_elapsed")
}

func displayLabel(key string) string {
	if label, ok := fieldLabels[key]; ok {
		return label
	}
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for i, word := range words {
		word = strings.ToLower(word)
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// infoSummaryKey scopes repeated-field suppression to one artifact, or to the
// component when no artifact is set.
func infoSummaryKey(component, artifactID string) string {
	if artifactID = strings.TrimSpace(artifactID); artifactID != "" {
		return "artifact:" + artifactID
	}
	return component
}
