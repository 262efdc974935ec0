package rendition

import (
	"bufio"
	"net/url"
	"strconv"
	"strings"
)

const streamInfTag = "#EXT-X-STREAM-INF:"

// Variant is one encoded rendition listed in a master playlist.
type Variant struct {
	Bandwidth int64
	Width     int
	Height    int
	FrameRate float64
	URL       string
	// Label is derived by the selector and never read from the manifest.
	Label string
}

// ParseManifest extracts the variants of an HLS master playlist in listing
// order. Variants without a usable URI are dropped; malformed attributes are
// ignored one at a time.
func ParseManifest(manifestText, baseURL string) []Variant {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		base = nil
	}

	var (
		variants []Variant
		pending  *Variant
	)
	scanner := bufio.NewScanner(strings.NewReader(manifestText))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, streamInfTag):
			v := parseStreamInf(line[len(streamInfTag):])
			pending = &v
		case strings.HasPrefix(line, "#"):
			continue
		case pending != nil:
			if resolved, ok := resolveURI(base, line); ok {
				pending.URL = resolved
				variants = append(variants, *pending)
			}
			pending = nil
		}
	}
	return variants
}

func parseStreamInf(attrList string) Variant {
	var v Variant
	for key, value := range parseAttributes(attrList) {
		switch key {
		case "BANDWIDTH":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
				v.Bandwidth = n
			}
		case "RESOLUTION":
			w, h, ok := parseResolution(value)
			if ok {
				v.Width, v.Height = w, h
			}
		case "FRAME-RATE":
			if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
				v.FrameRate = f
			}
		}
	}
	return v
}

// parseAttributes splits an attribute list on commas outside quoted strings.
func parseAttributes(attrList string) map[string]string {
	attrs := make(map[string]string)
	var (
		field   strings.Builder
		inQuote bool
	)
	flush := func() {
		key, value, ok := strings.Cut(field.String(), "=")
		field.Reset()
		if !ok {
			return
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if key != "" {
			attrs[key] = value
		}
	}
	for _, r := range attrList {
		switch {
		case r == '"':
			inQuote = !inQuote
			field.WriteRune(r)
		case r == ',' && !inQuote:
			flush()
		default:
			field.WriteRune(r)
		}
	}
	flush()
	return attrs
}

func parseResolution(value string) (int, int, bool) {
	ws, hs, ok := strings.Cut(strings.ToLower(value), "x")
	if !ok {
		return 0, 0, false
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

func resolveURI(base *url.URL, raw string) (string, bool) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !ref.IsAbs() {
		if base == nil || !base.IsAbs() {
			return "", false
		}
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}
	return ref.String(), true
}
