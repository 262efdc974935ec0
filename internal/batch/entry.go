package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ferry/internal/catalog"
	"ferry/internal/download"
	"ferry/internal/transfer"
)

// Entry is one element of a batch list.
type Entry struct {
	ID   string
	Name string
	Link string
}

type wireEntry struct {
	ID   json.RawMessage `json:"id"`
	Name string          `json:"name"`
	Link string          `json:"link"`
}

// ErrEmpty is returned when a list decodes to zero entries.
var ErrEmpty = errors.New("batch list is empty")

// Decode parses a batch list. Entries missing an id, name or http(s) link
// reject the whole list. Repeated ids keep their first occurrence.
func Decode(r io.Reader) ([]Entry, error) {
	var raw []wireEntry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode batch list: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmpty
	}

	entries := make([]Entry, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, w := range raw {
		id, err := decodeID(w.ID)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		name := strings.TrimSpace(w.Name)
		if name == "" {
			return nil, fmt.Errorf("entry %d (id %s): missing name", i, id)
		}
		link := strings.TrimSpace(w.Link)
		if !isHTTP(link) {
			return nil, fmt.Errorf("entry %d (id %s): link must be an http(s) url", i, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if direct, ok := DirectDriveURL(link); ok {
			link = direct
		}
		entries = append(entries, Entry{ID: id, Name: name, Link: link})
	}
	return entries, nil
}

// videoExtensions are the link suffixes sent as streamable video.
var videoExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".mkv": true,
	".webm": true, ".avi": true, ".ts": true, ".m3u8": true,
}

// KindForLink infers the artifact kind from the link's extension. Links
// without one, such as Drive downloads, are treated as video.
func KindForLink(link string) catalog.Kind {
	ext := download.Extension(link, "")
	if ext == "" || videoExtensions[ext] {
		return catalog.KindVideo
	}
	return catalog.KindDocument
}

// WorkItems converts entries into transfer items.
func WorkItems(entries []Entry) []transfer.WorkItem {
	items := make([]transfer.WorkItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, transfer.WorkItem{
			ArtifactID:  e.ID,
			DisplayName: e.Name,
			Kind:        KindForLink(e.Link),
			SourceRef:   e.Link,
		})
	}
	return items
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", errors.New("missing id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid id: %w", err)
		}
		if s = strings.TrimSpace(s); s == "" {
			return "", errors.New("missing id")
		}
		return s, nil
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid id %s", raw)
	}
	return strconv.FormatInt(n, 10), nil
}

func isHTTP(link string) bool {
	lower := strings.ToLower(link)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
