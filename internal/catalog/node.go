package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a catalog node.
type Kind string

const (
	KindFolder   Kind = "folder"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

// wire content types
const (
	contentTypeFolder   = 1
	contentTypeVideo    = 2
	contentTypeDocument = 3
)

// Node is one validated entry of a folder listing. ContentRef is the opaque
// content hash for videos, the direct URL for documents, and empty for
// folders.
type Node struct {
	ID         string
	Name       string
	Kind       Kind
	ParentPath string
	ContentRef string
}

// IsLeaf reports whether the node is transferable content.
func (n Node) IsLeaf() bool {
	return n.Kind == KindVideo || n.Kind == KindDocument
}

type wireNode struct {
	ID            json.RawMessage `json:"id"`
	Name          *string         `json:"name"`
	ContentType   *int            `json:"contentType"`
	ContentHashID string          `json:"contentHashId"`
	URL           string          `json:"url"`
}

// decodeNode validates a wire entry. Position is used only for messages.
func decodeNode(raw wireNode, parentPath string, position int) (Node, error) {
	id, err := decodeID(raw.ID)
	if err != nil {
		return Node{}, fmt.Errorf("entry %d: %w", position, err)
	}
	if raw.Name == nil || strings.TrimSpace(*raw.Name) == "" {
		return Node{}, fmt.Errorf("entry %d (id %s): missing name", position, id)
	}
	if raw.ContentType == nil {
		return Node{}, fmt.Errorf("entry %d (id %s): missing contentType", position, id)
	}

	node := Node{ID: id, Name: strings.TrimSpace(*raw.Name), ParentPath: parentPath}
	switch *raw.ContentType {
	case contentTypeFolder:
		node.Kind = KindFolder
	case contentTypeVideo:
		node.Kind = KindVideo
		node.ContentRef = strings.TrimSpace(raw.ContentHashID)
		if node.ContentRef == "" {
			return Node{}, fmt.Errorf("entry %d (id %s): video without contentHashId", position, id)
		}
	case contentTypeDocument:
		node.Kind = KindDocument
		node.ContentRef = strings.TrimSpace(raw.URL)
		if node.ContentRef == "" {
			return Node{}, fmt.Errorf("entry %d (id %s): document without url", position, id)
		}
	default:
		return Node{}, fmt.Errorf("entry %d (id %s): unknown contentType %d", position, id, *raw.ContentType)
	}
	return node, nil
}

// decodeID accepts a JSON string or integer identifier.
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("missing id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("invalid id: %w", err)
		}
		if s = strings.TrimSpace(s); s == "" {
			return "", fmt.Errorf("missing id")
		}
		return s, nil
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid id %s", raw)
	}
	return strconv.FormatInt(n, 10), nil
}
