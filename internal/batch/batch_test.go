package batch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ferry/internal/catalog"
	"ferry/internal/logging"
	"ferry/internal/services"
)

const sampleList = `[
  {"id": 101, "name": "Lecture One", "link": "https://cdn.example/one.mp4"},
  {"id": "b-2", "name": " Lecture Two ", "link": "https://drive.google.com/file/d/AbC_123-x/view?usp=sharing"},
  {"id": 101, "name": "Duplicate", "link": "https://cdn.example/dup.mp4"}
]`

func TestDecodeNormalizesEntries(t *testing.T) {
	entries, err := Decode(strings.NewReader(sampleList))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (duplicate dropped)", len(entries))
	}
	if entries[0] != (Entry{ID: "101", Name: "Lecture One", Link: "https://cdn.example/one.mp4"}) {
		t.Fatalf("first = %+v", entries[0])
	}
	if entries[1].Name != "Lecture Two" {
		t.Fatalf("name not trimmed: %q", entries[1].Name)
	}
	if entries[1].Link != "https://drive.google.com/uc?export=download&id=AbC_123-x" {
		t.Fatalf("drive link not converted: %q", entries[1].Link)
	}
}

func TestDecodeRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"id":1}`,
		"empty":        `[]`,
		"missing id":   `[{"name":"a","link":"https://x/a"}]`,
		"bad id":       `[{"id":1.5,"name":"a","link":"https://x/a"}]`,
		"missing name": `[{"id":1,"link":"https://x/a"}]`,
		"bad link":     `[{"id":1,"name":"a","link":"ftp://x/a"}]`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := Decode(strings.NewReader(`[]`)); !errors.Is(err, ErrEmpty) {
		t.Fatalf("empty list err = %v", err)
	}
}

func TestKindForLink(t *testing.T) {
	tests := []struct {
		link string
		want catalog.Kind
	}{
		{"https://cdn.example/m.mp4", catalog.KindVideo},
		{"https://cdn.example/live/index.M3U8?token=x", catalog.KindVideo},
		{"https://cdn.example/notes.pdf", catalog.KindDocument},
		{"https://cdn.example/slides.pptx?dl=1", catalog.KindDocument},
		{"https://drive.google.com/uc?export=download&id=abc", catalog.KindVideo},
	}
	for _, tt := range tests {
		if got := KindForLink(tt.link); got != tt.want {
			t.Errorf("KindForLink(%q) = %s, want %s", tt.link, got, tt.want)
		}
	}
}

func TestWorkItemsInferKind(t *testing.T) {
	items := WorkItems([]Entry{
		{ID: "8", Name: "Handout", Link: "https://cdn.example/handout.pdf"},
	})
	if len(items) != 1 || items[0].Kind != catalog.KindDocument {
		t.Fatalf("items = %+v, want one document", items)
	}
}

func TestWorkItemsAreDirectVideos(t *testing.T) {
	items := WorkItems([]Entry{{ID: "7", Name: "Movie", Link: "https://cdn.example/m.mp4"}})
	if len(items) != 1 {
		t.Fatalf("items = %d", len(items))
	}
	item := items[0]
	if item.ArtifactID != "7" || item.DisplayName != "Movie" || item.Kind != catalog.KindVideo || item.SourceRef != "https://cdn.example/m.mp4" {
		t.Fatalf("item = %+v", item)
	}
}

func TestDirectDriveURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://drive.google.com/file/d/1VB9C9l38_Pv/view?usp=sharing", "https://drive.google.com/uc?export=download&id=1VB9C9l38_Pv", true},
		{"https://drive.google.com/file/d/abc/", "https://drive.google.com/uc?export=download&id=abc", true},
		{"https://drive.google.com/drive/folders/xyz", "https://drive.google.com/drive/folders/xyz", false},
		{"https://example.com/file/d/abc/view", "https://example.com/file/d/abc/view", false},
	}
	for _, tc := range cases {
		got, ok := DirectDriveURL(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("DirectDriveURL(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseConfirmForm(t *testing.T) {
	page := `<html><body>
<form id="search" action="/search"><input name="q" value=""></form>
<form id="download-form" action="https://drive.usercontent.google.com/download?a=1&amp;b=2" method="get">
  <input type="hidden" name="id" value="abc">
  <input type="hidden" name="export" value="download">
  <input type="hidden" name="confirm" value="t">
  <input type="hidden" name="uuid" value="u-1">
</form></body></html>`
	form, ok := parseConfirmForm(page, nil)
	if !ok {
		t.Fatal("expected confirmation form")
	}
	if form.Action != "https://drive.usercontent.google.com/download?a=1&b=2" {
		t.Fatalf("action = %q", form.Action)
	}
	if form.Method != http.MethodGet {
		t.Fatalf("method = %q", form.Method)
	}
	if form.Values.Get("confirm") != "t" || form.Values.Get("uuid") != "u-1" || form.Values.Get("id") != "abc" {
		t.Fatalf("values = %v", form.Values)
	}

	if _, ok := parseConfirmForm("<html>quota exceeded</html>", nil); ok {
		t.Fatal("page without a confirm field must not match")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	if err := os.WriteFile(path, []byte(sampleList), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}
	loader := NewLoader(nil, 0, logging.NewNop())
	entries, err := loader.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}

	_, err = loader.Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("missing file err = %v, want configuration error", err)
	}
}

func TestLoadFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleList))
	}))
	defer srv.Close()

	entries, err := NewLoader(srv.Client(), 0, logging.NewNop()).Load(context.Background(), srv.URL+"/list.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
}

func TestLoadFollowsConfirmationPage(t *testing.T) {
	var confirmed url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/uc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><form id="download-form" action="/download" method="get">
<input type="hidden" name="id" value="abc"><input type="hidden" name="confirm" value="t">
<input type="hidden" name="uuid" value="u-9"></form></html>`))
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		confirmed = r.URL.Query()
		if r.URL.Query().Get("confirm") != "t" {
			http.Error(w, "no confirm", http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(sampleList))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	entries, err := NewLoader(srv.Client(), 0, logging.NewNop()).Load(context.Background(), srv.URL+"/uc?export=download&id=abc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if confirmed.Get("uuid") != "u-9" || confirmed.Get("id") != "abc" {
		t.Fatalf("confirmation query = %v", confirmed)
	}
}

func TestLoadRejectsHTMLWithoutForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>Sign in</html>"))
	}))
	defer srv.Close()

	_, err := NewLoader(srv.Client(), 0, logging.NewNop()).Load(context.Background(), srv.URL)
	if !errors.Is(err, services.ErrFetch) {
		t.Fatalf("err = %v, want fetch error", err)
	}
}

func TestLoadReportsHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewLoader(srv.Client(), 0, logging.NewNop()).Load(context.Background(), srv.URL+"/list.json?token=secret")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want status 404", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Fatalf("query leaked into error: %v", err)
	}
}
