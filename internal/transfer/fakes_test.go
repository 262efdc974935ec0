package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"ferry/internal/catalog"
	"ferry/internal/ledger"
	"ferry/internal/logging"
	"ferry/internal/rendition"
	"ferry/internal/services/ffmpeg"
	"ferry/internal/sink"
	"ferry/internal/staging"
)

type memLedger struct {
	mu      sync.Mutex
	records map[string]ledger.Record
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newMemLedger() *memLedger {
	return &memLedger{records: map[string]ledger.Record{}}
}

func (m *memLedger) Get(_ context.Context, id string) (*ledger.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memLedger) Put(ctx context.Context, r ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if existing, ok := m.records[r.ArtifactID]; ok && existing.Status == ledger.StatusUploaded {
		return nil
	}
	m.records[r.ArtifactID] = r
	return nil
}

func (m *memLedger) Stats(context.Context) (ledger.Stats, error) { return ledger.Stats{}, nil }

func (m *memLedger) List(context.Context, ledger.ListOptions) ([]ledger.Record, error) {
	return nil, nil
}

func (m *memLedger) Clear(_ context.Context, ids ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	return int64(len(ids)), nil
}

func (m *memLedger) Close() error { return nil }

func (m *memLedger) record(id string) (ledger.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok
}

// fakeDownloader writes size bytes of a repeating pattern.
type fakeDownloader struct {
	mu    sync.Mutex
	size  int
	err   error
	calls []string
	// staged runs after the file is written, before the pipeline continues.
	staged func(dest string)
}

func (d *fakeDownloader) Fetch(_ context.Context, rawURL, dest string, progress func(int64, int64)) (int64, error) {
	d.mu.Lock()
	d.calls = append(d.calls, rawURL)
	d.mu.Unlock()
	if d.err != nil {
		return 0, d.err
	}
	if err := os.WriteFile(dest, pattern(d.size), 0o644); err != nil {
		return 0, err
	}
	if d.staged != nil {
		d.staged(dest)
	}
	if progress != nil {
		progress(int64(d.size), int64(d.size))
	}
	return int64(d.size), nil
}

func (d *fakeDownloader) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	return data
}

type fakeRemuxer struct {
	size    int
	err     error
	streams []string
}

func (r *fakeRemuxer) Remux(_ context.Context, streamURL, destPath string, progress func(ffmpeg.ProgressUpdate)) error {
	r.streams = append(r.streams, streamURL)
	if r.err != nil {
		return r.err
	}
	if progress != nil {
		progress(ffmpeg.ProgressUpdate{Bytes: int64(r.size), Done: true})
	}
	return os.WriteFile(destPath, pattern(r.size), 0o644)
}

type fakeStreams struct {
	calls int
	err   error
}

func (s *fakeStreams) SignedStreamURL(_ context.Context, hash string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "https://cdn.example/" + hash + "/master.m3u8", nil
}

type fakeRenditions struct {
	ok    bool
	calls int
	pref  rendition.Quality
}

func (r *fakeRenditions) Resolve(_ context.Context, manifestURL string, pref rendition.Quality) (string, rendition.Variant, bool) {
	r.calls++
	r.pref = pref
	if !r.ok {
		return manifestURL, rendition.Variant{}, false
	}
	return manifestURL + "#480", rendition.Variant{Label: "480p", Height: 480}, true
}

type uploadCall struct {
	Request sink.Request
	Content []byte
}

// fakeSink records uploads. failOn makes the n-th call (1-based) fail.
type fakeSink struct {
	mu      sync.Mutex
	calls   []uploadCall
	failOn  int
	failErr error
	block   bool
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Upload(ctx context.Context, req sink.Request) (sink.Ref, error) {
	s.mu.Lock()
	content, _ := os.ReadFile(req.Path)
	s.calls = append(s.calls, uploadCall{Request: req, Content: content})
	n := len(s.calls)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if n == s.failOn {
		if s.failErr != nil {
			return "", s.failErr
		}
		return "", errors.New("sink rejected part")
	}
	if req.Progress != nil {
		req.Progress(int64(len(content)))
	}
	return sink.Ref(fmt.Sprintf("msg-%d", n)), nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type harness struct {
	t          *testing.T
	ledger     *memLedger
	area       *staging.Area
	sink       *fakeSink
	downloader *fakeDownloader
	remuxer    *fakeRemuxer
	streams    *fakeStreams
	renditions *fakeRenditions
	events     []Event
	eventsMu   sync.Mutex
	ceiling    int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	area, err := staging.NewArea(filepath.Join(t.TempDir(), "staging"))
	if err != nil {
		t.Fatalf("NewArea: %v", err)
	}
	return &harness{
		t:          t,
		ledger:     newMemLedger(),
		area:       area,
		sink:       &fakeSink{},
		downloader: &fakeDownloader{size: 25},
		remuxer:    &fakeRemuxer{size: 25},
		streams:    &fakeStreams{},
		renditions: &fakeRenditions{ok: true},
		ceiling:    1 << 20,
	}
}

func (h *harness) orchestrator() *Orchestrator {
	h.t.Helper()
	o, err := New(Deps{
		Ledger:     h.ledger,
		Staging:    h.area,
		Sink:       h.sink,
		Downloader: h.downloader,
		Remuxer:    h.remuxer,
		Streams:    h.streams,
		Renditions: h.renditions,
	}, Options{
		SizeCeiling: h.ceiling,
		Quality:     rendition.Quality480p,
		Logger:      logging.NewNop(),
		Events: func(ev Event) {
			h.eventsMu.Lock()
			h.events = append(h.events, ev)
			h.eventsMu.Unlock()
		},
	})
	if err != nil {
		h.t.Fatalf("New: %v", err)
	}
	return o
}

func (h *harness) stages(artifactID string) []string {
	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()
	var out []string
	for _, ev := range h.events {
		if ev.ArtifactID == artifactID && (ev.Kind == EventStage || ev.Kind == EventFinished) {
			if len(out) == 0 || out[len(out)-1] != ev.Stage {
				out = append(out, ev.Stage)
			}
		}
	}
	return out
}

func (h *harness) assertStagingEmpty() {
	h.t.Helper()
	entries, err := os.ReadDir(h.area.Root())
	if err != nil {
		h.t.Fatalf("read staging: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		slices.Sort(names)
		h.t.Fatalf("staging not empty: %v", names)
	}
}

func docItem(id string) WorkItem {
	return WorkItem{
		ArtifactID:  id,
		DisplayName: "Notes " + id,
		Kind:        catalog.KindDocument,
		SourceRef:   "https://files.example/" + id + ".pdf",
		FolderPath:  "Week 1",
	}
}

func videoItem(id string) WorkItem {
	return WorkItem{
		ArtifactID:  id,
		DisplayName: "Week 1_Lesson " + id,
		Kind:        catalog.KindVideo,
		SourceRef:   "hash-" + id,
		FolderPath:  "Week 1",
	}
}
