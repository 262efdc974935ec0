package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ferry/internal/testsupport"
)

var testModTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Sink: directory")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, err = runCLI(t, nil, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, nil, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := runCLI(t, nil, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateReportsErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[transfer]\nsize_ceiling_mb = -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, env, "config", "validate"); err == nil {
		t.Fatal("expected validation error for negative ceiling")
	}
}

type batchSummary struct {
	Stats struct {
		Completed int64
		Skipped   int64
		Failed    int64
		Split     int64
		Bytes     int64
	} `json:"stats"`
	After struct {
		Uploaded int
		Split    int
	} `json:"ledger_after"`
}

func decodeSummary(t *testing.T, out string) batchSummary {
	t.Helper()
	var summary batchSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	return summary
}

func newBatchServer(t *testing.T, video, doc []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/files/lecture.mp4", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "lecture.mp4", testModTime, bytes.NewReader(video))
	})
	mux.HandleFunc("/files/notes.pdf", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "notes.pdf", testModTime, bytes.NewReader(doc))
	})
	list := fmt.Sprintf(`[
		{"id": 1, "name": "Lecture One", "link": %q},
		{"id": "doc-2", "name": "Notes", "link": %q}
	]`, srv.URL+"/files/lecture.mp4", srv.URL+"/files/notes.pdf")
	mux.HandleFunc("/list.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(list))
	})
	return srv
}

func TestBatchTransfersListAndSkipsOnRerun(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithSizeCeilingMB(1))
	video := testsupport.PatternBytes(5 << 19)
	doc := testsupport.PatternBytes(4096)
	srv := newBatchServer(t, video, doc)

	out, err := runCLI(t, env, "--json", "batch", srv.URL+"/list.json")
	if err != nil {
		t.Fatalf("batch: %v\n%s", err, out)
	}
	summary := decodeSummary(t, out)
	if summary.Stats.Completed != 2 || summary.Stats.Failed != 0 || summary.Stats.Split != 1 {
		t.Fatalf("unexpected first run stats %+v", summary.Stats)
	}
	if summary.Stats.Bytes != int64(len(video)+len(doc)) {
		t.Fatalf("bytes = %d, want %d", summary.Stats.Bytes, len(video)+len(doc))
	}
	if summary.After.Uploaded != 2 || summary.After.Split != 1 {
		t.Fatalf("unexpected ledger stats %+v", summary.After)
	}

	sinkDir := env.cfg.Sink.Directory.Path
	var rebuilt []byte
	for i := 1; i <= 3; i++ {
		part, err := os.ReadFile(filepath.Join(sinkDir, fmt.Sprintf("1_Lecture One.%03d.mp4", i)))
		if err != nil {
			t.Fatalf("read part %d: %v", i, err)
		}
		rebuilt = append(rebuilt, part...)
	}
	if !bytes.Equal(rebuilt, video) {
		t.Fatal("reassembled parts differ from the source")
	}
	if got, err := os.ReadFile(filepath.Join(sinkDir, "doc-2_Notes.pdf")); err != nil || !bytes.Equal(got, doc) {
		t.Fatalf("document not copied intact: %v", err)
	}

	out, err = runCLI(t, env, "--json", "batch", srv.URL+"/list.json")
	if err != nil {
		t.Fatalf("second batch: %v\n%s", err, out)
	}
	if summary := decodeSummary(t, out); summary.Stats.Skipped != 2 || summary.Stats.Completed != 2 {
		t.Fatalf("expected both items skipped on rerun, got %+v", summary.Stats)
	}

	entries, err := os.ReadDir(env.cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("read staging: %v", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			t.Fatalf("staging directory %s left behind", entry.Name())
		}
	}
}

func TestBatchReportsFailedItems(t *testing.T) {
	env := setupCLITestEnv(t)
	listPath := filepath.Join(t.TempDir(), "list.json")
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	list := fmt.Sprintf(`[{"id": "gone", "name": "Missing", "link": %q}]`, srv.URL+"/missing.mp4")
	if err := os.WriteFile(listPath, []byte(list), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, env, "batch", listPath)
	if err == nil {
		t.Fatalf("expected error when an item fails\n%s", out)
	}
	requireContains(t, err.Error(), "1 of 1 items failed")
	requireContains(t, out, "Run summary")

	out, err = runCLI(t, env, "--json", "ledger", "show", "--status", "failed")
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, `"ArtifactID": "gone"`)
	requireContains(t, out, "download")
}

func TestBatchRejectsMissingList(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "batch", filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing batch file")
	}
}

func TestLedgerCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "ledger", "stats")
	if err != nil {
		t.Fatalf("ledger stats: %v", err)
	}
	requireContains(t, out, "Uploaded")

	out, err = runCLI(t, env, "ledger", "show")
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, "No ledger records found")

	if _, err := runCLI(t, env, "ledger", "clear"); err == nil {
		t.Fatal("expected clear without ids or --all to fail")
	}
	if _, err := runCLI(t, env, "ledger", "show", "--status", "bogus"); err == nil {
		t.Fatal("expected invalid status to fail")
	}

	out, err = runCLI(t, env, "--json", "ledger", "clear", "--all")
	if err != nil {
		t.Fatalf("ledger clear --all: %v", err)
	}
	requireContains(t, out, `"removed": 0`)
}

func TestStagingCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "staging", "list")
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "No staging directories found")

	leftover := filepath.Join(env.cfg.Paths.StagingDir, "item-42")
	if err := os.MkdirAll(leftover, 0o755); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, filepath.Join(leftover, "part.bin"), 2048)

	out, err = runCLI(t, env, "staging", "list")
	if err != nil {
		t.Fatalf("staging list: %v", err)
	}
	requireContains(t, out, "item-42")

	out, err = runCLI(t, env, "staging", "clean")
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "No stale directories to clean")

	out, err = runCLI(t, env, "staging", "clean", "--all")
	if err != nil {
		t.Fatalf("staging clean --all: %v", err)
	}
	requireContains(t, out, "Removed 1 staging directories")
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Fatalf("expected leftover removed, stat err = %v", err)
	}
}

func TestDoctorReportsChecks(t *testing.T) {
	catalogSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer catalogSrv.Close()
	env := setupCLITestEnv(t, testsupport.WithSizeCeilingMB(1), testsupport.WithCatalogURL(catalogSrv.URL))

	out, err := runCLI(t, env, "doctor", "--batch")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	for _, want := range []string{"== Preflight ==", "Staging directory:", "Ledger:", "[WARN]", "== Dependencies =="} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "[ERROR]") {
		t.Fatalf("expected no hard failures:\n%s", out)
	}
}

func TestRootWithoutSubcommandPrintsHelp(t *testing.T) {
	out, err := runCLI(t, nil, "--help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, want := range []string{"batch", "run", "ledger", "staging", "doctor", "config"} {
		requireContains(t, out, want)
	}
}

type catalogEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType int    `json:"contentType"`
	URL         string `json:"url,omitempty"`
}

// newCatalogServer serves a nested course catalog whose documents live on the
// same server. Folder "20" always fails.
func newCatalogServer(t *testing.T, files map[string][]byte) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	for name, data := range files {
		mux.HandleFunc("/files/"+name, func(w http.ResponseWriter, r *http.Request) {
			http.ServeContent(w, r, name, testModTime, bytes.NewReader(data))
		})
	}
	docURL := func(name string) string { return srv.URL + "/files/" + name }
	folders := map[string][]catalogEntry{
		"0": {
			{ID: "d1", Name: "Syllabus", ContentType: 3, URL: docURL("syllabus.pdf")},
			{ID: "10", Name: "Week 1", ContentType: 1},
			{ID: "20", Name: "Broken", ContentType: 1},
			{ID: "d4", Name: "Outro", ContentType: 3, URL: docURL("outro.pdf")},
		},
		"10": {
			{ID: "d2", Name: "Notes", ContentType: 3, URL: docURL("notes.pdf")},
			{ID: "11", Name: "Extra", ContentType: 1},
		},
		"11": {
			{ID: "d3", Name: "Reading", ContentType: 3, URL: docURL("reading.pdf")},
		},
	}

	brokenHits := &atomic.Int64{}
	mux.HandleFunc("/v2/course/content/get", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-access-token") != "test-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		folderID := r.URL.Query().Get("folderId")
		if folderID == "20" {
			brokenHits.Add(1)
			http.Error(w, "folder unavailable", http.StatusInternalServerError)
			return
		}
		children, ok := folders[folderID]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]any{"courseContent": children},
		})
	})
	return srv, brokenHits
}

// fakeRemuxBinary writes an executable that answers -version like ffmpeg, so
// run mode passes its dependency check without a real ffmpeg.
func fakeRemuxBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a unix shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\necho \"ffmpeg version 6.1-test\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func TestRunWalksCatalogIsolatesFailedFolderAndSkipsOnRerun(t *testing.T) {
	files := map[string][]byte{
		"syllabus.pdf": testsupport.PatternBytes(2048),
		"notes.pdf":    testsupport.PatternBytes(3000),
		"reading.pdf":  testsupport.PatternBytes(1500),
		"outro.pdf":    testsupport.PatternBytes(512),
	}
	srv, brokenHits := newCatalogServer(t, files)
	env := setupCLITestEnv(t, testsupport.WithCatalogURL(srv.URL))
	env.cfg.Remux.Binary = fakeRemuxBinary(t)
	writeTestConfig(t, env.configPath, env.cfg)

	out, err := runCLI(t, env, "--json", "run", "--course", "course-9")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	summary := decodeSummary(t, out)
	if summary.Stats.Completed != 4 || summary.Stats.Failed != 0 || summary.Stats.Skipped != 0 {
		t.Fatalf("unexpected first run stats %+v", summary.Stats)
	}
	if summary.After.Uploaded != 4 {
		t.Fatalf("expected 4 uploaded records, got %+v", summary.After)
	}
	if brokenHits.Load() == 0 {
		t.Fatal("expected the failing folder to be requested")
	}

	sinkDir := env.cfg.Sink.Directory.Path
	want := map[string]string{
		"d1_Syllabus.pdf":                                  "syllabus.pdf",
		filepath.Join("Week 1", "d2_Notes.pdf"):            "notes.pdf",
		filepath.Join("Week 1", "Extra", "d3_Reading.pdf"): "reading.pdf",
		"d4_Outro.pdf":                                     "outro.pdf",
	}
	for rel, source := range want {
		got, err := os.ReadFile(filepath.Join(sinkDir, rel))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if !bytes.Equal(got, files[source]) {
			t.Fatalf("%s does not match %s", rel, source)
		}
	}
	if _, err := os.Stat(filepath.Join(sinkDir, "Broken")); !os.IsNotExist(err) {
		t.Fatalf("expected nothing from the failed folder, stat err = %v", err)
	}

	out, err = runCLI(t, env, "--json", "run", "--course", "course-9")
	if err != nil {
		t.Fatalf("second run: %v\n%s", err, out)
	}
	rerun := decodeSummary(t, out)
	if rerun.Stats.Skipped != 4 || rerun.Stats.Failed != 0 || rerun.Stats.Bytes != 0 {
		t.Fatalf("expected every item skipped on rerun, got %+v", rerun.Stats)
	}
	if rerun.After.Uploaded != 4 {
		t.Fatalf("rerun changed the ledger: %+v", rerun.After)
	}
}

func TestRunRejectsMissingCatalogToken(t *testing.T) {
	t.Setenv("FERRY_CATALOG_TOKEN", "")
	env := setupCLITestEnv(t)
	env.cfg.Catalog.AccessToken = ""
	writeTestConfig(t, env.configPath, env.cfg)

	_, err := runCLI(t, env, "run")
	if err == nil {
		t.Fatal("expected run to fail without a catalog access token")
	}
	requireContains(t, err.Error(), "catalog.access_token")
}
