package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersUpdateCounters(t *testing.T) {
	before := testutil.ToFloat64(itemsTotal.WithLabelValues("completed"))
	RecordItem("completed", 3*time.Second)
	if got := testutil.ToFloat64(itemsTotal.WithLabelValues("completed")); got != before+1 {
		t.Fatalf("items_total = %v, want %v", got, before+1)
	}

	beforeBytes := testutil.ToFloat64(bytesUploaded.WithLabelValues("directory"))
	RecordUpload("directory", 2048, time.Second, true)
	RecordUpload("directory", 4096, time.Second, false)
	if got := testutil.ToFloat64(bytesUploaded.WithLabelValues("directory")); got != beforeBytes+2048 {
		t.Fatalf("bytes uploaded = %v", got)
	}

	beforeSkips := testutil.ToFloat64(catalogFailures.WithLabelValues("fetch"))
	RecordCatalogFailure("fetch")
	if got := testutil.ToFloat64(catalogFailures.WithLabelValues("fetch")); got != beforeSkips+1 {
		t.Fatalf("catalog failures = %v, want %v", got, beforeSkips+1)
	}

	done := ItemStarted()
	if got := testutil.ToFloat64(itemsInFlight); got < 1 {
		t.Fatalf("in flight = %v", got)
	}
	done()
}

func TestHandlerExposesFerryMetrics(t *testing.T) {
	RecordSplit()
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ferry_artifacts_split_total") {
		t.Fatal("expected ferry metrics in exposition")
	}
}

func TestServeEmptyBindIsNoop(t *testing.T) {
	if err := Serve(context.Background(), " ", nil); err != nil {
		t.Fatalf("Serve: %v", err)
	}
}
