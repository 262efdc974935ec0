package transfer

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ferry/internal/services"
)

type recordingProcessor struct {
	mu       sync.Mutex
	order    []string
	workers  map[int]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	onStart  func(WorkItem)
}

func (p *recordingProcessor) Process(ctx context.Context, item WorkItem) Result {
	current := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if current <= peak || p.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	if p.onStart != nil {
		p.onStart(item)
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	p.order = append(p.order, item.ArtifactID)
	if p.workers == nil {
		p.workers = map[int]bool{}
	}
	if worker, ok := services.WorkerFromContext(ctx); ok {
		p.workers[worker] = true
	}
	p.mu.Unlock()
	return Result{Item: item, Outcome: OutcomeCompleted}
}

func items(ids ...string) []WorkItem {
	out := make([]WorkItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, WorkItem{ArtifactID: id})
	}
	return out
}

func TestRunSequentialPreservesOrder(t *testing.T) {
	p := &recordingProcessor{}
	var results []string
	err := RunSequential(context.Background(), p, slices.Values(items("a", "b", "c")), func(r Result) {
		results = append(results, r.Item.ArtifactID)
	})
	if err != nil {
		t.Fatalf("RunSequential: %v", err)
	}
	want := []string{"a", "b", "c"}
	if !slices.Equal(p.order, want) || !slices.Equal(results, want) {
		t.Fatalf("order = %v results = %v", p.order, results)
	}
	if p.peak.Load() != 1 {
		t.Fatalf("peak in flight = %d, want 1", p.peak.Load())
	}
}

func TestRunSequentialStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &recordingProcessor{onStart: func(item WorkItem) {
		if item.ArtifactID == "b" {
			cancel()
		}
	}}

	err := RunSequential(ctx, p, slices.Values(items("a", "b", "c")), nil)
	if err == nil {
		t.Fatal("expected context error")
	}
	if !slices.Equal(p.order, []string{"a", "b"}) {
		t.Fatalf("order = %v, want a and b only", p.order)
	}
}

func TestRunConcurrentRespectsLimit(t *testing.T) {
	p := &recordingProcessor{delay: 10 * time.Millisecond}
	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	var count int
	err := RunConcurrent(context.Background(), p, items(ids...), 3, func(Result) { count++ })
	if err != nil {
		t.Fatalf("RunConcurrent: %v", err)
	}
	if count != len(ids) {
		t.Fatalf("results = %d, want %d", count, len(ids))
	}
	if peak := p.peak.Load(); peak > 3 || peak < 1 {
		t.Fatalf("peak in flight = %d, want between 1 and 3", peak)
	}
	got := slices.Clone(p.order)
	slices.Sort(got)
	if !slices.Equal(got, ids) {
		t.Fatalf("processed = %v", got)
	}
	for worker := range p.workers {
		if worker < 1 || worker > 3 {
			t.Fatalf("worker id %d outside 1..3", worker)
		}
	}
}

func TestRunConcurrentClampsLimit(t *testing.T) {
	p := &recordingProcessor{}
	if err := RunConcurrent(context.Background(), p, items("a", "b"), 0, nil); err != nil {
		t.Fatalf("RunConcurrent: %v", err)
	}
	if p.peak.Load() != 1 {
		t.Fatalf("peak = %d, want 1", p.peak.Load())
	}
}

func TestRunConcurrentStopsStartingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &recordingProcessor{}
	if err := RunConcurrent(ctx, p, items("a", "b"), 2, nil); err == nil {
		t.Fatal("expected context error")
	}
	if len(p.order) != 0 {
		t.Fatalf("processed %v after cancellation", p.order)
	}
}

func TestStatsSnapshot(t *testing.T) {
	var stats Stats
	stats.Record(Result{Outcome: OutcomeCompleted, Parts: 3, Bytes: 100})
	stats.Record(Result{Outcome: OutcomeCompleted, Parts: 1, Bytes: 5, Inconsistent: true})
	stats.Record(Result{Outcome: OutcomeSkipped})
	stats.Record(Result{Outcome: OutcomeFailed})
	stats.Record(Result{Outcome: OutcomeAbandoned})

	want := StatsSnapshot{Processed: 5, Completed: 3, Skipped: 1, Failed: 1, Abandoned: 1, Split: 1, Bytes: 105, Inconsistent: 1}
	if got := stats.Snapshot(); got != want {
		t.Fatalf("snapshot = %+v, want %+v", got, want)
	}
}
