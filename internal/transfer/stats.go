package transfer

import "sync/atomic"

// Stats accumulates run counters. Values are advisory and never consulted
// for correctness.
type Stats struct {
	processed    atomic.Int64
	completed    atomic.Int64
	skipped      atomic.Int64
	failed       atomic.Int64
	abandoned    atomic.Int64
	split        atomic.Int64
	bytes        atomic.Int64
	inconsistent atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Processed    int64
	Completed    int64
	Skipped      int64
	Failed       int64
	Abandoned    int64
	Split        int64
	Bytes        int64
	Inconsistent int64
}

// Record folds a result into the counters. Skipped items also count as
// completed.
func (s *Stats) Record(r Result) {
	s.processed.Add(1)
	switch r.Outcome {
	case OutcomeCompleted:
		s.completed.Add(1)
		s.bytes.Add(r.Bytes)
		if r.Parts > 1 {
			s.split.Add(1)
		}
	case OutcomeSkipped:
		s.completed.Add(1)
		s.skipped.Add(1)
	case OutcomeFailed:
		s.failed.Add(1)
	case OutcomeAbandoned:
		s.abandoned.Add(1)
	}
	if r.Inconsistent {
		s.inconsistent.Add(1)
	}
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Processed:    s.processed.Load(),
		Completed:    s.completed.Load(),
		Skipped:      s.skipped.Load(),
		Failed:       s.failed.Load(),
		Abandoned:    s.abandoned.Load(),
		Split:        s.split.Load(),
		Bytes:        s.bytes.Load(),
		Inconsistent: s.inconsistent.Load(),
	}
}
