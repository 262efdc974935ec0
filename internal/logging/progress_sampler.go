package logging

import "strings"

const defaultProgressBucket = 5.0

// ProgressSampler thins transfer progress lines. A line is kept whenever the
// stage changes or the percentage enters a new bucket. Each item owns its own
// sampler; it is not safe for concurrent use.
type ProgressSampler struct {
	bucketSize float64
	stage      string
	bucket     int
}

// NewProgressSampler returns a sampler with the given bucket width in percent.
// Non-positive widths use 5%.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = defaultProgressBucket
	}
	s := &ProgressSampler{bucketSize: bucketSize}
	s.Reset()
	return s
}

// ShouldLog reports whether a progress event should be logged. A negative
// percent means the total is unknown and only stage changes emit.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.stage {
		s.stage, s.bucket = stage, -1
		emit = true
	}
	if percent < 0 {
		return emit
	}
	if b := int(min(percent, 100) / s.bucketSize); b > s.bucket {
		s.bucket = b
		emit = true
	}
	return emit
}

// ShouldLogBytes is ShouldLog for byte counters. A non-positive total is
// treated as unknown.
func (s *ProgressSampler) ShouldLogBytes(done, total int64, stage string) (float64, bool) {
	percent := Percent(done, total)
	return percent, s.ShouldLog(percent, stage)
}

// Percent converts a byte counter into a percentage clamped to [0, 100], or -1
// when total is unknown.
func Percent(done, total int64) float64 {
	switch {
	case total <= 0:
		return -1
	case done <= 0:
		return 0
	case done >= total:
		return 100
	}
	return float64(done) * 100 / float64(total)
}

// Reset clears the sampler state before a new item starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.stage, s.bucket = "", -1
}
