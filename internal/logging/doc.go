// Package logging assembles structured slog loggers and formatting helpers used
// across ferry.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so transfer code can tag log
// lines with artifact IDs, stages, and worker slots. Every record of a run
// carries the run_id supplied at construction. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
