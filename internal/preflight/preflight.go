package preflight

import (
	"context"

	"ferry/internal/config"
	"ferry/internal/sink"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the local checks every run needs: staging and state
// directories, free space for one artifact plus its parts, the ledger, and
// the sink when it can verify itself.
func RunAll(ctx context.Context, cfg *config.Config, dest sink.Sink) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Staging free space", cfg.Paths.StagingDir, MinStagingBytes(cfg)),
		CheckLedger(ctx, cfg),
	}
	if dest != nil {
		results = append(results, CheckSink(ctx, dest))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// MinStagingBytes is the space one oversized artifact needs while it is
// split: the original plus a full set of parts.
func MinStagingBytes(cfg *config.Config) int64 {
	return 2 * cfg.SizeCeilingBytes()
}
