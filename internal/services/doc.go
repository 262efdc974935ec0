// Package services defines shared utilities consumed by the transfer pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp artifact IDs, stage names, worker slots, and
//     run correlation identifiers for logging.
//   - Structured error markers (fetch, download, transcode, split, upload,
//     ledger) plus the Wrap helper so every per-item failure can be classified
//     into a short reason string when it reaches the ledger.
//   - Thin wrappers around external tools (see the ffmpeg subpackage) that make
//     command execution testable.
//
// Use these helpers when wiring new pipeline logic so failure handling and
// observability stay uniform.
package services
