// Package ffmpeg mediates access to the ffmpeg CLI used to remux HLS streams
// into local MP4 containers.
//
// It normalizes command invocation, parses -progress key/value output into
// byte and time updates, bounds every run with a timeout, and exposes an
// Executor seam so tests can stand in for the binary.
//
// Prefer this package over ad-hoc exec.Command usage when invoking ffmpeg so
// progress reporting and timeout handling remain consistent.
package ffmpeg
