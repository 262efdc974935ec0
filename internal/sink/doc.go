// Package sink defines the upload destination contract shared by the
// telegram, s3, and directory implementations.
//
// The transfer orchestrator enforces the size ceiling before calling a sink,
// so implementations upload whatever file they are handed. Captions are built
// here so every sink labels parts the same way.
package sink
