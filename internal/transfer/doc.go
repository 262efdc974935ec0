// Package transfer runs the per-item pipeline that moves catalog artifacts
// to an upload sink.
//
// Orchestrator.Process drives one WorkItem through its state machine:
// ledger lookup, rendition selection and remux (videos) or plain download,
// chunking when the artifact exceeds the size ceiling, ordered part uploads
// behind a shared Throttle, and the terminal ledger write. Every per-item
// failure is converted into a failed Result at this boundary; nothing a
// single item does can abort the run.
//
// RunSequential processes items as a walker yields them. RunConcurrent
// drains a materialized list with a bounded worker pool. Both feed the same
// Stats and optional Event stream.
package transfer
