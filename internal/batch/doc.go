// Package batch loads pre-materialized item lists for bounded-concurrency
// runs.
//
// A list is a JSON array of {"id", "name", "link"} objects read from a local
// file, an HTTP URL, or a Google Drive share link. Drive share links are
// rewritten to their direct download form, and the confirmation page Drive
// serves for large files is followed once.
package batch
