// Package chunker partitions oversized artifacts into numbered parts that each
// fit under a transport size ceiling.
//
// Split streams the source through a bounded buffer, writes parts next to the
// source as <base>.<NNN><ext>, and deletes the source once every part is
// written. Files at or below the ceiling are returned as a single part that
// references the original path.
package chunker
