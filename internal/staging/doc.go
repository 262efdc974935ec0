// Package staging owns the local directory that holds in-flight artifacts.
//
// Each work item gets its own directory named from a sanitized artifact id
// token plus a short hash of the raw id, so two ids that sanitize alike never
// share files. Directories are removed when the item finishes; leftovers from
// crashed runs are purged by CleanStale at startup. A flock-based lock keeps
// two ferry processes from sharing one staging area.
package staging
