// Package ledger persists per-artifact completion state so reruns skip work
// that already reached the upload sink.
//
// Two stores share one implementation: SQLite (modernc.org/sqlite, the
// default, one file under the state directory) and PostgreSQL (lib/pq) for
// operators who keep state in a shared database. An uploaded record is sticky:
// Put never downgrades it, the upsert enforces that in SQL, and only Clear
// removes it.
package ledger
