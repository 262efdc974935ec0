package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// Store is the SQL-backed Ledger shared by the SQLite and PostgreSQL drivers.
type Store struct {
	db      *sql.DB
	dialect dialect
	// location is the database file for SQLite and empty for PostgreSQL.
	location string
	now      func() time.Time
}

var _ Ledger = (*Store)(nil)

const recordColumns = "artifact_id, display_name, status, part_count, remote_refs, error, updated_at"

// Driver returns the backing database name ("sqlite" or "postgres").
func (s *Store) Driver() string {
	return s.dialect.String()
}

// Location returns the SQLite database path, or "" for PostgreSQL.
func (s *Store) Location() string {
	return s.location
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	query = s.rebind(query)
	var (
		res     sql.Result
		execErr error
	)
	op := func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}
	if s.dialect == dialectSQLite {
		if err := retryOnBusy(ctx, op); err != nil {
			return nil, err
		}
		return res, nil
	}
	if err := op(); err != nil {
		return nil, err
	}
	return res, nil
}

// Get returns the record for artifactID, or nil when none exists.
func (s *Store) Get(ctx context.Context, artifactID string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+recordColumns+" FROM ferry_artifacts WHERE artifact_id = ?"),
		artifactID,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", artifactID, err)
	}
	return record, nil
}

// Put upserts record. An existing uploaded record is left untouched.
func (s *Store) Put(ctx context.Context, record Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	refs := record.RemoteRefs
	if refs == nil {
		refs = []string{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("encode remote refs: %w", err)
	}
	updated := record.UpdatedAt
	if updated.IsZero() {
		updated = s.clock()
	}

	_, err = s.exec(ctx,
		`INSERT INTO ferry_artifacts (`+recordColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (artifact_id) DO UPDATE SET
            display_name = excluded.display_name,
            status = excluded.status,
            part_count = excluded.part_count,
            remote_refs = excluded.remote_refs,
            error = excluded.error,
            updated_at = excluded.updated_at
        WHERE ferry_artifacts.status <> 'uploaded'`,
		record.ArtifactID,
		record.DisplayName,
		string(record.Status),
		record.PartCount,
		string(refsJSON),
		record.Error,
		updated.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", record.ArtifactID, err)
	}
	return nil
}

// Stats counts records per status; Split counts uploaded multi-part artifacts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var stats Stats
	err := s.db.QueryRowContext(ctx, `SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN status = 'uploaded' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN status = 'uploaded' AND part_count > 1 THEN 1 ELSE 0 END), 0)
        FROM ferry_artifacts`,
	).Scan(&stats.Total, &stats.Uploaded, &stats.Failed, &stats.Pending, &stats.Split)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	return stats, nil
}

// List returns records ordered by most recent update first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + recordColumns + " FROM ferry_artifacts"
	var args []any
	if opts.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(opts.Status))
	}
	query += " ORDER BY updated_at DESC, artifact_id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Clear removes the given records, or all records when ids is empty.
func (s *Store) Clear(ctx context.Context, artifactIDs ...string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if len(artifactIDs) == 0 {
		res, err = s.exec(ctx, "DELETE FROM ferry_artifacts")
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(artifactIDs)), ", ")
		args := make([]any, len(artifactIDs))
		for i, id := range artifactIDs {
			args[i] = id
		}
		res, err = s.exec(ctx, "DELETE FROM ferry_artifacts WHERE artifact_id IN ("+placeholders+")", args...)
	}
	if err != nil {
		return 0, fmt.Errorf("clear records: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record    Record
		status    string
		refsJSON  sql.NullString
		errText   sql.NullString
		updatedMS int64
	)
	if err := row.Scan(
		&record.ArtifactID,
		&record.DisplayName,
		&status,
		&record.PartCount,
		&refsJSON,
		&errText,
		&updatedMS,
	); err != nil {
		return nil, err
	}
	record.Status = Status(status)
	record.Error = errText.String
	record.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	if refsJSON.Valid && refsJSON.String != "" {
		if err := json.Unmarshal([]byte(refsJSON.String), &record.RemoteRefs); err != nil {
			return nil, fmt.Errorf("decode remote refs for %s: %w", record.ArtifactID, err)
		}
	}
	return &record, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
