package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ferry/internal/config"
)

// Status is the persisted outcome of an artifact.
type Status string

const (
	StatusPending  Status = "pending"
	StatusUploaded Status = "uploaded"
	StatusFailed   Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUploaded, StatusFailed:
		return true
	default:
		return false
	}
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown ledger status %q", value)
	}
	return status, nil
}

// Record is the durable state of one artifact.
type Record struct {
	ArtifactID  string
	DisplayName string
	Status      Status
	PartCount   int
	RemoteRefs  []string
	Error       string
	UpdatedAt   time.Time
}

// Stats summarises the ledger contents.
type Stats struct {
	Total    int
	Uploaded int
	Failed   int
	Pending  int
	Split    int
}

// ListOptions filters List results. A zero value lists everything.
type ListOptions struct {
	Status Status
	Limit  int
}

// Ledger is the completion store consulted before and updated after every
// artifact. Get returns (nil, nil) when the artifact has never been recorded.
type Ledger interface {
	Get(ctx context.Context, artifactID string) (*Record, error)
	Put(ctx context.Context, record Record) error
	Stats(ctx context.Context) (Stats, error)
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	// Clear deletes the named records, or every record when no ids are given.
	Clear(ctx context.Context, artifactIDs ...string) (int64, error)
	Close() error
}

// ErrInvalidRecord marks a Put rejected before reaching the database.
var ErrInvalidRecord = errors.New("invalid ledger record")

func validateRecord(record Record) error {
	if strings.TrimSpace(record.ArtifactID) == "" {
		return fmt.Errorf("%w: artifact id is empty", ErrInvalidRecord)
	}
	if !record.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidRecord, record.Status)
	}
	if record.PartCount < 0 {
		return fmt.Errorf("%w: negative part count", ErrInvalidRecord)
	}
	return nil
}

// Open connects to the ledger configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	switch cfg.Ledger.Driver {
	case config.LedgerPostgres:
		return OpenPostgres(cfg.Ledger.DSN)
	case config.LedgerSQLite, "":
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		return OpenSQLite(cfg.LedgerPath())
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", cfg.Ledger.Driver)
	}
}
