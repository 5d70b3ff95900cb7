// Package bulk records spreadsheet import runs
package bulk

import (
	"strings"
	"time"

	"github.com/propbill/backend/internal/domain/shared"
)

// ImportStatus is the outcome of an import run
type ImportStatus string

const (
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// IsValid checks if the status is valid
func (s ImportStatus) IsValid() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// ImportCounts is what a run wrote
type ImportCounts struct {
	Rows            int
	Providers       int
	Properties      int
	Tenants         int
	UtilityAccounts int
	Skipped         int
}

// Written returns the number of documents written
func (c ImportCounts) Written() int {
	return c.Providers + c.Properties + c.Tenants + c.UtilityAccounts
}

// ImportRun is the audit record of one import. It is written once, after the
// run has finished, so a run that fails to parse leaves no other trace.
type ImportRun struct {
	shared.BaseEntity
	ImportID    string
	FileName    string
	FileSize    int64
	ArchiveKey  string
	Status      ImportStatus
	Counts      ImportCounts
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewImportRun starts a run record for an uploaded file
func NewImportRun(importID, fileName string, fileSize int64, startedAt time.Time) (*ImportRun, error) {
	if strings.TrimSpace(importID) == "" {
		return nil, shared.NewDomainError("INVALID_IMPORT_ID", "Import ID cannot be empty")
	}
	if fileName == "" {
		return nil, shared.NewDomainError("INVALID_FILE_NAME", "File name cannot be empty")
	}
	if fileSize < 0 {
		return nil, shared.NewDomainError("INVALID_FILE_SIZE", "File size cannot be negative")
	}
	return &ImportRun{
		BaseEntity: shared.NewBaseEntity(),
		ImportID:   importID,
		FileName:   fileName,
		FileSize:   fileSize,
		StartedAt:  startedAt,
	}, nil
}

// Complete records a successful run
func (r *ImportRun) Complete(counts ImportCounts, at time.Time) error {
	if r.Status != "" {
		return shared.Errorf(shared.CodeInvalidState, "Import run already %s", r.Status)
	}
	r.Status = ImportStatusCompleted
	r.Counts = counts
	r.CompletedAt = at
	r.Touch()
	return nil
}

// Fail records a run that stopped on err. Counts hold whatever was written
// before the failure.
func (r *ImportRun) Fail(counts ImportCounts, err error, at time.Time) error {
	if r.Status != "" {
		return shared.Errorf(shared.CodeInvalidState, "Import run already %s", r.Status)
	}
	r.Status = ImportStatusFailed
	r.Counts = counts
	if err != nil {
		r.Error = err.Error()
	}
	r.CompletedAt = at
	r.Touch()
	return nil
}

// Duration returns how long the run took
func (r *ImportRun) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
