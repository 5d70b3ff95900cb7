package persistence

import (
	"context"
	"fmt"

	"github.com/propbill/backend/internal/domain/bulk"
	"github.com/propbill/backend/internal/domain/shared"
	"github.com/propbill/backend/internal/infrastructure/docstore"
)

// DocumentImportRunRepository implements bulk.ImportRunRepository on a
// document store
type DocumentImportRunRepository struct {
	store docstore.Store
}

// NewDocumentImportRunRepository creates a new DocumentImportRunRepository
func NewDocumentImportRunRepository(store docstore.Store) *DocumentImportRunRepository {
	return &DocumentImportRunRepository{store: store}
}

// Create writes the run record and stores the generated ID on it
func (r *DocumentImportRunRepository) Create(ctx context.Context, run *bulk.ImportRun) error {
	id, err := r.store.Create(ctx, CollectionImportRuns, ImportRunDocument(run))
	if err != nil {
		return fmt.Errorf("failed to record import run %s: %w", run.ImportID, err)
	}
	run.ID = id
	return nil
}

// FindByImportID loads the run record of an import
func (r *DocumentImportRunRepository) FindByImportID(ctx context.Context, importID string) (*bulk.ImportRun, error) {
	snaps, err := r.store.FindWhere(ctx, CollectionImportRuns, "importId", importID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up import run %s: %w", importID, err)
	}
	if len(snaps) == 0 {
		return nil, shared.ErrNotFound
	}
	run, err := importRunFromSnapshot(&snaps[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode import run %s: %w", importID, err)
	}
	return run, nil
}

// ImportRunDocument encodes an import run
func ImportRunDocument(run *bulk.ImportRun) docstore.Document {
	return docstore.Document{
		"importId":        run.ImportID,
		"fileName":        run.FileName,
		"fileSize":        run.FileSize,
		"archiveKey":      run.ArchiveKey,
		"status":          string(run.Status),
		"rows":            run.Counts.Rows,
		"providers":       run.Counts.Providers,
		"properties":      run.Counts.Properties,
		"tenants":         run.Counts.Tenants,
		"utilityAccounts": run.Counts.UtilityAccounts,
		"skipped":         run.Counts.Skipped,
		"error":           run.Error,
		"startedAt":       run.StartedAt.UTC(),
		"completedAt":     run.CompletedAt.UTC(),
		"createdAt":       run.CreatedAt.UTC(),
		"updatedAt":       run.UpdatedAt.UTC(),
	}
}

func importRunFromSnapshot(snap *docstore.Snapshot) (*bulk.ImportRun, error) {
	base, err := baseEntityFrom(snap)
	if err != nil {
		return nil, err
	}
	started, err := timeField(snap.Data, "startedAt")
	if err != nil {
		return nil, err
	}
	completed, err := timeField(snap.Data, "completedAt")
	if err != nil {
		return nil, err
	}
	return &bulk.ImportRun{
		BaseEntity: base,
		ImportID:   stringField(snap.Data, "importId"),
		FileName:   stringField(snap.Data, "fileName"),
		FileSize:   int64(intField(snap.Data, "fileSize")),
		ArchiveKey: stringField(snap.Data, "archiveKey"),
		Status:     bulk.ImportStatus(stringField(snap.Data, "status")),
		Counts: bulk.ImportCounts{
			Rows:            intField(snap.Data, "rows"),
			Providers:       intField(snap.Data, "providers"),
			Properties:      intField(snap.Data, "properties"),
			Tenants:         intField(snap.Data, "tenants"),
			UtilityAccounts: intField(snap.Data, "utilityAccounts"),
			Skipped:         intField(snap.Data, "skipped"),
		},
		Error:       stringField(snap.Data, "error"),
		StartedAt:   started,
		CompletedAt: completed,
	}, nil
}
