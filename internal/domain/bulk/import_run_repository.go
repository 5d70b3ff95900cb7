package bulk

import "context"

// ImportRunRepository persists import run records
type ImportRunRepository interface {
	Create(ctx context.Context, run *ImportRun) error
	// FindByImportID returns shared.ErrNotFound when no run carries the ID
	FindByImportID(ctx context.Context, importID string) (*ImportRun, error)
}
