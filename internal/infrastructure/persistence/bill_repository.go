package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/propbill/backend/internal/domain/billing"
	"github.com/propbill/backend/internal/domain/shared"
	"github.com/propbill/backend/internal/infrastructure/docstore"
)

// DocumentBillRepository implements billing.BillRepository on a document store
type DocumentBillRepository struct {
	store docstore.Store
}

// NewDocumentBillRepository creates a new DocumentBillRepository
func NewDocumentBillRepository(store docstore.Store) *DocumentBillRepository {
	return &DocumentBillRepository{store: store}
}

// FindByID loads a bill
func (r *DocumentBillRepository) FindByID(ctx context.Context, id string) (*billing.Bill, error) {
	snap, err := r.store.Get(ctx, CollectionBills, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load bill %s: %w", id, err)
	}
	bill, err := billFromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bill %s: %w", id, err)
	}
	return bill, nil
}

// UpdateStatus writes the status and exception reason
func (r *DocumentBillRepository) UpdateStatus(ctx context.Context, bill *billing.Bill) error {
	updatedAt := bill.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	err := r.store.Update(ctx, CollectionBills, bill.ID, docstore.Document{
		"status":          string(bill.Status),
		"exceptionReason": bill.ExceptionReason,
		"updatedAt":       updatedAt.UTC(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return shared.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update bill %s status: %w", bill.ID, err)
	}
	return nil
}
