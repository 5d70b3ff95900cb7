package persistence

import (
	"context"
	"fmt"

	"github.com/propbill/backend/internal/domain/billing"
	"github.com/propbill/backend/internal/infrastructure/docstore"
)

// DocumentAllocationRepository implements billing.AllocationRepository on a
// document store
type DocumentAllocationRepository struct {
	store docstore.Store
}

// NewDocumentAllocationRepository creates a new DocumentAllocationRepository
func NewDocumentAllocationRepository(store docstore.Store) *DocumentAllocationRepository {
	return &DocumentAllocationRepository{store: store}
}

// Create writes one allocation document and stores the generated ID on it
func (r *DocumentAllocationRepository) Create(ctx context.Context, allocation *billing.Allocation) error {
	id, err := r.store.Create(ctx, CollectionAllocations, AllocationDocument(allocation))
	if err != nil {
		return fmt.Errorf("failed to write allocation for tenant %s: %w", allocation.TenantName, err)
	}
	allocation.ID = id
	return nil
}

// FindByBill lists the allocations of a bill
func (r *DocumentAllocationRepository) FindByBill(ctx context.Context, billID string) ([]billing.Allocation, error) {
	snaps, err := r.store.FindWhere(ctx, CollectionAllocations, "billId", billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations for bill %s: %w", billID, err)
	}
	out := make([]billing.Allocation, 0, len(snaps))
	for i := range snaps {
		a, err := allocationFromSnapshot(&snaps[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode allocation %s: %w", snaps[i].ID, err)
		}
		out = append(out, *a)
	}
	return out, nil
}
