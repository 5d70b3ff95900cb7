package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/propbill/backend/internal/domain/portfolio"
	"github.com/propbill/backend/internal/domain/shared"
	"github.com/propbill/backend/internal/infrastructure/docstore"
)

// DocumentTenantRepository implements portfolio.TenantRepository on a
// document store
type DocumentTenantRepository struct {
	store docstore.Store
}

// NewDocumentTenantRepository creates a new DocumentTenantRepository
func NewDocumentTenantRepository(store docstore.Store) *DocumentTenantRepository {
	return &DocumentTenantRepository{store: store}
}

// FindByID loads a tenant
func (r *DocumentTenantRepository) FindByID(ctx context.Context, id string) (*portfolio.Tenant, error) {
	snap, err := r.store.Get(ctx, CollectionTenants, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load tenant %s: %w", id, err)
	}
	tenant, err := tenantFromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tenant %s: %w", id, err)
	}
	return tenant, nil
}

// FindByProperty lists the tenants of a property in store order
func (r *DocumentTenantRepository) FindByProperty(ctx context.Context, propertyID string) ([]portfolio.Tenant, error) {
	snaps, err := r.store.FindWhere(ctx, CollectionTenants, "propertyId", propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants for property %s: %w", propertyID, err)
	}
	out := make([]portfolio.Tenant, 0, len(snaps))
	for i := range snaps {
		t, err := tenantFromSnapshot(&snaps[i])
		if err != nil {
			return nil, fmt.Errorf("failed to decode tenant %s: %w", snaps[i].ID, err)
		}
		out = append(out, *t)
	}
	return out, nil
}
