package portfolio

import "context"

// TenantRepository reads tenants for allocation
type TenantRepository interface {
	FindByID(ctx context.Context, id string) (*Tenant, error)
	FindByProperty(ctx context.Context, propertyID string) ([]Tenant, error)
}
