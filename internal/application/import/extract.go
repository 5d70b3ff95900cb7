package importapp

import (
	"github.com/propbill/backend/internal/domain/portfolio"
)

// ProviderIDs maps canonical provider name to stored ID
type ProviderIDs map[string]string

// PropertyIDs maps BP number to stored property ID
type PropertyIDs map[string]string

// TenantIDs maps tenant name to stored tenant ID
type TenantIDs map[string]string

// Extraction holds the de-duplicated entities found in a sheet, each in
// first-seen order
type Extraction struct {
	Providers  []*portfolio.Provider
	Properties []*portfolio.Property
	Tenants    []*portfolio.Tenant
	Rows       []AccountRow

	tenantProperty map[string]string
}

// Extract collapses rows into unique providers (by canonical name),
// properties (by BP number) and tenants (by exact name). The first
// occurrence wins in every case.
func Extract(rows []AccountRow, company string) *Extraction {
	ex := &Extraction{
		Providers:      make([]*portfolio.Provider, 0),
		Properties:     make([]*portfolio.Property, 0),
		Tenants:        make([]*portfolio.Tenant, 0),
		Rows:           rows,
		tenantProperty: make(map[string]string),
	}
	seenProviders := make(map[string]struct{})
	seenProperties := make(map[string]struct{})
	seenTenants := make(map[string]struct{})

	for _, row := range rows {
		if name := row.ProviderName(); name != "" {
			if _, ok := seenProviders[name]; !ok {
				seenProviders[name] = struct{}{}
				if p, err := portfolio.NewProvider(name, portfolio.InferProviderType(name)); err == nil {
					ex.Providers = append(ex.Providers, p)
				}
			}
		}

		if row.BPNumber != "" {
			if _, ok := seenProperties[row.BPNumber]; !ok {
				seenProperties[row.BPNumber] = struct{}{}
				if p, err := portfolio.NewProperty(row.BPNumber, company); err == nil {
					ex.Properties = append(ex.Properties, p)
				}
			}
		}

		if row.HasOccupant() {
			if _, ok := seenTenants[row.TenantName]; !ok {
				seenTenants[row.TenantName] = struct{}{}
				if t, err := portfolio.NewTenant(row.TenantName); err == nil {
					ex.Tenants = append(ex.Tenants, t)
					ex.tenantProperty[row.TenantName] = row.BPNumber
				}
			}
		}
	}
	return ex
}

// TenantBPNumber returns the BP number of the first row naming the tenant
func (ex *Extraction) TenantBPNumber(name string) string {
	return ex.tenantProperty[name]
}
